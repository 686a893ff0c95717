package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/boombuler/barcode/qr"
	"github.com/hypernova-labs/zatca-service/internal/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/barcode"
	"github.com/sirupsen/logrus"
)

// DocumentGenerator renders the printable invoice PDF
type DocumentGenerator struct {
	logger *logrus.Logger
}

// NewDocumentGenerator creates a new document generator
func NewDocumentGenerator(logger *logrus.Logger) *DocumentGenerator {
	return &DocumentGenerator{
		logger: logger,
	}
}

// GenerateInvoicePDF renders an A4 invoice carrying the ZATCA QR code
func (d *DocumentGenerator) GenerateInvoicePDF(invoice *models.Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetTextColor(44, 62, 80)
	pdf.SetDrawColor(52, 73, 94)

	// Header band
	pdf.SetFillColor(41, 128, 185)
	pdf.Rect(0, 0, 210, 40, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 24)
	pdf.Cell(150, 15, "TAX INVOICE")
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(150, 10, fmt.Sprintf("#%s", invoice.InvoiceNumber))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(150, 8, fmt.Sprintf("Issue date: %s", invoice.IssueDate.Format("02/01/2006")))
	pdf.Ln(8)

	// ZATCA QR code in the top right corner, on a white square so it scans
	if invoice.QRPayload != nil && *invoice.QRPayload != "" {
		pdf.SetFillColor(255, 255, 255)
		pdf.Rect(163, 2.5, 35, 35, "F")
		key := barcode.RegisterQR(pdf, *invoice.QRPayload, qr.M, qr.Unicode)
		barcode.Barcode(pdf, key, 164.5, 4, 32, 32, false)
	}

	pdf.SetTextColor(44, 62, 80)
	pdf.SetFillColor(255, 255, 255)

	// Seller block on the left
	pdf.SetY(50)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(95, 8, "SELLER")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(95, 6, invoice.Supplier.Name)
	pdf.Ln(6)
	if invoice.Supplier.VATNumber != nil {
		pdf.Cell(95, 6, fmt.Sprintf("VAT No: %s", *invoice.Supplier.VATNumber))
		pdf.Ln(6)
	}
	if invoice.Supplier.CRNumber != nil {
		pdf.Cell(95, 6, fmt.Sprintf("CR No: %s", *invoice.Supplier.CRNumber))
		pdf.Ln(6)
	}
	pdf.Cell(95, 6, invoice.Supplier.Street)
	pdf.Ln(6)
	pdf.Cell(95, 6, fmt.Sprintf("%s %s, %s", invoice.Supplier.City, invoice.Supplier.PostalZone, invoice.Supplier.Country))
	pdf.Ln(6)

	// Buyer block on the right
	pdf.SetY(50)
	pdf.SetX(105)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(95, 8, "BUYER")
	pdf.Ln(8)

	pdf.SetX(105)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(95, 6, invoice.Customer.Name)
	pdf.Ln(6)
	if invoice.Customer.VATNumber != nil {
		pdf.SetX(105)
		pdf.Cell(95, 6, fmt.Sprintf("VAT No: %s", *invoice.Customer.VATNumber))
		pdf.Ln(6)
	}
	if invoice.Customer.Street != "" {
		pdf.SetX(105)
		pdf.Cell(95, 6, invoice.Customer.Street)
		pdf.Ln(6)
	}
	if invoice.Customer.City != "" {
		pdf.SetX(105)
		pdf.Cell(95, 6, fmt.Sprintf("%s, %s", invoice.Customer.City, invoice.Customer.Country))
		pdf.Ln(6)
	}

	// Submission outcome line
	pdf.SetY(120)
	pdf.SetX(10)
	pdf.SetFont("Arial", "B", 12)
	if invoice.ClearanceStatus != nil {
		pdf.Cell(190, 8, fmt.Sprintf("ZATCA clearance status: %s", *invoice.ClearanceStatus))
		pdf.Ln(8)
	} else if invoice.ReportingStatus != nil {
		pdf.Cell(190, 8, fmt.Sprintf("ZATCA reporting status: %s", *invoice.ReportingStatus))
		pdf.Ln(8)
	}

	// Items table
	pdf.SetY(140)

	pdf.SetFillColor(236, 240, 241)
	pdf.SetTextColor(44, 62, 80)
	pdf.SetFont("Arial", "B", 10)

	colWidths := []float64{15, 65, 20, 30, 20, 40}
	colHeaders := []string{"Line", "Description", "Qty", "Unit Price", "VAT %", "Net"}

	for i, header := range colHeaders {
		pdf.CellFormat(colWidths[i], 10, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(10)

	pdf.SetFillColor(255, 255, 255)
	pdf.SetFont("Arial", "", 9)
	rowHeight := 8.0

	for i, item := range invoice.Items {
		if i%2 == 0 {
			pdf.SetFillColor(248, 249, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		pdf.CellFormat(colWidths[0], rowHeight, fmt.Sprintf("%d", item.LineNo), "1", 0, "C", true, 0, "")
		pdf.CellFormat(colWidths[1], rowHeight, item.Description, "1", 0, "L", true, 0, "")
		pdf.CellFormat(colWidths[2], rowHeight, item.Quantity.String(), "1", 0, "R", true, 0, "")
		pdf.CellFormat(colWidths[3], rowHeight, item.UnitPrice.StringFixed(2), "1", 0, "R", true, 0, "")
		pdf.CellFormat(colWidths[4], rowHeight, item.TaxRate.String(), "1", 0, "R", true, 0, "")
		pdf.CellFormat(colWidths[5], rowHeight, item.NetAmount.StringFixed(2), "1", 0, "R", true, 0, "")
		pdf.Ln(rowHeight)
	}

	// Totals
	totalY := pdf.GetY() + 10
	pdf.SetY(totalY)

	pdf.SetDrawColor(189, 195, 199)
	pdf.Line(120, totalY, 200, totalY)
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.SetX(120)
	pdf.Cell(50, 8, "Total (Excl. VAT):")
	pdf.Cell(30, 8, invoice.NetTotal.StringFixed(2))
	pdf.Ln(8)

	pdf.SetX(120)
	pdf.Cell(50, 8, "VAT:")
	pdf.Cell(30, 8, invoice.TaxTotal.StringFixed(2))
	pdf.Ln(8)

	pdf.SetFillColor(41, 128, 185)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetX(120)
	pdf.CellFormat(50, 12, "TOTAL:", "", 0, "L", true, 0, "")
	pdf.CellFormat(30, 12, fmt.Sprintf("%s %s", invoice.GrandTotal.StringFixed(2), invoice.Currency), "", 0, "R", true, 0, "")
	pdf.Ln(12)

	// Footer
	pdf.SetY(270)
	pdf.SetTextColor(149, 165, 166)
	pdf.SetFont("Arial", "", 8)
	pdf.Cell(190, 6, "This invoice was generated electronically by the ZATCA invoicing service")
	pdf.Ln(6)
	pdf.Cell(190, 6, fmt.Sprintf("Generated at: %s", time.Now().Format("02/01/2006 15:04:05")))

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, fmt.Errorf("error generating PDF: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"invoice_id": invoice.ID,
		"pdf_size":   buf.Len(),
	}).Info("Invoice PDF generated")

	return buf.Bytes(), nil
}
