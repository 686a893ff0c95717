package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypernova-labs/zatca-service/internal/models"
)

func TestGenerateInvoicePDF(t *testing.T) {
	generator := NewDocumentGenerator(testLogger())

	invoice := storedInvoice(models.InvoiceStatusSuccess)
	qrPayload := "AQ5EYXRlcyBUcmFkaW5nAg8zMTAxMjIzOTM1MDAwMDM="
	reported := "REPORTED"
	invoice.QRPayload = &qrPayload
	invoice.ReportingStatus = &reported

	pdfData, err := generator.GenerateInvoicePDF(invoice)
	require.NoError(t, err)
	require.NotEmpty(t, pdfData)
	assert.Equal(t, "%PDF", string(pdfData[:4]))
}

func TestGenerateInvoicePDFWithoutQR(t *testing.T) {
	generator := NewDocumentGenerator(testLogger())

	// Unsubmitted invoices have no QR payload yet and still need a render
	invoice := storedInvoice(models.InvoiceStatusUnprocessed)

	pdfData, err := generator.GenerateInvoicePDF(invoice)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdfData[:4]))
}

func TestGenerateInvoicePDFManyLines(t *testing.T) {
	generator := NewDocumentGenerator(testLogger())

	invoice := storedInvoice(models.InvoiceStatusSuccess)
	invoice.Items = nil
	for i := 0; i < 60; i++ {
		invoice.Items = append(invoice.Items, models.InvoiceItem{
			ID:          uuid.New(),
			InvoiceID:   invoice.ID,
			LineNo:      i + 1,
			Description: fmt.Sprintf("Medjool dates carton %d", i+1),
			Quantity:    decimal.NewFromInt(2),
			UnitCode:    "EA",
			UnitPrice:   decimal.NewFromFloat(49.50),
			TaxRate:     decimal.NewFromInt(15),
			NetAmount:   decimal.NewFromInt(99),
			TaxAmount:   decimal.NewFromFloat(14.85),
		})
	}

	pdfData, err := generator.GenerateInvoicePDF(invoice)
	require.NoError(t, err)
	require.NotEmpty(t, pdfData)
}
