package ubl

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hypernova-labs/zatca-service/internal/models"
)

// Codes ZATCA expects on a standard invoice
const (
	documentTypeCode   = "1100"
	invoiceTypeCode    = "1000"
	additionalDocCode  = "130"
	taxCategoryStd     = "S"
	taxCategoryScheme  = "UN/ECE 5305"
	taxSchemeVAT       = "VAT"
	defaultCurrency    = "SAR"
	defaultUnitCode    = "EA"
	defaultPaymentCode = "1"
)

// MissingFieldError indicates the invoice lacks a field the document
// requires. Building aborts before anything is submitted.
type MissingFieldError struct {
	Field string
}

// Error implements the error interface
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// Builder constructs compliance documents from invoice records
type Builder struct {
	logger *logrus.Logger
}

// NewBuilder creates a new document builder
func NewBuilder(logger *logrus.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build maps an invoice into a UBL document. The tax rate is read from the
// invoice's own lines, never assumed; invoices mixing several rates are
// rejected rather than misreported.
func (b *Builder) Build(inv *models.Invoice) (*Document, error) {
	if inv.Supplier.VATNumber == nil || strings.TrimSpace(*inv.Supplier.VATNumber) == "" {
		return nil, &MissingFieldError{Field: "supplier.vat_number"}
	}
	if strings.TrimSpace(inv.Customer.Name) == "" {
		return nil, &MissingFieldError{Field: "customer.name"}
	}
	if len(inv.Items) == 0 {
		return nil, &MissingFieldError{Field: "items"}
	}

	taxRate, err := flatTaxRate(inv.Items)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, err)
	}

	currency := inv.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	doc := &Document{
		XMLNS:      nsInvoice,
		XMLNSCBC:   nsCBC,
		XMLNSCAC:   nsCAC,
		XMLNSEXT:   nsEXT,
		XMLNSUDT:   nsUDT,
		XMLNSQDT:   nsQDT,
		XMLNSDS:    nsDS,
		XMLNSXades: nsXades,

		Extensions: UBLExtensions{
			Extension: UBLExtension{
				Content: ExtensionContent{
					Signature: SignaturePlaceholder{ID: "SIG-" + inv.ID.String()},
				},
			},
		},

		ID:                   inv.InvoiceNumber,
		UUID:                 inv.ID.String(),
		IssueDate:            inv.IssueDate.Format("2006-01-02"),
		IssueTime:            inv.IssueDate.Format("15:04:05"),
		DocumentCurrencyCode: currency,
		LineCountNumeric:     len(inv.Items),
		DocumentTypeCode:     documentTypeCode,
		InvoiceTypeCode:      invoiceTypeCode,

		SupplierParty: SupplierParty{Party: b.supplierParty(inv)},
		CustomerParty: CustomerParty{Party: b.customerParty(inv)},
		PaymentMeans: PaymentMeans{
			ID:               "1",
			PaymentMeansCode: defaultPaymentCode,
		},
		TaxTotal: TaxTotal{
			TaxAmount: amount(currency, inv.TaxTotal),
			TaxSubtotal: &TaxSubtotal{
				TaxableAmount: amount(currency, inv.NetTotal),
				TaxAmount:     amount(currency, inv.TaxTotal),
				TaxCategory:   taxCategory(taxRate),
			},
		},
		LegalMonetaryTotal: LegalMonetaryTotal{
			LineExtensionAmount: amount(currency, inv.NetTotal),
			TaxExclusiveAmount:  amount(currency, inv.NetTotal),
			TaxInclusiveAmount:  amount(currency, inv.GrandTotal),
			PayableAmount:       amount(currency, inv.GrandTotal),
		},
		DocumentReference: DocumentReference{
			ID:               inv.InvoiceNumber,
			DocumentTypeCode: additionalDocCode,
		},
	}

	if inv.DueDate != nil {
		doc.DueDate = inv.DueDate.Format("2006-01-02")
	}

	for i, item := range inv.Items {
		doc.Lines = append(doc.Lines, b.invoiceLine(currency, i+1, item))
	}

	b.logger.WithFields(logrus.Fields{
		"invoice_number": inv.InvoiceNumber,
		"lines":          len(doc.Lines),
		"tax_rate":       taxRate.String(),
	}).Debug("Built compliance document")

	return doc, nil
}

// supplierParty builds the supplier block. The CR number falls back to the
// VAT number when the registration is not mirrored separately.
func (b *Builder) supplierParty(inv *models.Invoice) Party {
	vat := *inv.Supplier.VATNumber
	cr := vat
	if inv.Supplier.CRNumber != nil && *inv.Supplier.CRNumber != "" {
		cr = *inv.Supplier.CRNumber
	}

	return Party{
		Identification: &PartyIdentification{
			ID: SchemeID{SchemeID: "CR", Value: cr},
		},
		Name: PartyName{Name: inv.Supplier.Name},
		PostalAddress: PostalAddress{
			StreetName: inv.Supplier.Street,
			CityName:   inv.Supplier.City,
			PostalZone: inv.Supplier.PostalZone,
			Country:    Country{IdentificationCode: countryOrDefault(inv.Supplier.Country)},
		},
		TaxScheme: &PartyTaxScheme{
			CompanyID: SchemeID{SchemeID: "VAT", Value: vat},
			TaxScheme: TaxScheme{ID: taxSchemeVAT},
		},
	}
}

// customerParty builds the customer block; the identification is optional
func (b *Builder) customerParty(inv *models.Invoice) Party {
	party := Party{
		Name: PartyName{Name: inv.Customer.Name},
		PostalAddress: PostalAddress{
			StreetName: inv.Customer.Street,
			CityName:   inv.Customer.City,
			PostalZone: inv.Customer.PostalZone,
			Country:    Country{IdentificationCode: countryOrDefault(inv.Customer.Country)},
		},
	}

	if inv.Customer.VATNumber != nil && *inv.Customer.VATNumber != "" {
		party.Identification = &PartyIdentification{
			ID: SchemeID{SchemeID: "CR", Value: *inv.Customer.VATNumber},
		}
	}

	return party
}

// invoiceLine builds one cac:InvoiceLine with its own tax total
func (b *Builder) invoiceLine(currency string, lineNo int, item models.InvoiceItem) InvoiceLine {
	unit := item.UnitCode
	if unit == "" {
		unit = defaultUnitCode
	}

	return InvoiceLine{
		ID: fmt.Sprintf("%d", lineNo),
		InvoicedQuantity: Quantity{
			UnitCode: unit,
			Value:    item.Quantity.String(),
		},
		LineExtensionAmount: amount(currency, item.NetAmount),
		Item:                Item{Name: item.Description},
		Price: Price{
			PriceAmount: amount(currency, item.UnitPrice),
		},
		TaxTotal: TaxTotal{
			TaxAmount: amount(currency, item.TaxAmount),
			TaxSubtotal: &TaxSubtotal{
				TaxableAmount: amount(currency, item.NetAmount),
				TaxAmount:     amount(currency, item.TaxAmount),
				TaxCategory:   taxCategory(item.TaxRate),
			},
		},
	}
}

// flatTaxRate returns the single rate used across all lines
func flatTaxRate(items []models.InvoiceItem) (decimal.Decimal, error) {
	rate := items[0].TaxRate
	for _, item := range items[1:] {
		if !item.TaxRate.Equal(rate) {
			return decimal.Decimal{}, fmt.Errorf("mixed tax rates %s and %s, a single flat rate is required",
				rate.String(), item.TaxRate.String())
		}
	}
	return rate, nil
}

// amount renders a decimal as a two-place currency amount
func amount(currency string, value decimal.Decimal) Amount {
	return Amount{CurrencyID: currency, Value: value.StringFixed(2)}
}

// taxCategory builds the standard-rate VAT category for the given percent
func taxCategory(rate decimal.Decimal) TaxCategory {
	return TaxCategory{
		ID:        SchemeID{SchemeID: taxCategoryScheme, Value: taxCategoryStd},
		Percent:   rate.String(),
		TaxScheme: TaxScheme{ID: taxSchemeVAT},
	}
}

// countryOrDefault falls back to the Saudi country code
func countryOrDefault(code string) string {
	if code == "" {
		return "SA"
	}
	return code
}
