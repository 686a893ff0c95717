// Package ubl holds the typed UBL 2.1 invoice tree and its XML serializer.
// The document is built once per invoice, serialized once, and never
// persisted on its own.
package ubl

import "encoding/xml"

// UBL 2.1 namespace set
const (
	nsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	nsCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	nsEXT     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
	nsUDT     = "urn:un:unece:uncefact:data:specification:UnqualifiedDataTypesSchemaModule:2"
	nsQDT     = "urn:oasis:names:specification:ubl:schema:xsd:QualifiedDatatypes-2"
	nsDS      = "http://www.w3.org/2000/09/xmldsig#"
	nsXades   = "http://uri.etsi.org/01903/v1.3.2#"
)

// Document represents a complete UBL invoice. Field order matches the
// element order ZATCA expects, so the struct marshals directly to the wire
// format.
type Document struct {
	XMLName xml.Name `xml:"Invoice"`

	XMLNS      string `xml:"xmlns,attr"`
	XMLNSCBC   string `xml:"xmlns:cbc,attr"`
	XMLNSCAC   string `xml:"xmlns:cac,attr"`
	XMLNSEXT   string `xml:"xmlns:ext,attr"`
	XMLNSUDT   string `xml:"xmlns:udt,attr"`
	XMLNSQDT   string `xml:"xmlns:qdt,attr"`
	XMLNSDS    string `xml:"xmlns:ds,attr"`
	XMLNSXades string `xml:"xmlns:xades,attr"`

	Extensions UBLExtensions `xml:"ext:UBLExtensions"`

	ID                   string `xml:"cbc:ID"`
	UUID                 string `xml:"cbc:UUID"`
	IssueDate            string `xml:"cbc:IssueDate"`
	IssueTime            string `xml:"cbc:IssueTime"`
	DueDate              string `xml:"cbc:DueDate,omitempty"`
	DocumentCurrencyCode string `xml:"cbc:DocumentCurrencyCode"`
	LineCountNumeric     int    `xml:"cbc:LineCountNumeric"`
	DocumentTypeCode     string `xml:"cbc:DocumentTypeCode"`
	InvoiceTypeCode      string `xml:"cbc:InvoiceTypeCode"`

	SupplierParty      SupplierParty      `xml:"cac:AccountingSupplierParty"`
	CustomerParty      CustomerParty      `xml:"cac:AccountingCustomerParty"`
	PaymentMeans       PaymentMeans       `xml:"cac:PaymentMeans"`
	TaxTotal           TaxTotal           `xml:"cac:TaxTotal"`
	LegalMonetaryTotal LegalMonetaryTotal `xml:"cac:LegalMonetaryTotal"`
	Lines              []InvoiceLine      `xml:"cac:InvoiceLine"`
	DocumentReference  DocumentReference  `xml:"cac:AdditionalDocumentReference"`
}

// UBLExtensions carries the detached-signature placeholder block
type UBLExtensions struct {
	Extension UBLExtension `xml:"ext:UBLExtension"`
}

// UBLExtension wraps the extension content
type UBLExtension struct {
	Content ExtensionContent `xml:"ext:ExtensionContent"`
}

// ExtensionContent holds the ds:Signature placeholder; the actual signature
// travels detached in the submission payload.
type ExtensionContent struct {
	Signature SignaturePlaceholder `xml:"ds:Signature"`
}

// SignaturePlaceholder marks where an enveloped signature would live
type SignaturePlaceholder struct {
	ID string `xml:"Id,attr"`
}

// Amount represents a monetary value with its currency
type Amount struct {
	CurrencyID string `xml:"currencyID,attr"`
	Value      string `xml:",chardata"`
}

// Quantity represents a quantity with its unit code
type Quantity struct {
	UnitCode string `xml:"unitCode,attr"`
	Value    string `xml:",chardata"`
}

// SchemeID represents an identifier qualified by an identification scheme
type SchemeID struct {
	SchemeID string `xml:"schemeID,attr"`
	Value    string `xml:",chardata"`
}

// SupplierParty wraps the supplier Party element
type SupplierParty struct {
	Party Party `xml:"cac:Party"`
}

// CustomerParty wraps the customer Party element
type CustomerParty struct {
	Party Party `xml:"cac:Party"`
}

// Party represents a supplier or customer identity block
type Party struct {
	Identification *PartyIdentification `xml:"cac:PartyIdentification,omitempty"`
	Name           PartyName            `xml:"cac:PartyName"`
	PostalAddress  PostalAddress        `xml:"cac:PostalAddress"`
	TaxScheme      *PartyTaxScheme      `xml:"cac:PartyTaxScheme,omitempty"`
}

// PartyIdentification carries a scheme-qualified party identifier
type PartyIdentification struct {
	ID SchemeID `xml:"cbc:ID"`
}

// PartyName carries the registered party name
type PartyName struct {
	Name string `xml:"cbc:Name"`
}

// PostalAddress represents a party address
type PostalAddress struct {
	StreetName string  `xml:"cbc:StreetName"`
	CityName   string  `xml:"cbc:CityName"`
	PostalZone string  `xml:"cbc:PostalZone,omitempty"`
	Country    Country `xml:"cac:Country"`
}

// Country carries the ISO country code
type Country struct {
	IdentificationCode string `xml:"cbc:IdentificationCode"`
}

// PartyTaxScheme binds a party to its VAT registration
type PartyTaxScheme struct {
	CompanyID SchemeID  `xml:"cbc:CompanyID"`
	TaxScheme TaxScheme `xml:"cac:TaxScheme"`
}

// TaxScheme identifies the tax system
type TaxScheme struct {
	ID string `xml:"cbc:ID"`
}

// PaymentMeans represents how the invoice is paid
type PaymentMeans struct {
	ID               string `xml:"cbc:ID"`
	PaymentMeansCode string `xml:"cbc:PaymentMeansCode"`
}

// TaxTotal represents an aggregate tax amount with one subtotal category
type TaxTotal struct {
	TaxAmount   Amount       `xml:"cbc:TaxAmount"`
	TaxSubtotal *TaxSubtotal `xml:"cac:TaxSubtotal,omitempty"`
}

// TaxSubtotal breaks a tax total down by category
type TaxSubtotal struct {
	TaxableAmount Amount      `xml:"cbc:TaxableAmount"`
	TaxAmount     Amount      `xml:"cbc:TaxAmount"`
	TaxCategory   TaxCategory `xml:"cac:TaxCategory"`
}

// TaxCategory identifies the tax category and rate applied
type TaxCategory struct {
	ID        SchemeID  `xml:"cbc:ID"`
	Percent   string    `xml:"cbc:Percent"`
	TaxScheme TaxScheme `xml:"cac:TaxScheme"`
}

// LegalMonetaryTotal represents the document-level monetary totals
type LegalMonetaryTotal struct {
	LineExtensionAmount Amount `xml:"cbc:LineExtensionAmount"`
	TaxExclusiveAmount  Amount `xml:"cbc:TaxExclusiveAmount"`
	TaxInclusiveAmount  Amount `xml:"cbc:TaxInclusiveAmount"`
	PayableAmount       Amount `xml:"cbc:PayableAmount"`
}

// InvoiceLine represents one invoiced item
type InvoiceLine struct {
	ID                  string   `xml:"cbc:ID"`
	InvoicedQuantity    Quantity `xml:"cbc:InvoicedQuantity"`
	LineExtensionAmount Amount   `xml:"cbc:LineExtensionAmount"`
	Item                Item     `xml:"cac:Item"`
	Price               Price    `xml:"cac:Price"`
	TaxTotal            TaxTotal `xml:"cac:TaxTotal"`
}

// Item carries the line item description
type Item struct {
	Name string `xml:"cbc:Name"`
}

// Price carries the unit price of a line
type Price struct {
	PriceAmount Amount `xml:"cbc:PriceAmount"`
}

// DocumentReference links the document back to the host record
type DocumentReference struct {
	ID               string `xml:"cbc:ID"`
	DocumentTypeCode string `xml:"cbc:DocumentTypeCode"`
}
