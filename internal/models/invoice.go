package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the ZATCA processing state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusUnprocessed InvoiceStatus = "unprocessed"
	InvoiceStatusProcessing  InvoiceStatus = "processing"
	InvoiceStatusSuccess     InvoiceStatus = "success"
	InvoiceStatusError       InvoiceStatus = "error"
	InvoiceStatusCancelled   InvoiceStatus = "cancelled"
)

// SubmissionMode represents which ZATCA flow an invoice goes through
type SubmissionMode string

const (
	SubmissionModeReporting SubmissionMode = "reporting"
	SubmissionModeClearance SubmissionMode = "clearance"
)

// SubmissionStatus represents the outcome of one submission attempt
type SubmissionStatus string

const (
	SubmissionStatusSuccess SubmissionStatus = "success"
	SubmissionStatusError   SubmissionStatus = "error"
)

// Party represents a supplier or customer identity on an invoice
type Party struct {
	Name       string  `json:"name" db:"name"`
	VATNumber  *string `json:"vat_number,omitempty" db:"vat_number"`
	CRNumber   *string `json:"cr_number,omitempty" db:"cr_number"`
	Email      *string `json:"email,omitempty" db:"email"`
	Street     string  `json:"street" db:"street"`
	City       string  `json:"city" db:"city"`
	PostalZone string  `json:"postal_zone" db:"postal_zone"`
	Country    string  `json:"country" db:"country"`
}

// Invoice represents a host ERP sales invoice mirrored for ZATCA processing
type Invoice struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	InvoiceNumber string         `json:"invoice_number" db:"invoice_number"`
	IssueDate     time.Time      `json:"issue_date" db:"issue_date"`
	DueDate       *time.Time     `json:"due_date,omitempty" db:"due_date"`
	Currency      string         `json:"currency" db:"currency"`
	Mode          SubmissionMode `json:"mode" db:"mode"`

	// Parties
	Supplier Party `json:"supplier"`
	Customer Party `json:"customer"`

	// Totals from the host ledger
	NetTotal   decimal.Decimal `json:"net_total" db:"net_total"`
	TaxTotal   decimal.Decimal `json:"tax_total" db:"tax_total"`
	GrandTotal decimal.Decimal `json:"grand_total" db:"grand_total"`

	// ZATCA output fields, written by the pipeline only
	Status          InvoiceStatus `json:"status" db:"status"`
	ClearanceStatus *string       `json:"clearance_status,omitempty" db:"clearance_status"`
	ReportingStatus *string       `json:"reporting_status,omitempty" db:"reporting_status"`
	QRPayload       *string       `json:"qr_payload,omitempty" db:"qr_payload"`
	Signature       *string       `json:"signature,omitempty" db:"signature"`
	XMLContent      *string       `json:"xml_content,omitempty" db:"xml_content"`

	// Metadata
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Relations (populated on reads)
	Items []InvoiceItem `json:"items,omitempty"`
}

// InvoiceItem represents one line of an invoice
type InvoiceItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id" db:"invoice_id"`
	LineNo      int             `json:"line_no" db:"line_no"`
	Description string          `json:"description" db:"description"`
	Quantity    decimal.Decimal `json:"quantity" db:"qty"`
	UnitCode    string          `json:"unit_code" db:"unit_code"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	NetAmount   decimal.Decimal `json:"net_amount" db:"net_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// SubmissionResult represents the interpreted outcome of a single ZATCA call.
// Created once per attempt, written into one audit record, then immutable.
type SubmissionResult struct {
	Status          SubmissionStatus `json:"status"`
	ClearanceStatus string           `json:"clearance_status,omitempty"`
	ReportingStatus string           `json:"reporting_status,omitempty"`
	Message         string           `json:"message,omitempty"`
	RawResponse     string           `json:"raw_response,omitempty"`
	StatusCode      int              `json:"status_code"`
}

// CreateInvoiceRequest represents the request to mirror a host invoice
type CreateInvoiceRequest struct {
	InvoiceNumber string         `json:"invoice_number" binding:"required"`
	IssueDate     time.Time      `json:"issue_date" binding:"required"`
	DueDate       *time.Time     `json:"due_date,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	Mode          SubmissionMode `json:"mode,omitempty" binding:"omitempty,oneof=reporting clearance"`
	Supplier      *PartyRequest  `json:"supplier,omitempty"`
	Customer      PartyRequest   `json:"customer" binding:"required"`
	Items         []ItemRequest  `json:"items" binding:"required,min=1"`
	Totals        *TotalsRequest `json:"totals,omitempty"`
}

// PartyRequest represents a party identity in a request
type PartyRequest struct {
	Name       string  `json:"name" binding:"required"`
	VATNumber  *string `json:"vat_number,omitempty"`
	CRNumber   *string `json:"cr_number,omitempty"`
	Email      *string `json:"email,omitempty" binding:"omitempty,email"`
	Street     string  `json:"street,omitempty"`
	City       string  `json:"city,omitempty"`
	PostalZone string  `json:"postal_zone,omitempty"`
	Country    string  `json:"country,omitempty"`
}

// ItemRequest represents one invoice line in a request.
// Amounts travel as decimal strings so the ledger values survive intact.
type ItemRequest struct {
	Description string `json:"description" binding:"required"`
	Quantity    string `json:"quantity" binding:"required"`
	UnitCode    string `json:"unit_code,omitempty"`
	UnitPrice   string `json:"unit_price" binding:"required"`
	TaxRate     string `json:"tax_rate" binding:"required"`
}

// TotalsRequest represents ledger totals supplied by the host
type TotalsRequest struct {
	Net   string `json:"net" binding:"required"`
	Tax   string `json:"tax" binding:"required"`
	Total string `json:"total" binding:"required"`
}

// ProcessRequest represents the request to run ZATCA processing on an invoice
type ProcessRequest struct {
	Override bool `json:"override,omitempty"`
}

// Totals represents monetary totals in responses, as decimal strings
type Totals struct {
	Net   string `json:"net"`
	Tax   string `json:"tax"`
	Total string `json:"total"`
}

// Links represents related resource links in responses
type Links struct {
	Self   string `json:"self"`
	Status string `json:"status"`
}

// InvoiceResponse represents the response after mirroring an invoice
type InvoiceResponse struct {
	ID            uuid.UUID      `json:"id"`
	InvoiceNumber string         `json:"invoice_number"`
	Status        InvoiceStatus  `json:"status"`
	Mode          SubmissionMode `json:"mode"`
	Totals        Totals         `json:"totals"`
	CreatedAt     time.Time      `json:"created_at"`
	Links         Links          `json:"links"`
}

// ProcessResponse represents the outcome of a processing call
type ProcessResponse struct {
	ID              uuid.UUID     `json:"id"`
	InvoiceNumber   string        `json:"invoice_number"`
	Status          InvoiceStatus `json:"status"`
	ClearanceStatus *string       `json:"clearance_status,omitempty"`
	ReportingStatus *string       `json:"reporting_status,omitempty"`
	Message         string        `json:"message,omitempty"`
}

// InvoiceStatusResponse represents the response when querying an invoice
type InvoiceStatusResponse struct {
	ID              uuid.UUID       `json:"id"`
	InvoiceNumber   string          `json:"invoice_number"`
	Status          InvoiceStatus   `json:"status"`
	ClearanceStatus *string         `json:"clearance_status,omitempty"`
	ReportingStatus *string         `json:"reporting_status,omitempty"`
	QRPayload       *string         `json:"qr_payload,omitempty"`
	Totals          Totals          `json:"totals"`
	Audit           []AuditLogEntry `json:"audit,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Links           Links           `json:"links"`
}

// LiveStatusResponse represents a live status poll answered by ZATCA
type LiveStatusResponse struct {
	ID              uuid.UUID      `json:"id"`
	InvoiceNumber   string         `json:"invoice_number"`
	Mode            SubmissionMode `json:"mode"`
	Status          InvoiceStatus  `json:"status"`
	ClearanceStatus string         `json:"clearance_status,omitempty"`
	ReportingStatus string         `json:"reporting_status,omitempty"`
}
