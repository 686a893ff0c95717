package models

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceFiles represents the archived artifacts of a processed invoice.
// The signed XML and the rendered PDF live in object storage; this row
// keeps their keys and sizes.
type InvoiceFiles struct {
	ID          uuid.UUID `json:"id" db:"id"`
	InvoiceID   uuid.UUID `json:"invoice_id" db:"invoice_id"`
	XMLKey      *string   `json:"xml_key,omitempty" db:"xml_key"`
	PDFKey      *string   `json:"pdf_key,omitempty" db:"pdf_key"`
	XMLSize     int64     `json:"xml_size" db:"xml_size"`
	PDFSize     int64     `json:"pdf_size" db:"pdf_size"`
	XMLURL      *string   `json:"xml_url,omitempty" db:"xml_url"`
	PDFURL      *string   `json:"pdf_url,omitempty" db:"pdf_url"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// FileDownloadRequest represents a request for one archived artifact
type FileDownloadRequest struct {
	FileType string `json:"file_type" binding:"required,oneof=pdf xml"`
}
