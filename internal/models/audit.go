package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogEntry represents one append-only record of a submission attempt.
// Entries are never updated or deleted; the invoice row only carries the
// latest outcome, history lives here.
type AuditLogEntry struct {
	ID            uuid.UUID `json:"id" db:"id"`
	InvoiceID     uuid.UUID `json:"invoice_id" db:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number" db:"invoice_number"`
	Status        string    `json:"status" db:"status"`
	Response      string    `json:"response" db:"response"`
	StatusCode    int       `json:"status_code" db:"status_code"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
