package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hypernova-labs/zatca-service/internal/models"
	"github.com/sirupsen/logrus"
)

// AuditLogRepository handles the append-only submission audit log
type AuditLogRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *DB, logger *logrus.Logger) *AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends one submission attempt record
func (r *AuditLogRepository) Create(entry *models.AuditLogEntry) error {
	query := `
		INSERT INTO zatca_audit_log (
			id, invoice_id, invoice_number, status, response, status_code, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := r.db.ExecWithTimeout(query,
		entry.ID, entry.InvoiceID, entry.InvoiceNumber,
		entry.Status, entry.Response, entry.StatusCode, entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("error inserting audit log entry: %w", err)
	}

	return nil
}

// ListByInvoiceID returns all submission attempts for an invoice, oldest first
func (r *AuditLogRepository) ListByInvoiceID(invoiceID uuid.UUID) ([]models.AuditLogEntry, error) {
	query := `
		SELECT id, invoice_id, invoice_number, status, response, status_code, created_at
		FROM zatca_audit_log
		WHERE invoice_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryWithTimeout(query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("error querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var entry models.AuditLogEntry
		err := rows.Scan(
			&entry.ID, &entry.InvoiceID, &entry.InvoiceNumber,
			&entry.Status, &entry.Response, &entry.StatusCode, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning audit log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
