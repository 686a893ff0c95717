package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/zatca-service/internal/models"
	"github.com/sirupsen/logrus"
)

// InvoiceFilesRepository handles database operations for archived invoice artifacts
type InvoiceFilesRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewInvoiceFilesRepository creates a new invoice files repository
func NewInvoiceFilesRepository(db *DB, logger *logrus.Logger) *InvoiceFilesRepository {
	return &InvoiceFilesRepository{
		db:     db,
		logger: logger,
	}
}

// CreateOrUpdate upserts the archive record for an invoice
func (r *InvoiceFilesRepository) CreateOrUpdate(files *models.InvoiceFiles) error {
	exists, err := r.Exists(files.InvoiceID)
	if err != nil {
		return fmt.Errorf("error checking existence: %w", err)
	}

	if exists {
		return r.Update(files)
	}
	return r.Create(files)
}

// Create inserts a new archive record
func (r *InvoiceFilesRepository) Create(files *models.InvoiceFiles) error {
	query := `
		INSERT INTO invoice_files (
			id, invoice_id, xml_key, pdf_key, xml_size, pdf_size,
			xml_url, pdf_url, generated_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.ExecWithTimeout(query,
		files.ID, files.InvoiceID, files.XMLKey, files.PDFKey,
		files.XMLSize, files.PDFSize, files.XMLURL, files.PDFURL,
		files.GeneratedAt, files.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("error creating invoice files record: %w", err)
	}

	return nil
}

// GetByInvoiceID returns the archive record for an invoice
func (r *InvoiceFilesRepository) GetByInvoiceID(invoiceID uuid.UUID) (*models.InvoiceFiles, error) {
	query := `
		SELECT id, invoice_id, xml_key, pdf_key, xml_size, pdf_size,
			   xml_url, pdf_url, generated_at, updated_at
		FROM invoice_files
		WHERE invoice_id = $1
	`

	var files models.InvoiceFiles
	err := r.db.QueryRowWithTimeout(query, invoiceID).Scan(
		&files.ID, &files.InvoiceID, &files.XMLKey, &files.PDFKey,
		&files.XMLSize, &files.PDFSize, &files.XMLURL, &files.PDFURL,
		&files.GeneratedAt, &files.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("archive record for invoice %s: %w", invoiceID, models.ErrInvoiceNotFound)
		}
		return nil, fmt.Errorf("error querying invoice files: %w", err)
	}

	return &files, nil
}

// Update replaces the archive keys of an invoice
func (r *InvoiceFilesRepository) Update(files *models.InvoiceFiles) error {
	query := `
		UPDATE invoice_files
		SET xml_key = $1, pdf_key = $2, xml_size = $3, pdf_size = $4,
			xml_url = $5, pdf_url = $6, updated_at = $7
		WHERE invoice_id = $8
	`

	_, err := r.db.ExecWithTimeout(query,
		files.XMLKey, files.PDFKey, files.XMLSize, files.PDFSize,
		files.XMLURL, files.PDFURL, time.Now(), files.InvoiceID,
	)

	if err != nil {
		return fmt.Errorf("error updating invoice files record: %w", err)
	}

	return nil
}

// Exists reports whether an archive record exists for an invoice
func (r *InvoiceFilesRepository) Exists(invoiceID uuid.UUID) (bool, error) {
	query := `SELECT COUNT(*) FROM invoice_files WHERE invoice_id = $1`

	var count int
	err := r.db.QueryRowWithTimeout(query, invoiceID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error checking invoice files existence: %w", err)
	}

	return count > 0, nil
}
