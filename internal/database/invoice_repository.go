package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/zatca-service/internal/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// InvoiceRepository handles database operations for invoices and their items
type InvoiceRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *DB, logger *logrus.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an invoice together with its items
func (r *InvoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.WithTransaction(func(tx *sql.Tx) error {
		query := `
			INSERT INTO invoices (
				id, invoice_number, issue_date, due_date, currency, mode,
				supplier_name, supplier_vat_number, supplier_cr_number,
				supplier_street, supplier_city, supplier_postal_zone, supplier_country,
				customer_name, customer_vat_number, customer_cr_number, customer_email,
				customer_street, customer_city, customer_postal_zone, customer_country,
				net_total, tax_total, grand_total, status, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
			)
		`

		_, err := tx.Exec(query,
			invoice.ID, invoice.InvoiceNumber, invoice.IssueDate, invoice.DueDate,
			invoice.Currency, invoice.Mode,
			invoice.Supplier.Name, invoice.Supplier.VATNumber, invoice.Supplier.CRNumber,
			invoice.Supplier.Street, invoice.Supplier.City, invoice.Supplier.PostalZone, invoice.Supplier.Country,
			invoice.Customer.Name, invoice.Customer.VATNumber, invoice.Customer.CRNumber, invoice.Customer.Email,
			invoice.Customer.Street, invoice.Customer.City, invoice.Customer.PostalZone, invoice.Customer.Country,
			invoice.NetTotal, invoice.TaxTotal, invoice.GrandTotal,
			invoice.Status, invoice.CreatedAt, invoice.UpdatedAt,
		)

		if err != nil {
			if isUniqueViolation(err) {
				return models.ErrDuplicateInvoice
			}
			return fmt.Errorf("error inserting invoice: %w", err)
		}

		for _, item := range invoice.Items {
			itemQuery := `
				INSERT INTO invoice_items (
					id, invoice_id, line_no, description, qty, unit_code,
					unit_price, tax_rate, net_amount, tax_amount, created_at
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
				)
			`

			_, err := tx.Exec(itemQuery,
				item.ID, item.InvoiceID, item.LineNo, item.Description,
				item.Quantity, item.UnitCode, item.UnitPrice, item.TaxRate,
				item.NetAmount, item.TaxAmount, item.CreatedAt,
			)

			if err != nil {
				return fmt.Errorf("error inserting invoice item: %w", err)
			}
		}

		return nil
	})
}

// GetByID returns an invoice with its items
func (r *InvoiceRepository) GetByID(id uuid.UUID) (*models.Invoice, error) {
	query := `
		SELECT
			id, invoice_number, issue_date, due_date, currency, mode,
			supplier_name, supplier_vat_number, supplier_cr_number,
			supplier_street, supplier_city, supplier_postal_zone, supplier_country,
			customer_name, customer_vat_number, customer_cr_number, customer_email,
			customer_street, customer_city, customer_postal_zone, customer_country,
			net_total, tax_total, grand_total, status, clearance_status, reporting_status,
			qr_payload, signature, xml_content, created_at, updated_at
		FROM invoices
		WHERE id = $1
	`

	var invoice models.Invoice
	err := r.db.QueryRowWithTimeout(query, id).Scan(
		&invoice.ID, &invoice.InvoiceNumber, &invoice.IssueDate, &invoice.DueDate,
		&invoice.Currency, &invoice.Mode,
		&invoice.Supplier.Name, &invoice.Supplier.VATNumber, &invoice.Supplier.CRNumber,
		&invoice.Supplier.Street, &invoice.Supplier.City, &invoice.Supplier.PostalZone, &invoice.Supplier.Country,
		&invoice.Customer.Name, &invoice.Customer.VATNumber, &invoice.Customer.CRNumber, &invoice.Customer.Email,
		&invoice.Customer.Street, &invoice.Customer.City, &invoice.Customer.PostalZone, &invoice.Customer.Country,
		&invoice.NetTotal, &invoice.TaxTotal, &invoice.GrandTotal,
		&invoice.Status, &invoice.ClearanceStatus, &invoice.ReportingStatus,
		&invoice.QRPayload, &invoice.Signature, &invoice.XMLContent,
		&invoice.CreatedAt, &invoice.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("error querying invoice: %w", err)
	}

	items, err := r.GetItemsByInvoiceID(id)
	if err != nil {
		r.logger.Warnf("Error getting items for invoice %s: %v", id, err)
	}

	invoice.Items = items

	return &invoice, nil
}

// GetByNumber returns an invoice by its host document number
func (r *InvoiceRepository) GetByNumber(invoiceNumber string) (*models.Invoice, error) {
	query := `
		SELECT id FROM invoices WHERE invoice_number = $1
	`

	var id uuid.UUID
	err := r.db.QueryRowWithTimeout(query, invoiceNumber).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("error querying invoice by number: %w", err)
	}

	return r.GetByID(id)
}

// GetItemsByInvoiceID returns the items of an invoice in line order
func (r *InvoiceRepository) GetItemsByInvoiceID(invoiceID uuid.UUID) ([]models.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, line_no, description, qty, unit_code,
			   unit_price, tax_rate, net_amount, tax_amount, created_at
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY line_no
	`

	rows, err := r.db.QueryWithTimeout(query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("error querying invoice items: %w", err)
	}
	defer rows.Close()

	var items []models.InvoiceItem
	for rows.Next() {
		var item models.InvoiceItem
		err := rows.Scan(
			&item.ID, &item.InvoiceID, &item.LineNo, &item.Description,
			&item.Quantity, &item.UnitCode, &item.UnitPrice, &item.TaxRate,
			&item.NetAmount, &item.TaxAmount, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning invoice item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

// BeginProcessing flips an invoice into processing when its current state
// allows a new submission run. With override set, an already successful
// invoice may be re-submitted. It reports whether the transition happened.
func (r *InvoiceRepository) BeginProcessing(id uuid.UUID, override bool) (bool, error) {
	allowed := `('unprocessed', 'error')`
	if override {
		allowed = `('unprocessed', 'error', 'success')`
	}

	query := fmt.Sprintf(`
		UPDATE invoices
		SET status = 'processing', updated_at = $1
		WHERE id = $2 AND status IN %s
	`, allowed)

	result, err := r.db.ExecWithTimeout(query, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("error starting invoice processing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// UpdateStatus updates the processing state of an invoice
func (r *InvoiceRepository) UpdateStatus(id uuid.UUID, status models.InvoiceStatus) error {
	query := `
		UPDATE invoices
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.ExecWithTimeout(query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error updating invoice status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrInvoiceNotFound
	}

	return nil
}

// RecordOutcome writes the final state and ZATCA artifacts of a processing run
func (r *InvoiceRepository) RecordOutcome(invoice *models.Invoice) error {
	query := `
		UPDATE invoices
		SET status = $1, clearance_status = $2, reporting_status = $3,
			qr_payload = $4, signature = $5, xml_content = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.db.ExecWithTimeout(query,
		invoice.Status, invoice.ClearanceStatus, invoice.ReportingStatus,
		invoice.QRPayload, invoice.Signature, invoice.XMLContent,
		time.Now(), invoice.ID,
	)
	if err != nil {
		return fmt.Errorf("error recording invoice outcome: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrInvoiceNotFound
	}

	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint error
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code.Name() == "unique_violation"
	}
	return false
}
