package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/zatca-service/internal/config"
	"github.com/hypernova-labs/zatca-service/internal/database"
	"github.com/hypernova-labs/zatca-service/internal/email"
	"github.com/hypernova-labs/zatca-service/internal/models"
	"github.com/hypernova-labs/zatca-service/internal/qr"
	"github.com/hypernova-labs/zatca-service/internal/signing"
	"github.com/hypernova-labs/zatca-service/internal/ubl"
	"github.com/hypernova-labs/zatca-service/internal/zatca"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// processingLockTTL bounds how long a crashed run can keep an invoice locked
const processingLockTTL = 2 * time.Minute

// invoiceStore is the invoice persistence surface the service depends on
type invoiceStore interface {
	Create(invoice *models.Invoice) error
	GetByID(id uuid.UUID) (*models.Invoice, error)
	GetByNumber(invoiceNumber string) (*models.Invoice, error)
	BeginProcessing(id uuid.UUID, override bool) (bool, error)
	UpdateStatus(id uuid.UUID, status models.InvoiceStatus) error
	RecordOutcome(invoice *models.Invoice) error
}

// auditStore appends and lists submission attempt records
type auditStore interface {
	Create(entry *models.AuditLogEntry) error
	ListByInvoiceID(invoiceID uuid.UUID) ([]models.AuditLogEntry, error)
}

// processingLocker serializes submission runs per invoice
type processingLocker interface {
	AcquireProcessingLock(ctx context.Context, invoiceID uuid.UUID, ttl time.Duration) (bool, error)
	ReleaseProcessingLock(ctx context.Context, invoiceID uuid.UUID) error
}

// InvoiceService orchestrates the ZATCA pipeline for invoices
type InvoiceService struct {
	invoiceRepo invoiceStore
	auditRepo   auditStore
	locker      processingLocker
	builder     *ubl.Builder
	signer      *signing.Signer
	client      *zatca.Client
	generator   *DocumentGenerator
	archive     *ArchiveService
	emails      *email.ResendService
	seller      config.SellerConfig
	logger      *logrus.Logger
}

// NewInvoiceService creates the invoice service and its repositories
func NewInvoiceService(
	db *database.DB,
	redis *database.Redis,
	storageClient *database.StorageClient,
	signer *signing.Signer,
	client *zatca.Client,
	resendService *email.ResendService,
	seller config.SellerConfig,
	logger *logrus.Logger,
) *InvoiceService {
	invoiceRepo := database.NewInvoiceRepository(db, logger)
	auditRepo := database.NewAuditLogRepository(db, logger)
	invoiceFilesRepo := database.NewInvoiceFilesRepository(db, logger)

	var archive *ArchiveService
	if storageClient != nil {
		archive = NewArchiveService(storageClient, invoiceFilesRepo, logger)
	}

	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		locker:      redis,
		builder:     ubl.NewBuilder(logger),
		signer:      signer,
		client:      client,
		generator:   NewDocumentGenerator(logger),
		archive:     archive,
		emails:      resendService,
		seller:      seller,
		logger:      logger,
	}
}

// CreateInvoice registers a host ERP invoice for later submission
func (s *InvoiceService) CreateInvoice(req *models.CreateInvoiceRequest) (*models.InvoiceResponse, error) {
	now := time.Now()
	invoice := &models.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: req.InvoiceNumber,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		Currency:      defaultString(req.Currency, "SAR"),
		Mode:          req.Mode,
		Supplier:      s.supplierParty(req.Supplier),
		Customer:      partyFromRequest(&req.Customer),
		Status:        models.InvoiceStatusUnprocessed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if invoice.Mode == "" {
		invoice.Mode = models.SubmissionModeReporting
	}

	items, netSum, taxSum, err := buildItems(invoice.ID, req.Items)
	if err != nil {
		return nil, models.NewAPIError(models.NewValidationError(err.Error(), nil))
	}
	invoice.Items = items

	if req.Totals != nil {
		if err := applyLedgerTotals(invoice, req.Totals); err != nil {
			return nil, models.NewAPIError(models.NewValidationError(err.Error(), nil))
		}
		// The host ledger is authoritative; a drift against the line sums is
		// worth a warning but not a rejection.
		if !invoice.NetTotal.Equal(netSum) || !invoice.TaxTotal.Equal(taxSum) {
			s.logger.WithFields(logrus.Fields{
				"invoice_number": invoice.InvoiceNumber,
				"ledger_net":     invoice.NetTotal.String(),
				"computed_net":   netSum.String(),
				"ledger_tax":     invoice.TaxTotal.String(),
				"computed_tax":   taxSum.String(),
			}).Warn("Ledger totals differ from line sums")
		}
	} else {
		invoice.NetTotal = netSum
		invoice.TaxTotal = taxSum
		invoice.GrandTotal = netSum.Add(taxSum)
	}

	if err := s.invoiceRepo.Create(invoice); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"mode":           invoice.Mode,
		"grand_total":    invoice.GrandTotal.StringFixed(2),
	}).Info("Invoice registered")

	return &models.InvoiceResponse{
		ID:            invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        invoice.Status,
		Mode:          invoice.Mode,
		Totals:        invoiceTotals(invoice),
		CreatedAt:     invoice.CreatedAt,
		Links:         invoiceLinks(invoice.ID),
	}, nil
}

// ProcessInvoice runs the submission pipeline for one invoice. The state
// guards and the per-invoice lock together guarantee at most one submission
// attempt reaches ZATCA per call, and none at all for rejected states.
func (s *InvoiceService) ProcessInvoice(ctx context.Context, id uuid.UUID, override bool) (*models.ProcessResponse, error) {
	invoice, err := s.invoiceRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if err := guardState(invoice.Status, override); err != nil {
		return nil, err
	}

	acquired, err := s.locker.AcquireProcessingLock(ctx, id, processingLockTTL)
	if err != nil {
		return nil, fmt.Errorf("error acquiring processing lock: %w", err)
	}
	if !acquired {
		return nil, models.ErrProcessingInProgress
	}
	defer func() {
		// Release on a fresh context: the request context may already be gone
		if err := s.locker.ReleaseProcessingLock(context.Background(), id); err != nil {
			s.logger.WithError(err).WithField("invoice_id", id).Warn("Failed to release processing lock")
		}
	}()

	started, err := s.invoiceRepo.BeginProcessing(id, override)
	if err != nil {
		return nil, fmt.Errorf("error marking invoice as processing: %w", err)
	}
	if !started {
		// Lost a race between the state read and the transition
		current, err := s.invoiceRepo.GetByID(id)
		if err != nil {
			return nil, err
		}
		if err := guardState(current.Status, override); err != nil {
			return nil, err
		}
		return nil, models.ErrProcessingInProgress
	}
	invoice.Status = models.InvoiceStatusProcessing

	s.logger.WithFields(logrus.Fields{
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"mode":           invoice.Mode,
		"override":       override,
	}).Info("Starting ZATCA submission")

	result := s.submit(ctx, invoice)
	s.record(invoice, result)
	s.afterSubmission(ctx, invoice, result)

	s.logger.WithFields(logrus.Fields{
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"status":         invoice.Status,
		"http_status":    result.StatusCode,
	}).Info("ZATCA submission finished")

	return &models.ProcessResponse{
		ID:              invoice.ID,
		InvoiceNumber:   invoice.InvoiceNumber,
		Status:          invoice.Status,
		ClearanceStatus: invoice.ClearanceStatus,
		ReportingStatus: invoice.ReportingStatus,
		Message:         result.Message,
	}, nil
}

// GetInvoice returns the stored state of an invoice, audit history included
func (s *InvoiceService) GetInvoice(id uuid.UUID) (*models.InvoiceStatusResponse, error) {
	invoice, err := s.invoiceRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return s.statusResponse(invoice), nil
}

// GetInvoiceByNumber resolves an invoice by its host document number
func (s *InvoiceService) GetInvoiceByNumber(invoiceNumber string) (*models.InvoiceStatusResponse, error) {
	invoice, err := s.invoiceRepo.GetByNumber(invoiceNumber)
	if err != nil {
		return nil, err
	}
	return s.statusResponse(invoice), nil
}

// GetZATCAStatus polls ZATCA for the live status of a submitted invoice
func (s *InvoiceService) GetZATCAStatus(ctx context.Context, id uuid.UUID) (*models.LiveStatusResponse, error) {
	invoice, err := s.invoiceRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	var status *zatca.StatusResponse
	if invoice.Mode == models.SubmissionModeClearance {
		status, err = s.client.GetClearanceStatus(ctx, invoice.ID.String())
	} else {
		status, err = s.client.GetReportingStatus(ctx, invoice.ID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("error polling ZATCA status: %w", err)
	}

	return &models.LiveStatusResponse{
		ID:              invoice.ID,
		InvoiceNumber:   invoice.InvoiceNumber,
		Mode:            invoice.Mode,
		Status:          invoice.Status,
		ClearanceStatus: status.ClearanceStatus,
		ReportingStatus: status.ReportingStatus,
	}, nil
}

// CancelInvoice marks an invoice cancelled. Allowed from any state; ZATCA
// is never contacted. Cancelling an already cancelled invoice is a no-op.
func (s *InvoiceService) CancelInvoice(id uuid.UUID) (*models.ProcessResponse, error) {
	invoice, err := s.invoiceRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if invoice.Status != models.InvoiceStatusCancelled {
		if err := s.invoiceRepo.UpdateStatus(id, models.InvoiceStatusCancelled); err != nil {
			return nil, err
		}
		invoice.Status = models.InvoiceStatusCancelled
		s.logger.WithFields(logrus.Fields{
			"invoice_id":     invoice.ID,
			"invoice_number": invoice.InvoiceNumber,
		}).Info("Invoice cancelled")
	}

	return &models.ProcessResponse{
		ID:            invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        invoice.Status,
	}, nil
}

// CheckInvoiceCompliance runs the document through the ZATCA compliance
// endpoint as a dry run. Nothing is recorded and the invoice state does not
// change, so the invoice stays submittable afterwards.
func (s *InvoiceService) CheckInvoiceCompliance(ctx context.Context, id uuid.UUID) (*models.SubmissionResult, error) {
	invoice, err := s.invoiceRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return nil, models.ErrInvoiceCancelled
	}

	payload, aborted := s.buildPayload(invoice)
	if aborted != nil {
		return aborted, nil
	}
	return s.client.CheckCompliance(ctx, payload), nil
}

// DownloadInvoiceFile returns one archived artifact and its filename
func (s *InvoiceService) DownloadInvoiceFile(ctx context.Context, id uuid.UUID, fileType string) ([]byte, string, error) {
	if s.archive == nil {
		return nil, "", fmt.Errorf("artifact archive is not configured")
	}
	return s.archive.GetArtifact(ctx, id, fileType)
}

// guardState rejects runs the current invoice state forbids. A successful
// invoice needs an explicit override to run again.
func guardState(status models.InvoiceStatus, override bool) error {
	switch status {
	case models.InvoiceStatusCancelled:
		return models.ErrInvoiceCancelled
	case models.InvoiceStatusProcessing:
		return models.ErrProcessingInProgress
	case models.InvoiceStatusSuccess:
		if !override {
			return models.ErrAlreadyProcessed
		}
	}
	return nil
}

// submit builds, signs and submits one invoice. Fatal document or signing
// problems short-circuit into an error result without touching the network.
func (s *InvoiceService) submit(ctx context.Context, invoice *models.Invoice) *models.SubmissionResult {
	payload, aborted := s.buildPayload(invoice)
	if aborted != nil {
		return aborted
	}

	if invoice.Mode == models.SubmissionModeClearance {
		return s.client.ClearInvoice(ctx, payload)
	}
	return s.client.ReportInvoice(ctx, payload)
}

// buildPayload runs the document, QR and signing stages and assembles the
// submission body. On a fatal stage failure it returns a nil payload and an
// aborted error result instead.
func (s *InvoiceService) buildPayload(invoice *models.Invoice) (*zatca.SubmissionPayload, *models.SubmissionResult) {
	doc, err := s.builder.Build(invoice)
	if err != nil {
		return nil, abortedResult(fmt.Sprintf("document build failed: %v", err))
	}

	xmlData, err := ubl.Serialize(doc)
	if err != nil {
		return nil, abortedResult(fmt.Sprintf("document serialization failed: %v", err))
	}

	qrPayload, err := qr.FromInvoice(invoice).EncodeBase64()
	if err != nil {
		return nil, abortedResult(fmt.Sprintf("qr encoding failed: %v", err))
	}

	signed, err := s.signer.Sign(xmlData)
	if err != nil {
		return nil, abortedResult(fmt.Sprintf("signing failed: %v", err))
	}
	if signed.Grade == signing.GradeStub {
		s.logger.WithField("invoice_id", invoice.ID).Warn("Document carries a stub-grade signature")
	}

	xmlContent := string(xmlData)
	invoice.XMLContent = &xmlContent
	invoice.QRPayload = &qrPayload
	invoice.Signature = &signed.Signature

	return &zatca.SubmissionPayload{
		InvoiceHash: signing.Hash(xmlData),
		UUID:        invoice.ID.String(),
		Invoice:     base64.StdEncoding.EncodeToString(xmlData),
		Signature:   signed.Signature,
	}, nil
}

// record writes the outcome onto the invoice row and appends one audit
// entry. Recording problems are logged, never returned: a bookkeeping
// failure must not mask the submission outcome, and no attempt may leave
// the invoice stuck in processing.
func (s *InvoiceService) record(invoice *models.Invoice, result *models.SubmissionResult) {
	if result.Status == models.SubmissionStatusSuccess {
		invoice.Status = models.InvoiceStatusSuccess
	} else {
		invoice.Status = models.InvoiceStatusError
	}
	if result.ClearanceStatus != "" {
		invoice.ClearanceStatus = &result.ClearanceStatus
	}
	if result.ReportingStatus != "" {
		invoice.ReportingStatus = &result.ReportingStatus
	}

	if err := s.invoiceRepo.RecordOutcome(invoice); err != nil {
		s.logger.WithError(err).WithField("invoice_id", invoice.ID).Error("Failed to record invoice outcome")
	}

	entry := &models.AuditLogEntry{
		ID:            uuid.New(),
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        string(result.Status),
		Response:      auditResponse(result),
		StatusCode:    result.StatusCode,
		CreatedAt:     time.Now(),
	}
	if err := s.auditRepo.Create(entry); err != nil {
		s.logger.WithError(err).WithField("invoice_id", invoice.ID).Error("Failed to append audit log entry")
	}
}

// afterSubmission runs the best-effort follow-ups: PDF rendering, artifact
// archival and notification emails. Nothing here may change the recorded
// outcome.
func (s *InvoiceService) afterSubmission(ctx context.Context, invoice *models.Invoice, result *models.SubmissionResult) {
	if invoice.Status != models.InvoiceStatusSuccess {
		if s.emails != nil {
			if err := s.emails.SendFailureAlert(invoice, result); err != nil {
				s.logger.WithError(err).WithField("invoice_id", invoice.ID).Warn("Failed to send failure alert")
			}
		}
		return
	}

	pdfData, err := s.generator.GenerateInvoicePDF(invoice)
	if err != nil {
		s.logger.WithError(err).WithField("invoice_id", invoice.ID).Warn("Failed to render invoice PDF")
		return
	}

	if s.archive != nil {
		if _, err := s.archive.StoreArtifacts(ctx, invoice, pdfData); err != nil {
			s.logger.WithError(err).WithField("invoice_id", invoice.ID).Warn("Failed to archive invoice artifacts")
		}
	}

	if s.emails != nil && invoice.Customer.Email != nil && *invoice.Customer.Email != "" {
		if err := s.emails.SendInvoiceEmail(invoice); err != nil {
			s.logger.WithError(err).WithField("invoice_id", invoice.ID).Warn("Failed to send invoice email")
		}
	}
}

// statusResponse maps a stored invoice to its API representation
func (s *InvoiceService) statusResponse(invoice *models.Invoice) *models.InvoiceStatusResponse {
	audit, err := s.auditRepo.ListByInvoiceID(invoice.ID)
	if err != nil {
		s.logger.WithError(err).WithField("invoice_id", invoice.ID).Warn("Failed to load audit history")
	}

	return &models.InvoiceStatusResponse{
		ID:              invoice.ID,
		InvoiceNumber:   invoice.InvoiceNumber,
		Status:          invoice.Status,
		ClearanceStatus: invoice.ClearanceStatus,
		ReportingStatus: invoice.ReportingStatus,
		QRPayload:       invoice.QRPayload,
		Totals:          invoiceTotals(invoice),
		Audit:           audit,
		CreatedAt:       invoice.CreatedAt,
		Links:           invoiceLinks(invoice.ID),
	}
}

// supplierParty uses the request supplier when given and falls back to the
// configured seller identity otherwise
func (s *InvoiceService) supplierParty(req *models.PartyRequest) models.Party {
	if req != nil {
		return partyFromRequest(req)
	}

	seller := s.seller
	party := models.Party{
		Name:       seller.CompanyName,
		Street:     seller.Street,
		City:       seller.City,
		PostalZone: seller.PostalZone,
		Country:    seller.Country,
	}
	if seller.VATNumber != "" {
		party.VATNumber = &seller.VATNumber
	}
	if seller.CRNumber != "" {
		party.CRNumber = &seller.CRNumber
	}
	return party
}

// buildItems parses the request lines and returns them with their net and
// tax sums. Line amounts are rounded to two decimals.
func buildItems(invoiceID uuid.UUID, reqs []models.ItemRequest) ([]models.InvoiceItem, decimal.Decimal, decimal.Decimal, error) {
	items := make([]models.InvoiceItem, len(reqs))
	netSum := decimal.Zero
	taxSum := decimal.Zero

	for i, itemReq := range reqs {
		quantity, err := decimal.NewFromString(itemReq.Quantity)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("invalid quantity on line %d", i+1)
		}
		unitPrice, err := decimal.NewFromString(itemReq.UnitPrice)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("invalid unit price on line %d", i+1)
		}
		taxRate, err := decimal.NewFromString(itemReq.TaxRate)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("invalid tax rate on line %d", i+1)
		}

		netAmount := quantity.Mul(unitPrice).Round(2)
		taxAmount := netAmount.Mul(taxRate).Div(decimal.NewFromInt(100)).Round(2)

		items[i] = models.InvoiceItem{
			ID:          uuid.New(),
			InvoiceID:   invoiceID,
			LineNo:      i + 1,
			Description: itemReq.Description,
			Quantity:    quantity,
			UnitCode:    defaultString(itemReq.UnitCode, "EA"),
			UnitPrice:   unitPrice,
			TaxRate:     taxRate,
			NetAmount:   netAmount,
			TaxAmount:   taxAmount,
			CreatedAt:   time.Now(),
		}
		netSum = netSum.Add(netAmount)
		taxSum = taxSum.Add(taxAmount)
	}

	return items, netSum, taxSum, nil
}

// applyLedgerTotals copies the host ledger totals onto the invoice
func applyLedgerTotals(invoice *models.Invoice, totals *models.TotalsRequest) error {
	net, err := decimal.NewFromString(totals.Net)
	if err != nil {
		return fmt.Errorf("invalid net total")
	}
	tax, err := decimal.NewFromString(totals.Tax)
	if err != nil {
		return fmt.Errorf("invalid tax total")
	}
	total, err := decimal.NewFromString(totals.Total)
	if err != nil {
		return fmt.Errorf("invalid grand total")
	}
	if !net.Add(tax).Equal(total) {
		return fmt.Errorf("grand total does not equal net plus tax")
	}

	invoice.NetTotal = net
	invoice.TaxTotal = tax
	invoice.GrandTotal = total
	return nil
}

// abortedResult represents a fatal pre-submission failure
func abortedResult(message string) *models.SubmissionResult {
	return &models.SubmissionResult{
		Status:  models.SubmissionStatusError,
		Message: message,
	}
}

// auditResponse picks the provider body when there is one
func auditResponse(result *models.SubmissionResult) string {
	if result.RawResponse != "" {
		return result.RawResponse
	}
	return result.Message
}

func partyFromRequest(req *models.PartyRequest) models.Party {
	return models.Party{
		Name:       req.Name,
		VATNumber:  req.VATNumber,
		CRNumber:   req.CRNumber,
		Email:      req.Email,
		Street:     req.Street,
		City:       req.City,
		PostalZone: req.PostalZone,
		Country:    req.Country,
	}
}

func invoiceTotals(invoice *models.Invoice) models.Totals {
	return models.Totals{
		Net:   invoice.NetTotal.StringFixed(2),
		Tax:   invoice.TaxTotal.StringFixed(2),
		Total: invoice.GrandTotal.StringFixed(2),
	}
}

func invoiceLinks(id uuid.UUID) models.Links {
	return models.Links{
		Self:   fmt.Sprintf("/api/v1/invoices/%s", id),
		Status: fmt.Sprintf("/api/v1/invoices/%s/zatca-status", id),
	}
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
