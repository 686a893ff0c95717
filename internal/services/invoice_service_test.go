package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypernova-labs/zatca-service/internal/config"
	"github.com/hypernova-labs/zatca-service/internal/models"
	"github.com/hypernova-labs/zatca-service/internal/signing"
	"github.com/hypernova-labs/zatca-service/internal/ubl"
	"github.com/hypernova-labs/zatca-service/internal/zatca"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeInvoiceStore keeps invoices in memory with the same state transition
// rules as the repository
type fakeInvoiceStore struct {
	invoices    map[uuid.UUID]*models.Invoice
	recordCalls int
	failRecord  bool
	denyBegin   bool
}

func newFakeInvoiceStore(invoices ...*models.Invoice) *fakeInvoiceStore {
	store := &fakeInvoiceStore{invoices: make(map[uuid.UUID]*models.Invoice)}
	for _, invoice := range invoices {
		store.invoices[invoice.ID] = invoice
	}
	return store
}

func (f *fakeInvoiceStore) Create(invoice *models.Invoice) error {
	for _, existing := range f.invoices {
		if existing.InvoiceNumber == invoice.InvoiceNumber {
			return models.ErrDuplicateInvoice
		}
	}
	f.invoices[invoice.ID] = invoice
	return nil
}

func (f *fakeInvoiceStore) GetByID(id uuid.UUID) (*models.Invoice, error) {
	invoice, ok := f.invoices[id]
	if !ok {
		return nil, models.ErrInvoiceNotFound
	}
	copied := *invoice
	return &copied, nil
}

func (f *fakeInvoiceStore) GetByNumber(invoiceNumber string) (*models.Invoice, error) {
	for _, invoice := range f.invoices {
		if invoice.InvoiceNumber == invoiceNumber {
			copied := *invoice
			return &copied, nil
		}
	}
	return nil, models.ErrInvoiceNotFound
}

func (f *fakeInvoiceStore) BeginProcessing(id uuid.UUID, override bool) (bool, error) {
	if f.denyBegin {
		return false, nil
	}
	invoice, ok := f.invoices[id]
	if !ok {
		return false, nil
	}
	allowed := invoice.Status == models.InvoiceStatusUnprocessed || invoice.Status == models.InvoiceStatusError
	if override && invoice.Status == models.InvoiceStatusSuccess {
		allowed = true
	}
	if !allowed {
		return false, nil
	}
	invoice.Status = models.InvoiceStatusProcessing
	return true, nil
}

func (f *fakeInvoiceStore) UpdateStatus(id uuid.UUID, status models.InvoiceStatus) error {
	invoice, ok := f.invoices[id]
	if !ok {
		return models.ErrInvoiceNotFound
	}
	invoice.Status = status
	return nil
}

func (f *fakeInvoiceStore) RecordOutcome(invoice *models.Invoice) error {
	f.recordCalls++
	if f.failRecord {
		return fmt.Errorf("record failure")
	}
	stored, ok := f.invoices[invoice.ID]
	if !ok {
		return models.ErrInvoiceNotFound
	}
	stored.Status = invoice.Status
	stored.ClearanceStatus = invoice.ClearanceStatus
	stored.ReportingStatus = invoice.ReportingStatus
	stored.QRPayload = invoice.QRPayload
	stored.Signature = invoice.Signature
	stored.XMLContent = invoice.XMLContent
	return nil
}

// fakeAuditStore collects audit entries in memory
type fakeAuditStore struct {
	entries    []models.AuditLogEntry
	failCreate bool
}

func (f *fakeAuditStore) Create(entry *models.AuditLogEntry) error {
	if f.failCreate {
		return fmt.Errorf("audit failure")
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditStore) ListByInvoiceID(invoiceID uuid.UUID) ([]models.AuditLogEntry, error) {
	var matched []models.AuditLogEntry
	for _, entry := range f.entries {
		if entry.InvoiceID == invoiceID {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

// fakeLocker mimics the Redis SetNX lock
type fakeLocker struct {
	held     map[uuid.UUID]bool
	acquires int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[uuid.UUID]bool)}
}

func (f *fakeLocker) AcquireProcessingLock(ctx context.Context, invoiceID uuid.UUID, ttl time.Duration) (bool, error) {
	f.acquires++
	if f.held[invoiceID] {
		return false, nil
	}
	f.held[invoiceID] = true
	return true, nil
}

func (f *fakeLocker) ReleaseProcessingLock(ctx context.Context, invoiceID uuid.UUID) error {
	delete(f.held, invoiceID)
	return nil
}

// zatcaCapture records what the fake provider endpoint saw
type zatcaCapture struct {
	calls    int
	lastPath string
}

func newZATCAServer(status int, body string) (*httptest.Server, *zatcaCapture) {
	capture := &zatcaCapture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capture.calls++
		capture.lastPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	return server, capture
}

func newTestService(t *testing.T, store *fakeInvoiceStore, audit *fakeAuditStore, locker *fakeLocker, serverURL string) *InvoiceService {
	t.Helper()
	logger := testLogger()

	signer, err := signing.NewSigner(config.SigningConfig{StubSecret: "test-secret"}, logger)
	require.NoError(t, err)

	return &InvoiceService{
		invoiceRepo: store,
		auditRepo:   audit,
		locker:      locker,
		builder:     ubl.NewBuilder(logger),
		signer:      signer,
		client: zatca.NewClient(zatca.ClientConfig{
			BaseURL: serverURL,
			APIKey:  "test-otp",
			Secret:  "test-secret",
		}, logger),
		generator: NewDocumentGenerator(logger),
		seller: config.SellerConfig{
			CompanyName: "Gulf Dates Trading Co",
			VATNumber:   "310122393500003",
			Street:      "King Fahd Road",
			City:        "Riyadh",
			Country:     "SA",
		},
		logger: logger,
	}
}

func storedInvoice(status models.InvoiceStatus) *models.Invoice {
	vat := "310122393500003"
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	id := uuid.New()
	return &models.Invoice{
		ID:            id,
		InvoiceNumber: "INV-2024-0117",
		IssueDate:     now,
		Currency:      "SAR",
		Mode:          models.SubmissionModeReporting,
		Supplier: models.Party{
			Name:      "Gulf Dates Trading Co",
			VATNumber: &vat,
			Street:    "King Fahd Road",
			City:      "Riyadh",
			Country:   "SA",
		},
		Customer:   models.Party{Name: "Riyadh Retail Buyer"},
		NetTotal:   decimal.NewFromInt(1000),
		TaxTotal:   decimal.NewFromInt(150),
		GrandTotal: decimal.NewFromInt(1150),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
		Items: []models.InvoiceItem{
			{
				ID:          uuid.New(),
				InvoiceID:   id,
				LineNo:      1,
				Description: "Ajwa dates 5kg box",
				Quantity:    decimal.NewFromInt(10),
				UnitCode:    "EA",
				UnitPrice:   decimal.NewFromInt(100),
				TaxRate:     decimal.NewFromInt(15),
				NetAmount:   decimal.NewFromInt(1000),
				TaxAmount:   decimal.NewFromInt(150),
			},
		},
	}
}

func TestProcessInvoiceReported(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusUnprocessed)
	store := newFakeInvoiceStore(invoice)
	audit := &fakeAuditStore{}
	locker := newFakeLocker()
	service := newTestService(t, store, audit, locker, server.URL)

	response, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	require.NoError(t, err)

	assert.Equal(t, models.InvoiceStatusSuccess, response.Status)
	require.NotNil(t, response.ReportingStatus)
	assert.Equal(t, "REPORTED", *response.ReportingStatus)
	assert.Equal(t, 1, capture.calls)
	assert.Equal(t, "/invoices/reporting/single", capture.lastPath)

	stored := store.invoices[invoice.ID]
	assert.Equal(t, models.InvoiceStatusSuccess, stored.Status)
	require.NotNil(t, stored.QRPayload)
	require.NotNil(t, stored.Signature)
	require.NotNil(t, stored.XMLContent)
	assert.Contains(t, *stored.XMLContent, "<Invoice")

	require.Len(t, audit.entries, 1)
	assert.Equal(t, string(models.SubmissionStatusSuccess), audit.entries[0].Status)
	assert.Equal(t, http.StatusOK, audit.entries[0].StatusCode)

	assert.False(t, locker.held[invoice.ID], "processing lock must be released")
}

func TestProcessInvoiceClearanceMode(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"clearanceStatus":"CLEARED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusUnprocessed)
	invoice.Mode = models.SubmissionModeClearance
	store := newFakeInvoiceStore(invoice)
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), server.URL)

	response, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	require.NoError(t, err)

	assert.Equal(t, "/invoices/clearance/single", capture.lastPath)
	assert.Equal(t, models.InvoiceStatusSuccess, response.Status)
	require.NotNil(t, response.ClearanceStatus)
	assert.Equal(t, "CLEARED", *response.ClearanceStatus)
}

func TestProcessInvoiceProviderRejection(t *testing.T) {
	server, capture := newZATCAServer(http.StatusInternalServerError, `{"errors":["invoice hash mismatch"]}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusUnprocessed)
	store := newFakeInvoiceStore(invoice)
	audit := &fakeAuditStore{}
	service := newTestService(t, store, audit, newFakeLocker(), server.URL)

	response, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	require.NoError(t, err)

	assert.Equal(t, 1, capture.calls)
	assert.Equal(t, models.InvoiceStatusError, response.Status)
	assert.Equal(t, models.InvoiceStatusError, store.invoices[invoice.ID].Status,
		"a failed submission must never leave the invoice in processing")

	require.Len(t, audit.entries, 1)
	assert.Equal(t, string(models.SubmissionStatusError), audit.entries[0].Status)
	assert.Equal(t, http.StatusInternalServerError, audit.entries[0].StatusCode)
	assert.Contains(t, audit.entries[0].Response, "invoice hash mismatch")
}

func TestProcessInvoiceAlreadySucceeded(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusSuccess)
	store := newFakeInvoiceStore(invoice)
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), server.URL)

	_, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	assert.ErrorIs(t, err, models.ErrAlreadyProcessed)
	assert.Equal(t, 0, capture.calls, "a rejected re-process must not reach the provider")
	assert.Equal(t, models.InvoiceStatusSuccess, store.invoices[invoice.ID].Status)
}

func TestProcessInvoiceOverrideResubmits(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusSuccess)
	store := newFakeInvoiceStore(invoice)
	audit := &fakeAuditStore{}
	service := newTestService(t, store, audit, newFakeLocker(), server.URL)

	response, err := service.ProcessInvoice(context.Background(), invoice.ID, true)
	require.NoError(t, err)

	assert.Equal(t, 1, capture.calls)
	assert.Equal(t, models.InvoiceStatusSuccess, response.Status)
	require.Len(t, audit.entries, 1)
}

func TestProcessInvoiceCancelledRejected(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusCancelled)
	store := newFakeInvoiceStore(invoice)
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), server.URL)

	_, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	assert.ErrorIs(t, err, models.ErrInvoiceCancelled)
	assert.Equal(t, 0, capture.calls)
}

func TestProcessInvoiceNotFound(t *testing.T) {
	server, _ := newZATCAServer(http.StatusOK, `{}`)
	defer server.Close()

	service := newTestService(t, newFakeInvoiceStore(), &fakeAuditStore{}, newFakeLocker(), server.URL)

	_, err := service.ProcessInvoice(context.Background(), uuid.New(), false)
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)
}

func TestProcessInvoiceLockBusy(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusUnprocessed)
	store := newFakeInvoiceStore(invoice)
	locker := newFakeLocker()
	locker.held[invoice.ID] = true
	service := newTestService(t, store, &fakeAuditStore{}, locker, server.URL)

	_, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	assert.ErrorIs(t, err, models.ErrProcessingInProgress)
	assert.Equal(t, 0, capture.calls)
	assert.Equal(t, models.InvoiceStatusUnprocessed, store.invoices[invoice.ID].Status)
}

func TestProcessInvoiceConcurrentTransition(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	// Another run wins the state transition between our read and our CAS
	invoice := storedInvoice(models.InvoiceStatusUnprocessed)
	store := newFakeInvoiceStore(invoice)
	store.denyBegin = true
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), server.URL)

	_, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	assert.ErrorIs(t, err, models.ErrProcessingInProgress)
	assert.Equal(t, 0, capture.calls)
	assert.Equal(t, models.InvoiceStatusUnprocessed, store.invoices[invoice.ID].Status)
}

func TestProcessInvoiceMissingCustomerName(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusUnprocessed)
	invoice.Customer.Name = ""
	store := newFakeInvoiceStore(invoice)
	audit := &fakeAuditStore{}
	service := newTestService(t, store, audit, newFakeLocker(), server.URL)

	response, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	require.NoError(t, err)

	assert.Equal(t, 0, capture.calls, "a document failure must abort before the network")
	assert.Equal(t, models.InvoiceStatusError, response.Status)
	assert.Contains(t, response.Message, "customer.name")

	require.Len(t, audit.entries, 1, "fatal failures still get an audit entry")
	assert.Equal(t, string(models.SubmissionStatusError), audit.entries[0].Status)
	assert.Equal(t, 0, audit.entries[0].StatusCode)
}

func TestProcessInvoiceNoSigningKey(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusUnprocessed)
	store := newFakeInvoiceStore(invoice)
	audit := &fakeAuditStore{}
	service := newTestService(t, store, audit, newFakeLocker(), server.URL)

	logger := testLogger()
	signer, err := signing.NewSigner(config.SigningConfig{}, logger)
	require.NoError(t, err)
	service.signer = signer

	response, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	require.NoError(t, err)

	assert.Equal(t, 0, capture.calls)
	assert.Equal(t, models.InvoiceStatusError, response.Status)
	assert.Contains(t, response.Message, "signing failed")
	assert.Equal(t, models.InvoiceStatusError, store.invoices[invoice.ID].Status)
	require.Len(t, audit.entries, 1)
}

func TestProcessInvoiceRecorderNeverRaises(t *testing.T) {
	server, _ := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusUnprocessed)
	store := newFakeInvoiceStore(invoice)
	store.failRecord = true
	audit := &fakeAuditStore{failCreate: true}
	service := newTestService(t, store, audit, newFakeLocker(), server.URL)

	response, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	require.NoError(t, err, "bookkeeping failures must not mask the submission outcome")
	assert.Equal(t, models.InvoiceStatusSuccess, response.Status)
}

func TestProcessInvoiceRetryAfterError(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusError)
	store := newFakeInvoiceStore(invoice)
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), server.URL)

	response, err := service.ProcessInvoice(context.Background(), invoice.ID, false)
	require.NoError(t, err)

	assert.Equal(t, 1, capture.calls, "an errored invoice is submittable again without override")
	assert.Equal(t, models.InvoiceStatusSuccess, response.Status)
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	store := newFakeInvoiceStore()
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), "http://unused")

	response, err := service.CreateInvoice(&models.CreateInvoiceRequest{
		InvoiceNumber: "INV-2024-0200",
		IssueDate:     time.Now(),
		Customer:      models.PartyRequest{Name: "Jeddah Wholesale"},
		Items: []models.ItemRequest{
			{Description: "Sukkari dates", Quantity: "2", UnitPrice: "59.99", TaxRate: "15"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.InvoiceStatusUnprocessed, response.Status)
	assert.Equal(t, models.SubmissionModeReporting, response.Mode)
	assert.Equal(t, "119.98", response.Totals.Net)
	assert.Equal(t, "18.00", response.Totals.Tax)
	assert.Equal(t, "137.98", response.Totals.Total)

	stored := store.invoices[response.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "SAR", stored.Currency)
	assert.Equal(t, "EA", stored.Items[0].UnitCode)
	assert.Equal(t, 1, stored.Items[0].LineNo)
	assert.Equal(t, "Gulf Dates Trading Co", stored.Supplier.Name,
		"supplier defaults to the configured seller identity")
}

func TestCreateInvoiceLedgerTotalsAuthoritative(t *testing.T) {
	store := newFakeInvoiceStore()
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), "http://unused")

	response, err := service.CreateInvoice(&models.CreateInvoiceRequest{
		InvoiceNumber: "INV-2024-0201",
		IssueDate:     time.Now(),
		Customer:      models.PartyRequest{Name: "Dammam Retail"},
		Items: []models.ItemRequest{
			{Description: "Khalas dates", Quantity: "1", UnitPrice: "100", TaxRate: "15"},
		},
		Totals: &models.TotalsRequest{Net: "99.50", Tax: "14.93", Total: "114.43"},
	})
	require.NoError(t, err)

	assert.Equal(t, "99.50", response.Totals.Net)
	assert.Equal(t, "14.93", response.Totals.Tax)
	assert.Equal(t, "114.43", response.Totals.Total)
}

func TestCreateInvoiceInconsistentLedgerTotals(t *testing.T) {
	service := newTestService(t, newFakeInvoiceStore(), &fakeAuditStore{}, newFakeLocker(), "http://unused")

	_, err := service.CreateInvoice(&models.CreateInvoiceRequest{
		InvoiceNumber: "INV-2024-0202",
		IssueDate:     time.Now(),
		Customer:      models.PartyRequest{Name: "Dammam Retail"},
		Items: []models.ItemRequest{
			{Description: "Khalas dates", Quantity: "1", UnitPrice: "100", TaxRate: "15"},
		},
		Totals: &models.TotalsRequest{Net: "100.00", Tax: "15.00", Total: "120.00"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grand total")
}

func TestCreateInvoiceInvalidDecimal(t *testing.T) {
	service := newTestService(t, newFakeInvoiceStore(), &fakeAuditStore{}, newFakeLocker(), "http://unused")

	_, err := service.CreateInvoice(&models.CreateInvoiceRequest{
		InvoiceNumber: "INV-2024-0203",
		IssueDate:     time.Now(),
		Customer:      models.PartyRequest{Name: "Dammam Retail"},
		Items: []models.ItemRequest{
			{Description: "Khalas dates", Quantity: "two", UnitPrice: "100", TaxRate: "15"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity on line 1")
}

func TestCreateInvoiceDuplicateNumber(t *testing.T) {
	existing := storedInvoice(models.InvoiceStatusUnprocessed)
	store := newFakeInvoiceStore(existing)
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), "http://unused")

	_, err := service.CreateInvoice(&models.CreateInvoiceRequest{
		InvoiceNumber: existing.InvoiceNumber,
		IssueDate:     time.Now(),
		Customer:      models.PartyRequest{Name: "Dammam Retail"},
		Items: []models.ItemRequest{
			{Description: "Khalas dates", Quantity: "1", UnitPrice: "100", TaxRate: "15"},
		},
	})
	assert.ErrorIs(t, err, models.ErrDuplicateInvoice)
}

func TestCancelInvoiceFromAnyState(t *testing.T) {
	for _, status := range []models.InvoiceStatus{
		models.InvoiceStatusUnprocessed,
		models.InvoiceStatusError,
		models.InvoiceStatusSuccess,
	} {
		invoice := storedInvoice(status)
		store := newFakeInvoiceStore(invoice)
		service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), "http://unused")

		response, err := service.CancelInvoice(invoice.ID)
		require.NoError(t, err, "cancel from %s", status)
		assert.Equal(t, models.InvoiceStatusCancelled, response.Status)
		assert.Equal(t, models.InvoiceStatusCancelled, store.invoices[invoice.ID].Status)
	}
}

func TestCancelInvoiceIdempotent(t *testing.T) {
	invoice := storedInvoice(models.InvoiceStatusCancelled)
	store := newFakeInvoiceStore(invoice)
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), "http://unused")

	response, err := service.CancelInvoice(invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusCancelled, response.Status)
}

func TestCheckComplianceIsDryRun(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusUnprocessed)
	store := newFakeInvoiceStore(invoice)
	audit := &fakeAuditStore{}
	service := newTestService(t, store, audit, newFakeLocker(), server.URL)

	result, err := service.CheckInvoiceCompliance(context.Background(), invoice.ID)
	require.NoError(t, err)

	assert.Equal(t, "/compliance", capture.lastPath)
	assert.Equal(t, models.SubmissionStatusSuccess, result.Status)
	assert.Equal(t, models.InvoiceStatusUnprocessed, store.invoices[invoice.ID].Status,
		"a compliance check must not move the invoice state")
	assert.Equal(t, 0, store.recordCalls)
	assert.Empty(t, audit.entries)
}

func TestCheckComplianceCancelledRejected(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusCancelled)
	service := newTestService(t, newFakeInvoiceStore(invoice), &fakeAuditStore{}, newFakeLocker(), server.URL)

	_, err := service.CheckInvoiceCompliance(context.Background(), invoice.ID)
	assert.ErrorIs(t, err, models.ErrInvoiceCancelled)
	assert.Equal(t, 0, capture.calls)
}

func TestGetInvoiceWithAuditHistory(t *testing.T) {
	invoice := storedInvoice(models.InvoiceStatusError)
	store := newFakeInvoiceStore(invoice)
	audit := &fakeAuditStore{entries: []models.AuditLogEntry{
		{ID: uuid.New(), InvoiceID: invoice.ID, InvoiceNumber: invoice.InvoiceNumber, Status: "error", StatusCode: 500},
	}}
	service := newTestService(t, store, audit, newFakeLocker(), "http://unused")

	response, err := service.GetInvoice(invoice.ID)
	require.NoError(t, err)

	assert.Equal(t, invoice.InvoiceNumber, response.InvoiceNumber)
	assert.Equal(t, "1000.00", response.Totals.Net)
	assert.Equal(t, "1150.00", response.Totals.Total)
	require.Len(t, response.Audit, 1)
	assert.Equal(t, 500, response.Audit[0].StatusCode)
	assert.True(t, strings.HasSuffix(response.Links.Self, invoice.ID.String()))
}

func TestGetInvoiceByNumber(t *testing.T) {
	invoice := storedInvoice(models.InvoiceStatusUnprocessed)
	store := newFakeInvoiceStore(invoice)
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), "http://unused")

	response, err := service.GetInvoiceByNumber(invoice.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, response.ID)

	_, err = service.GetInvoiceByNumber("INV-MISSING")
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)
}

func TestGetZATCAStatusPolling(t *testing.T) {
	server, capture := newZATCAServer(http.StatusOK, `{"reportingStatus":"REPORTED"}`)
	defer server.Close()

	invoice := storedInvoice(models.InvoiceStatusSuccess)
	store := newFakeInvoiceStore(invoice)
	service := newTestService(t, store, &fakeAuditStore{}, newFakeLocker(), server.URL)

	response, err := service.GetZATCAStatus(context.Background(), invoice.ID)
	require.NoError(t, err)

	assert.Equal(t, "/invoices/reporting/single/status/"+invoice.ID.String(), capture.lastPath)
	assert.Equal(t, "REPORTED", response.ReportingStatus)
	assert.Equal(t, models.InvoiceStatusSuccess, response.Status)
}
