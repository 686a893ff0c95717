package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/zatca-service/internal/database"
	"github.com/hypernova-labs/zatca-service/internal/models"
	"github.com/sirupsen/logrus"
)

// ArchiveService stores processed invoice artifacts in object storage and
// records their keys in the local database
type ArchiveService struct {
	storageClient *database.StorageClient
	filesRepo     *database.InvoiceFilesRepository
	logger        *logrus.Logger
}

// NewArchiveService creates a new archive service
func NewArchiveService(storageClient *database.StorageClient, filesRepo *database.InvoiceFilesRepository, logger *logrus.Logger) *ArchiveService {
	return &ArchiveService{
		storageClient: storageClient,
		filesRepo:     filesRepo,
		logger:        logger,
	}
}

// StoreArtifacts uploads the signed XML and rendered PDF of an invoice and
// upserts the archive record
func (s *ArchiveService) StoreArtifacts(ctx context.Context, invoice *models.Invoice, pdfData []byte) (*models.InvoiceFiles, error) {
	if invoice.XMLContent == nil {
		return nil, fmt.Errorf("invoice %s has no serialized document to archive", invoice.ID)
	}
	xmlData := []byte(*invoice.XMLContent)

	xmlKey := artifactKey(invoice.ID, "xml")
	pdfKey := artifactKey(invoice.ID, "pdf")

	xmlURL, err := s.storageClient.Upload(ctx, xmlKey, xmlData, "application/xml")
	if err != nil {
		return nil, fmt.Errorf("error uploading XML artifact: %w", err)
	}

	pdfURL, err := s.storageClient.Upload(ctx, pdfKey, pdfData, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("error uploading PDF artifact: %w", err)
	}

	files := &models.InvoiceFiles{
		ID:          uuid.New(),
		InvoiceID:   invoice.ID,
		XMLKey:      &xmlKey,
		PDFKey:      &pdfKey,
		XMLSize:     int64(len(xmlData)),
		PDFSize:     int64(len(pdfData)),
		XMLURL:      &xmlURL,
		PDFURL:      &pdfURL,
		GeneratedAt: time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.filesRepo.CreateOrUpdate(files); err != nil {
		// Orphaned objects are worse than a missing archive row, clean up
		s.storageClient.Delete(ctx, xmlKey)
		s.storageClient.Delete(ctx, pdfKey)
		return nil, fmt.Errorf("error saving invoice files record: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id": invoice.ID,
		"xml_key":    xmlKey,
		"pdf_key":    pdfKey,
		"xml_size":   files.XMLSize,
		"pdf_size":   files.PDFSize,
	}).Info("Invoice artifacts archived")

	return files, nil
}

// GetArtifact downloads one archived artifact and returns its data with a
// download filename
func (s *ArchiveService) GetArtifact(ctx context.Context, invoiceID uuid.UUID, fileType string) ([]byte, string, error) {
	files, err := s.filesRepo.GetByInvoiceID(invoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("error getting invoice files record: %w", err)
	}

	var key *string
	switch fileType {
	case "pdf":
		key = files.PDFKey
	case "xml":
		key = files.XMLKey
	default:
		return nil, "", fmt.Errorf("invalid file type: %s", fileType)
	}

	if key == nil {
		return nil, "", fmt.Errorf("%s artifact not found for invoice %s", fileType, invoiceID)
	}

	data, err := s.storageClient.Download(ctx, *key)
	if err != nil {
		return nil, "", fmt.Errorf("error downloading %s artifact: %w", fileType, err)
	}

	fileName := fmt.Sprintf("invoice_%s.%s", invoiceID, fileType)
	return data, fileName, nil
}

func artifactKey(invoiceID uuid.UUID, fileType string) string {
	return fmt.Sprintf("invoices/%s/invoice_%s.%s", invoiceID, invoiceID, fileType)
}
