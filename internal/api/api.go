package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hypernova-labs/zatca-service/internal/database"
	"github.com/hypernova-labs/zatca-service/internal/models"
	"github.com/hypernova-labs/zatca-service/internal/services"
	"github.com/sirupsen/logrus"
)

// API handles all HTTP endpoints of the service
type API struct {
	invoiceService *services.InvoiceService
	apiKeyRepo     *database.APIKeyRepository
	logger         *logrus.Logger
}

// NewAPI creates a new API handler set
func NewAPI(
	invoiceService *services.InvoiceService,
	apiKeyRepo *database.APIKeyRepository,
	logger *logrus.Logger,
) *API {
	return &API{
		invoiceService: invoiceService,
		apiKeyRepo:     apiKeyRepo,
		logger:         logger,
	}
}

// CreateInvoice registers an invoice for later ZATCA processing
func (api *API) CreateInvoice(c *gin.Context) {
	var req models.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.logger.WithError(err).Error("Error binding create invoice request")
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	response, err := api.invoiceService.CreateInvoice(&req)
	if err != nil {
		api.respondError(c, err, "Error creating invoice")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetInvoice returns the stored state of an invoice. The path parameter is
// either the invoice UUID or the host document number.
func (api *API) GetInvoice(c *gin.Context) {
	idStr := c.Param("id")

	var (
		response *models.InvoiceStatusResponse
		err      error
	)
	if id, parseErr := uuid.Parse(idStr); parseErr == nil {
		response, err = api.invoiceService.GetInvoice(id)
	} else {
		response, err = api.invoiceService.GetInvoiceByNumber(idStr)
	}
	if err != nil {
		api.respondError(c, err, "Error retrieving invoice")
		return
	}

	c.JSON(http.StatusOK, response)
}

// ProcessInvoice runs the ZATCA submission pipeline for an invoice
func (api *API) ProcessInvoice(c *gin.Context) {
	id, ok := api.invoiceID(c)
	if !ok {
		return
	}

	// The body is optional; an empty body means no override
	var req models.ProcessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
				{Field: "body", Issue: err.Error()},
			}))
			return
		}
	}

	response, err := api.invoiceService.ProcessInvoice(c.Request.Context(), id, req.Override)
	if err != nil {
		api.respondError(c, err, "Error processing invoice")
		return
	}

	c.JSON(http.StatusOK, response)
}

// CancelInvoice marks an invoice cancelled
func (api *API) CancelInvoice(c *gin.Context) {
	id, ok := api.invoiceID(c)
	if !ok {
		return
	}

	response, err := api.invoiceService.CancelInvoice(id)
	if err != nil {
		api.respondError(c, err, "Error cancelling invoice")
		return
	}

	c.JSON(http.StatusOK, response)
}

// CheckCompliance runs the ZATCA compliance check as a dry run
func (api *API) CheckCompliance(c *gin.Context) {
	id, ok := api.invoiceID(c)
	if !ok {
		return
	}

	result, err := api.invoiceService.CheckInvoiceCompliance(c.Request.Context(), id)
	if err != nil {
		api.respondError(c, err, "Error checking invoice compliance")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetZATCAStatus polls ZATCA for the live status of an invoice
func (api *API) GetZATCAStatus(c *gin.Context) {
	id, ok := api.invoiceID(c)
	if !ok {
		return
	}

	response, err := api.invoiceService.GetZATCAStatus(c.Request.Context(), id)
	if err != nil {
		api.respondError(c, err, "Error polling ZATCA status")
		return
	}

	c.JSON(http.StatusOK, response)
}

// DownloadInvoiceFile streams one archived artifact
func (api *API) DownloadInvoiceFile(c *gin.Context) {
	id, ok := api.invoiceID(c)
	if !ok {
		return
	}

	fileType := c.Param("type")
	if fileType != "pdf" && fileType != "xml" {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid file type", []models.ErrorDetail{
			{Field: "type", Issue: "Must be 'pdf' or 'xml'"},
		}))
		return
	}

	fileData, fileName, err := api.invoiceService.DownloadInvoiceFile(c.Request.Context(), id, fileType)
	if err != nil {
		api.respondError(c, err, "Error downloading invoice file")
		return
	}

	contentType := "application/xml"
	if fileType == "pdf" {
		contentType = "application/pdf"
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%s", fileName))
	c.Header("Content-Length", fmt.Sprintf("%d", len(fileData)))
	c.Data(http.StatusOK, contentType, fileData)
}

// CreateAPIKey issues a new API key. The plaintext key is returned once.
func (api *API) CreateAPIKey(c *gin.Context) {
	var req models.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	key, plaintext, err := api.apiKeyRepo.Create(req.Name)
	if err != nil {
		api.respondError(c, err, "Error creating API key")
		return
	}

	c.JSON(http.StatusCreated, models.APIKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		Key:       plaintext,
		CreatedAt: key.CreatedAt,
	})
}

// AuthMiddleware validates the X-API-Key header on every request
func (api *API) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("API key required"))
			c.Abort()
			return
		}

		key, err := api.apiKeyRepo.GetByHash(database.HashAPIKey(apiKey))
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
			c.Abort()
			return
		}

		if err := api.apiKeyRepo.UpdateLastUsed(key.ID); err != nil {
			api.logger.Warnf("Error updating API key last used: %v", err)
		}

		c.Set("api_key_name", key.Name)
		c.Next()
	}
}

// invoiceID parses the :id path parameter, responding on failure
func (api *API) invoiceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid invoice ID", []models.ErrorDetail{
			{Field: "id", Issue: "Must be a valid UUID"},
		}))
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps service errors onto HTTP responses
func (api *API) respondError(c *gin.Context, err error, logMessage string) {
	var apiErr *models.APIError

	switch {
	case errors.Is(err, models.ErrInvoiceNotFound):
		c.JSON(http.StatusNotFound, models.NewNotFoundError("Invoice not found"))
	case errors.Is(err, models.ErrDuplicateInvoice):
		c.JSON(http.StatusConflict, models.NewConflictError("Invoice number already registered"))
	case errors.Is(err, models.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, models.NewConflictError("Invoice already submitted successfully, resubmission requires override"))
	case errors.Is(err, models.ErrProcessingInProgress):
		c.JSON(http.StatusConflict, models.NewConflictError("Invoice is currently being processed"))
	case errors.Is(err, models.ErrInvoiceCancelled):
		c.JSON(http.StatusConflict, models.NewConflictError("Invoice is cancelled"))
	case errors.As(err, &apiErr):
		c.JSON(statusForCode(apiErr.ErrorResponse.Error.Code), apiErr.ErrorResponse)
	default:
		api.logger.WithError(err).Error(logMessage)
		c.JSON(http.StatusInternalServerError, models.NewInternalError(logMessage))
	}
}

// statusForCode maps machine-readable error codes to HTTP status codes
func statusForCode(code string) int {
	switch models.ErrorCode(code) {
	case models.ErrorCodeInvalidRequest:
		return http.StatusBadRequest
	case models.ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrorCodeNotFound:
		return http.StatusNotFound
	case models.ErrorCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
