// Package zatca implements the client for the ZATCA e-invoicing API.
// Submission outcomes, including transport failures and provider rejections,
// are always mapped into a SubmissionResult so every attempt can be recorded;
// nothing is retried automatically.
package zatca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hypernova-labs/zatca-service/internal/models"
)

// Base URLs for the ZATCA gateway
const (
	ProductionBaseURL = "https://gw-fatoorah.zatca.gov.sa/e-invoicing/core"
	TestBaseURL       = "https://gw-fatoorah.zatca.gov.sa/e-invoicing/developer-portal"
)

// API endpoint paths
const (
	pathCompliance      = "/compliance"
	pathReporting       = "/invoices/reporting/single"
	pathClearance       = "/invoices/clearance/single"
	pathReportingStatus = "/invoices/reporting/single/status/%s"
	pathClearanceStatus = "/invoices/clearance/single/status/%s"
)

// ClientConfig represents the configuration for the ZATCA API client
type ClientConfig struct {
	BaseURL  string // overrides TestMode when set
	TestMode bool
	APIKey   string        // sent as the OTP header
	Secret   string        // bearer credential
	Timeout  time.Duration // Default: 30 seconds
}

// Client is a ZATCA e-invoicing API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secret     string
	logger     *logrus.Logger
}

// SubmissionPayload represents the JSON body of a submission
type SubmissionPayload struct {
	InvoiceHash string `json:"invoiceHash"`
	UUID        string `json:"uuid"`
	Invoice     string `json:"invoice"` // base64 XML
	Signature   string `json:"signature"`
}

// StatusResponse represents the body of a status poll
type StatusResponse struct {
	ClearanceStatus string `json:"clearanceStatus,omitempty"`
	ReportingStatus string `json:"reportingStatus,omitempty"`
	StatusCode      int    `json:"-"`
	Raw             string `json:"-"`
}

// apiResponse represents the provider's accepted-submission body
type apiResponse struct {
	ClearanceStatus string `json:"clearanceStatus"`
	ReportingStatus string `json:"reportingStatus"`
}

// NewClient creates a new ZATCA API client. With no explicit base URL the
// test-mode flag selects between the developer portal and production.
func NewClient(config ClientConfig, logger *logrus.Logger) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		if config.TestMode {
			baseURL = TestBaseURL
		} else {
			baseURL = ProductionBaseURL
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  config.APIKey,
		secret:  config.Secret,
		logger:  logger,
	}
}

// ReportInvoice submits a signed document through the reporting flow.
// The endpoint is not idempotent: callers must check existing status before
// submitting the same invoice again.
func (c *Client) ReportInvoice(ctx context.Context, payload *SubmissionPayload) *models.SubmissionResult {
	return c.submit(ctx, pathReporting, payload)
}

// ClearInvoice submits a signed document through the clearance flow
func (c *Client) ClearInvoice(ctx context.Context, payload *SubmissionPayload) *models.SubmissionResult {
	return c.submit(ctx, pathClearance, payload)
}

// CheckCompliance runs a signed document through the compliance check
// endpoint without reporting it
func (c *Client) CheckCompliance(ctx context.Context, payload *SubmissionPayload) *models.SubmissionResult {
	return c.submit(ctx, pathCompliance, payload)
}

// GetReportingStatus polls the reporting status for an invoice UUID
func (c *Client) GetReportingStatus(ctx context.Context, uuid string) (*StatusResponse, error) {
	return c.getStatus(ctx, fmt.Sprintf(pathReportingStatus, uuid))
}

// GetClearanceStatus polls the clearance status for an invoice UUID
func (c *Client) GetClearanceStatus(ctx context.Context, uuid string) (*StatusResponse, error) {
	return c.getStatus(ctx, fmt.Sprintf(pathClearanceStatus, uuid))
}

// submit POSTs the payload and interprets the response. Only HTTP 200 counts
// as accepted; everything else, including transport failures, becomes an
// error result with whatever body the provider returned.
func (c *Client) submit(ctx context.Context, path string, payload *SubmissionPayload) *models.SubmissionResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return transportError(fmt.Sprintf("error encoding payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return transportError(fmt.Sprintf("error creating request: %v", err))
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Error("ZATCA request failed")
		return transportError(fmt.Sprintf("error calling ZATCA: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(fmt.Sprintf("error reading response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"path":        path,
			"status_code": resp.StatusCode,
		}).Warn("ZATCA rejected submission")
		return &models.SubmissionResult{
			Status:      models.SubmissionStatusError,
			Message:     fmt.Sprintf("submission rejected with status %d", resp.StatusCode),
			RawResponse: string(raw),
			StatusCode:  resp.StatusCode,
		}
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &models.SubmissionResult{
			Status:      models.SubmissionStatusError,
			Message:     fmt.Sprintf("error decoding accepted response: %v", err),
			RawResponse: string(raw),
			StatusCode:  resp.StatusCode,
		}
	}

	return &models.SubmissionResult{
		Status:          models.SubmissionStatusSuccess,
		ClearanceStatus: parsed.ClearanceStatus,
		ReportingStatus: parsed.ReportingStatus,
		RawResponse:     string(raw),
		StatusCode:      resp.StatusCode,
	}
}

// getStatus GETs a status endpoint and decodes the body
func (c *Client) getStatus(ctx context.Context, path string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling ZATCA: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status check rejected with status %d: %s", resp.StatusCode, string(raw))
	}

	status := &StatusResponse{StatusCode: resp.StatusCode, Raw: string(raw)}
	if err := json.Unmarshal(raw, status); err != nil {
		return nil, fmt.Errorf("error decoding status response: %w", err)
	}
	return status, nil
}

// setHeaders applies the credential and content headers every call carries
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OTP", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.secret)
}

// transportError builds the result for a failure that never reached the API
func transportError(message string) *models.SubmissionResult {
	return &models.SubmissionResult{
		Status:     models.SubmissionStatusError,
		Message:    message,
		StatusCode: 0,
	}
}
