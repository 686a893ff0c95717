package email

import (
	"fmt"

	"github.com/hypernova-labs/zatca-service/internal/config"
	"github.com/hypernova-labs/zatca-service/internal/models"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// ResendService sends invoice notifications through the Resend API
type ResendService struct {
	client        *resend.Client
	fromEmail     string
	operatorEmail string
	baseURL       string
	logger        *logrus.Logger
}

// NewResendService creates a new Resend email service
func NewResendService(cfg config.EmailConfig, baseURL string, logger *logrus.Logger) *ResendService {
	return &ResendService{
		client:        resend.NewClient(cfg.ResendAPIKey),
		fromEmail:     cfg.FromAddress,
		operatorEmail: cfg.OperatorAddress,
		baseURL:       baseURL,
		logger:        logger,
	}
}

// SendInvoiceEmail notifies the customer that their invoice was accepted by ZATCA
func (s *ResendService) SendInvoiceEmail(invoice *models.Invoice) error {
	if invoice.Customer.Email == nil || *invoice.Customer.Email == "" {
		return fmt.Errorf("invoice %s has no customer email", invoice.ID)
	}

	subject := fmt.Sprintf("Tax Invoice %s - %s", invoice.InvoiceNumber, invoice.Supplier.Name)

	supplierVAT := ""
	if invoice.Supplier.VATNumber != nil {
		supplierVAT = *invoice.Supplier.VATNumber
	}

	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Tax Invoice</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 8px; }
        .content { padding: 20px; }
        .button { display: inline-block; padding: 12px 24px; background-color: #007bff; color: white; text-decoration: none; border-radius: 5px; margin: 10px 5px; }
        .footer { margin-top: 30px; padding: 20px; background-color: #f8f9fa; border-radius: 8px; font-size: 14px; color: #666; }
        .total { font-size: 18px; font-weight: bold; color: #007bff; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Tax Invoice</h1>
            <p>Number: %s</p>
            <p>Issue date: %s</p>
        </div>

        <div class="content">
            <h2>Dear %s,</h2>

            <p>Your electronic tax invoice has been registered with ZATCA:</p>

            <ul>
                <li><strong>Seller:</strong> %s</li>
                <li><strong>VAT registration:</strong> %s</li>
                <li><strong>Total:</strong> <span class="total">%s %s</span></li>
            </ul>

            <p>You can download the invoice in the following formats:</p>

            <div style="text-align: center; margin: 20px 0;">
                <a href="%s/api/v1/invoices/%s/files/pdf" class="button">Download PDF</a>
                <a href="%s/api/v1/invoices/%s/files/xml" class="button">Download XML</a>
            </div>
        </div>

        <div class="footer">
            <p>This is an automated message from the electronic invoicing system.</p>
        </div>
    </div>
</body>
</html>`,
		invoice.InvoiceNumber,
		invoice.IssueDate.Format("02/01/2006"),
		invoice.Customer.Name,
		invoice.Supplier.Name,
		supplierVAT,
		invoice.GrandTotal.StringFixed(2), invoice.Currency,
		s.baseURL, invoice.ID,
		s.baseURL, invoice.ID)

	request := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{*invoice.Customer.Email},
		Subject: subject,
		Html:    htmlContent,
	}

	result, err := s.client.Emails.Send(request)
	if err != nil {
		return fmt.Errorf("error sending email via Resend: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email_id": result.Id,
		"to":       *invoice.Customer.Email,
		"subject":  subject,
	}).Info("Invoice email sent via Resend")

	return nil
}

// SendFailureAlert notifies the operator that a submission ended in error
func (s *ResendService) SendFailureAlert(invoice *models.Invoice, result *models.SubmissionResult) error {
	if s.operatorEmail == "" {
		return fmt.Errorf("no operator email configured")
	}

	subject := fmt.Sprintf("ZATCA submission failed: %s", invoice.InvoiceNumber)

	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Submission Failure</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8d7da; padding: 20px; text-align: center; border-radius: 8px; }
        pre { background-color: #f8f9fa; padding: 10px; border-radius: 5px; overflow-x: auto; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>ZATCA Submission Failed</h1>
        </div>
        <ul>
            <li><strong>Invoice:</strong> %s</li>
            <li><strong>Mode:</strong> %s</li>
            <li><strong>HTTP status:</strong> %d</li>
            <li><strong>Message:</strong> %s</li>
        </ul>
        <p>Provider response:</p>
        <pre>%s</pre>
    </div>
</body>
</html>`,
		invoice.InvoiceNumber,
		invoice.Mode,
		result.StatusCode,
		result.Message,
		result.RawResponse)

	request := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{s.operatorEmail},
		Subject: subject,
		Html:    htmlContent,
	}

	sent, err := s.client.Emails.Send(request)
	if err != nil {
		return fmt.Errorf("error sending failure alert via Resend: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email_id":   sent.Id,
		"to":         s.operatorEmail,
		"invoice_id": invoice.ID,
	}).Info("Failure alert sent via Resend")

	return nil
}
