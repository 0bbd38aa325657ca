package transaction

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/payment-reconciliation/internal"
	"github.com/frahmantamala/payment-reconciliation/internal/core/common/validation"
)

const maxRefCodeLength = 100

// InitRequest is the body of POST /payments/init.
type InitRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	RefCode string          `json:"refCode"`
}

func (r *InitRequest) Validate() error {
	r.RefCode = strings.TrimSpace(r.RefCode)

	validator := validation.NewValidator()
	validator.Field("amount", r.Amount).Positive(errors.ErrCodeInvalidAmount)
	validator.Field("refCode", r.RefCode).Required().MaxLength(maxRefCodeLength, errors.ErrCodeInvalidReferenceCode)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type InitResponse struct {
	Success   bool      `json:"success"`
	Content   string    `json:"content"`
	QRURL     string    `json:"qrUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type TransactionResponse struct {
	Success bool             `json:"success"`
	Data    *TransactionView `json:"data"`
}

// WebhookPayload is the bank transfer notification body sent by SePay.
// Raw keeps the exact bytes received for the audit column.
type WebhookPayload struct {
	ID              json.Number     `json:"id"`
	Gateway         string          `json:"gateway"`
	TransactionDate string          `json:"transactionDate"`
	AccountNumber   string          `json:"accountNumber"`
	Code            *string         `json:"code"`
	Content         string          `json:"content"`
	TransferType    string          `json:"transferType"`
	TransferAmount  decimal.Decimal `json:"transferAmount"`
	Accumulated     decimal.Decimal `json:"accumulated"`
	SubAccount      *string         `json:"subAccount"`
	ReferenceCode   string          `json:"referenceCode"`
	Description     string          `json:"description"`

	Raw json.RawMessage `json:"-"`
}

func (p *WebhookPayload) GatewayTxnID() string {
	return p.ID.String()
}

// IsOutgoing reports a notification about money leaving the account.
func (p *WebhookPayload) IsOutgoing() bool {
	return strings.EqualFold(p.TransferType, "out")
}

type WebhookResponse struct {
	Success bool    `json:"success"`
	Status  string  `json:"status,omitempty"`
	Outcome Outcome `json:"outcome,omitempty"`
	Message string  `json:"message,omitempty"`
}

// ReconcileResult is what one webhook delivery did.
type ReconcileResult struct {
	Outcome     Outcome
	Status      string
	ContentCode string
	RefCode     string
}

func (r *ReconcileResult) ToResponse() WebhookResponse {
	resp := WebhookResponse{Success: true, Outcome: r.Outcome, Status: r.Status}
	if r.Outcome == OutcomeAlreadyProcessed {
		resp.Message = "Transaction already processed"
	}
	return resp
}
