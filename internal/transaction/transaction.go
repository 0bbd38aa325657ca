package transaction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	txmodel "github.com/frahmantamala/payment-reconciliation/internal/core/datamodel/transaction"
)

func init() {
	// amounts go over the wire as JSON numbers, matching what callers send
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	StatusPending     = txmodel.StatusPending
	StatusPartialPaid = txmodel.StatusPartialPaid
	StatusSuccess     = txmodel.StatusSuccess
	StatusLatePayment = txmodel.StatusLatePayment
)

// ReconcilableStatuses are the only statuses a gateway notification may move an intent out of.
var ReconcilableStatuses = []string{StatusPending, StatusPartialPaid}

// Store errors. Repositories translate driver errors into these.
var (
	ErrNotFound              = errors.New("transaction not found")
	ErrContentCodeConflict   = errors.New("content code already in use")
	ErrReferenceCodeConflict = errors.New("reference code already in use")
	ErrNotApplied            = errors.New("transaction no longer in an updatable status")
)

// Outcome describes what a webhook delivery did. Only OutcomeReconciled mutates state.
type Outcome string

const (
	OutcomeReconciled         Outcome = "RECONCILED"
	OutcomeMalformedContent   Outcome = "MALFORMED_CONTENT"
	OutcomeUnknownTransaction Outcome = "UNKNOWN_TRANSACTION"
	OutcomeAlreadyProcessed   Outcome = "ALREADY_PROCESSED"
	OutcomeIgnored            Outcome = "IGNORED"
)

func IsReconcilable(status string) bool {
	for _, s := range ReconcilableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Classify decides the status of a transfer against an intent. A short transfer is
// PARTIAL_PAID whether or not it arrived in time.
func Classify(now, expiresAt time.Time, expected, transferred decimal.Decimal) string {
	isExpired := now.After(expiresAt)
	isEnough := transferred.GreaterThanOrEqual(expected)

	switch {
	case !isEnough:
		return StatusPartialPaid
	case isExpired:
		return StatusLatePayment
	default:
		return StatusSuccess
	}
}

// ReconcileUpdate carries the fields written when a notification is matched.
type ReconcileUpdate struct {
	Status          string
	ReceivedAmount  decimal.Decimal
	GatewayTxnID    string
	GatewayResponse []byte
	PaidAt          time.Time
}

// TransactionView is the caller-facing shape of an intent. Gateway provenance stays internal.
type TransactionView struct {
	RefCode        string           `json:"refCode"`
	Content        string           `json:"content"`
	ExpectedAmount decimal.Decimal  `json:"expectedAmount"`
	ReceivedAmount *decimal.Decimal `json:"receivedAmount"`
	Status         string           `json:"status"`
	IsExpired      bool             `json:"isExpired"`
	ExpiresAt      time.Time        `json:"expiresAt"`
	PaidAt         *time.Time       `json:"paidAt"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// ToView builds the public view. IsExpired is only set for intents still waiting on money.
func ToView(t *txmodel.PaymentTransaction, now time.Time) *TransactionView {
	view := &TransactionView{
		RefCode:        t.RefCode,
		Content:        t.Content,
		ExpectedAmount: t.ExpectedAmount,
		Status:         t.Status,
		IsExpired:      IsReconcilable(t.Status) && now.After(t.ExpiresAt),
		ExpiresAt:      t.ExpiresAt,
		PaidAt:         t.PaidAt,
		CreatedAt:      t.CreatedAt,
	}
	if t.ReceivedAmount.Valid {
		received := t.ReceivedAmount.Decimal
		view.ReceivedAmount = &received
	}
	return view
}
