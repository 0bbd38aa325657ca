package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventTypeTransactionReconciled = "transaction.reconciled"

// TransactionReconciledEvent is published after a gateway notification changed an intent.
type TransactionReconciledEvent struct {
	BaseEvent
	TransactionID  int64           `json:"transaction_id"`
	RefCode        string          `json:"ref_code"`
	Content        string          `json:"content"`
	PreviousStatus string          `json:"previous_status"`
	Status         string          `json:"status"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	GatewayTxnID   string          `json:"gateway_txn_id"`
}

func NewTransactionReconciledEvent(transactionID int64, refCode, content, previousStatus, status string, expected, received decimal.Decimal, gatewayTxnID string) *TransactionReconciledEvent {
	return &TransactionReconciledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeTransactionReconciled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"transaction_id":  transactionID,
				"ref_code":        refCode,
				"content":         content,
				"previous_status": previousStatus,
				"status":          status,
				"expected_amount": expected.String(),
				"received_amount": received.String(),
				"gateway_txn_id":  gatewayTxnID,
			},
		},
		TransactionID:  transactionID,
		RefCode:        refCode,
		Content:        content,
		PreviousStatus: previousStatus,
		Status:         status,
		ExpectedAmount: expected,
		ReceivedAmount: received,
		GatewayTxnID:   gatewayTxnID,
	}
}
