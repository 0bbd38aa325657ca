package transaction

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusPending     = "PENDING"
	StatusPartialPaid = "PARTIAL_PAID"
	StatusSuccess     = "SUCCESS"
	StatusLatePayment = "LATE_PAYMENT"
)

// PaymentTransaction is one payment intent row. Content is only unique while the
// intent can still be reconciled, so a code may come back once its intent settles.
type PaymentTransaction struct {
	ID              int64               `gorm:"primaryKey"`
	RefCode         string              `gorm:"column:ref_code;type:varchar(100);not null;uniqueIndex:idx_payment_transactions_ref_code"`
	Content         string              `gorm:"column:content;type:varchar(8);not null;uniqueIndex:idx_payment_transactions_active_content,where:status <> 'SUCCESS' AND status <> 'LATE_PAYMENT'"`
	ExpectedAmount  decimal.Decimal     `gorm:"column:expected_amount;type:numeric(18,2);not null"`
	ReceivedAmount  decimal.NullDecimal `gorm:"column:received_amount;type:numeric(18,2)"`
	Status          string              `gorm:"column:status;type:varchar(20);not null;index"`
	ExpiresAt       time.Time           `gorm:"column:expires_at;not null"`
	GatewayTxnID    *string             `gorm:"column:gateway_txn_id;type:varchar(64)"`
	GatewayResponse datatypes.JSON      `gorm:"column:gateway_response"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	CreatedAt       time.Time           `gorm:"column:created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// GatewayDelivery records every gateway transaction applied to an intent. A gateway
// transaction is applied at most once across all intents, including intents that
// later reuse the same content code.
type GatewayDelivery struct {
	ID            int64           `gorm:"primaryKey"`
	GatewayTxnID  string          `gorm:"column:gateway_txn_id;type:varchar(64);not null;uniqueIndex:idx_payment_gateway_deliveries_txn"`
	TransactionID int64           `gorm:"column:transaction_id;not null;index"`
	Status        string          `gorm:"column:status;type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (GatewayDelivery) TableName() string {
	return "payment_gateway_deliveries"
}
