package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	txmodel "github.com/frahmantamala/payment-reconciliation/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-reconciliation/internal/transaction"
)

const pgUniqueViolation = "23505"

// reconcilableFirst ranks rows that can still take a payment ahead of settled ones
// sharing the same content code.
const reconcilableFirst = "CASE WHEN status IN ('" + txmodel.StatusPending + "', '" + txmodel.StatusPartialPaid + "') THEN 0 ELSE 1 END"

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) transaction.RepositoryAPI {
	return &TransactionRepository{db: db}
}

// Create inserts a new intent. Unique violations come back as ErrReferenceCodeConflict
// when the reference code is taken, otherwise as ErrContentCodeConflict.
func (r *TransactionRepository) Create(ctx context.Context, t *txmodel.PaymentTransaction) error {
	err := r.db.WithContext(ctx).Create(t).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("insert payment transaction: %w", err)
	}

	var count int64
	if cerr := r.db.WithContext(ctx).
		Model(&txmodel.PaymentTransaction{}).
		Where("ref_code = ?", t.RefCode).
		Count(&count).Error; cerr != nil {
		return fmt.Errorf("classify unique violation: %w", cerr)
	}
	if count > 0 {
		return transaction.ErrReferenceCodeConflict
	}
	return transaction.ErrContentCodeConflict
}

func (r *TransactionRepository) GetByContent(ctx context.Context, content string) (*txmodel.PaymentTransaction, error) {
	var t txmodel.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("content = ?", content).
		Order(reconcilableFirst).
		Order("created_at DESC").
		Take(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transaction.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) GetByRefCode(ctx context.Context, refCode string) (*txmodel.PaymentTransaction, error) {
	var t txmodel.PaymentTransaction
	err := r.db.WithContext(ctx).Where("ref_code = ?", refCode).Take(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transaction.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetByGatewayTxnID returns the intent a gateway transaction was applied to, whichever
// intent currently holds the content code.
func (r *TransactionRepository) GetByGatewayTxnID(ctx context.Context, gatewayTxnID string) (*txmodel.PaymentTransaction, error) {
	applied := r.db.Model(&txmodel.GatewayDelivery{}).
		Select("transaction_id").
		Where("gateway_txn_id = ?", gatewayTxnID)

	var t txmodel.PaymentTransaction
	err := r.db.WithContext(ctx).Where("id IN (?)", applied).Take(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transaction.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// UpdateReconciled applies the transfer and records its delivery in one transaction.
// A gateway transaction already recorded against any intent rolls the update back
// with ErrNotApplied.
func (r *TransactionRepository) UpdateReconciled(ctx context.Context, id int64, update transaction.ReconcileUpdate, fromStatuses []string) error {
	var gatewayTxnID *string
	if update.GatewayTxnID != "" {
		gatewayTxnID = &update.GatewayTxnID
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&txmodel.PaymentTransaction{}).
			Where("id = ? AND status IN ?", id, fromStatuses).
			Updates(map[string]interface{}{
				"status":           update.Status,
				"received_amount":  update.ReceivedAmount,
				"gateway_txn_id":   gatewayTxnID,
				"gateway_response": datatypes.JSON(update.GatewayResponse),
				"paid_at":          update.PaidAt,
				"updated_at":       update.PaidAt,
			})
		if result.Error != nil {
			return fmt.Errorf("update payment transaction %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return transaction.ErrNotApplied
		}
		if gatewayTxnID == nil {
			return nil
		}

		delivery := &txmodel.GatewayDelivery{
			GatewayTxnID:  update.GatewayTxnID,
			TransactionID: id,
			Status:        update.Status,
			Amount:        update.ReceivedAmount,
			CreatedAt:     update.PaidAt,
		}
		if err := tx.Create(delivery).Error; err != nil {
			if isUniqueViolation(err) {
				return transaction.ErrNotApplied
			}
			return fmt.Errorf("record gateway delivery %s: %w", update.GatewayTxnID, err)
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
