package transaction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/payment-reconciliation/internal/core/events"
	"github.com/frahmantamala/payment-reconciliation/pkg/metric"
)

// EventHandler reacts to reconciliation events after the webhook has been answered.
type EventHandler struct {
	metrics metric.Reconciliation
	logger  *slog.Logger
}

func NewEventHandler(metrics metric.Reconciliation, logger *slog.Logger) *EventHandler {
	if metrics == nil {
		metrics = metric.NewNoop().Reconciliation()
	}
	return &EventHandler{
		metrics: metrics,
		logger:  logger,
	}
}

func (h *EventHandler) HandleTransactionReconciled(ctx context.Context, event events.Event) error {
	reconciled, ok := event.(*events.TransactionReconciledEvent)
	if !ok {
		h.logger.Error("invalid event type for transaction reconciled handler", "event_type", event.EventType())
		return fmt.Errorf("expected TransactionReconciledEvent, got %T", event)
	}

	h.metrics.Classified(reconciled.Status)

	switch reconciled.Status {
	case StatusLatePayment:
		h.logger.Warn("late payment needs follow-up",
			"ref_code", reconciled.RefCode,
			"content", reconciled.Content,
			"received_amount", reconciled.ReceivedAmount.String(),
			"event_id", reconciled.EventID())
	case StatusPartialPaid:
		shortfall := reconciled.ExpectedAmount.Sub(reconciled.ReceivedAmount)
		h.logger.Warn("partial payment received",
			"ref_code", reconciled.RefCode,
			"content", reconciled.Content,
			"shortfall", shortfall.String(),
			"event_id", reconciled.EventID())
	default:
		h.logger.Info("payment settled",
			"ref_code", reconciled.RefCode,
			"status", reconciled.Status,
			"event_id", reconciled.EventID())
	}

	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeTransactionReconciled, h.HandleTransactionReconciled)

	h.logger.Info("transaction event handlers registered",
		"handlers", []string{events.EventTypeTransactionReconciled})
}
