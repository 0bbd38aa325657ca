package transaction

import (
	"encoding/json"
	"io"
	"net/http"

	errors "github.com/frahmantamala/payment-reconciliation/internal"
	"github.com/frahmantamala/payment-reconciliation/internal/transport"
)

const maxWebhookBodyBytes = 1 << 20

type WebhookHandler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// HandleSePayWebhook handles POST /api/v1/payments/webhook. Every delivery that was
// understood is acknowledged with 200 so the gateway stops retrying; only failures
// worth a retry answer otherwise.
func (h *WebhookHandler) HandleSePayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.Logger.Warn("HandleSePayWebhook: failed to read body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.Logger.Warn("HandleSePayWebhook: invalid payload", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	payload.Raw = body

	h.Logger.Info("received gateway webhook",
		"gateway_txn_id", payload.GatewayTxnID(),
		"gateway", payload.Gateway,
		"transfer_type", payload.TransferType,
		"transfer_amount", payload.TransferAmount.String())

	result, err := h.Service.Reconcile(r.Context(), &payload)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result.ToResponse())
}
