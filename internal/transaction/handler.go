package transaction

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/payment-reconciliation/internal"
	"github.com/frahmantamala/payment-reconciliation/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// Init handles POST /api/v1/payments/init
func (h *Handler) Init(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("Init: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	resp, err := h.Service.Create(r.Context(), req)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// GetByReferenceCode handles GET /api/v1/payments/{ref_code}
func (h *Handler) GetByReferenceCode(w http.ResponseWriter, r *http.Request) {
	refCode := chi.URLParam(r, "ref_code")
	if refCode == "" {
		h.HandleError(w, errors.NewValidationError("ref_code is required", errors.ErrCodeInvalidReferenceCode))
		return
	}

	view, err := h.Service.GetByReferenceCode(r.Context(), refCode)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, TransactionResponse{
		Success: true,
		Data:    view,
	})
}
