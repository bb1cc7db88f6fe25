package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/afontenla/bazaar/internal/domain"
)

// OrderGetter loads an order by id, returning nil for an absent one.
// orders.Repository implements it.
type OrderGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

type Handler struct {
	orders   OrderGetter
	provider Provider
	logger   *slog.Logger
}

func NewHandler(orders OrderGetter, provider Provider, logger *slog.Logger) *Handler {
	return &Handler{
		orders:   orders,
		provider: provider,
		logger:   logger,
	}
}

// HandleCreateIntent issues a payment intent for a pending order. Nothing is
// written here: the intent id only lands on the order when the caller
// follows up with a status update carrying it.
func (h *Handler) HandleCreateIntent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if order.Status != domain.OrderStatusPending {
		err := fmt.Errorf("cannot create payment intent for order with status %s: %w", order.Status, domain.ErrInvalidState)
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}

	intent, err := h.provider.CreateIntent(r.Context(), order)
	if err != nil {
		h.logger.Error("failed to create payment intent", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("payment intent created", "order_id", id, "payment_intent_id", intent.PaymentIntentID)
	h.writeJSON(w, http.StatusOK, intent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
