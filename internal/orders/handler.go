package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/shopspring/decimal"

	"github.com/afontenla/bazaar/internal/domain"
	"github.com/afontenla/bazaar/internal/messaging"
)

// ItemGetter resolves a catalog item by id, returning nil for an absent
// one. catalog.Repository implements it.
type ItemGetter interface {
	GetItem(ctx context.Context, id string) (*domain.Item, error)
}

// OrderStore is the persistence surface the handler needs. *Repository
// implements it; tests substitute an in-memory fake.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, paymentIntentID *string) (*domain.Order, error)
}

type Handler struct {
	store    OrderStore
	items    ItemGetter
	producer *messaging.Producer
	logger   *slog.Logger

	// allowAnyTransition restores the legacy unchecked status overwrites.
	allowAnyTransition bool
}

func NewHandler(store OrderStore, items ItemGetter, producer *messaging.Producer, logger *slog.Logger, allowAnyTransition bool) *Handler {
	return &Handler{
		store:              store,
		items:              items,
		producer:           producer,
		logger:             logger,
		allowAnyTransition: allowAnyTransition,
	}
}

type orderLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type createOrderRequest struct {
	GuestName    string      `json:"guest_name"`
	GuestEmail   string      `json:"guest_email"`
	GuestAddress string      `json:"guest_address"`
	Items        []orderLine `json:"items"`
}

func (req *createOrderRequest) validate() error {
	if req.GuestName == "" {
		return fmt.Errorf("guest_name is required: %w", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(req.GuestEmail); err != nil {
		return fmt.Errorf("guest_email is not a valid email address: %w", domain.ErrInvalidInput)
	}
	if req.GuestAddress == "" {
		return fmt.Errorf("guest_address is required: %w", domain.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("order must contain at least one item: %w", domain.ErrInvalidInput)
	}
	for _, line := range req.Items {
		if line.ItemID == "" {
			return fmt.Errorf("item_id is required: %w", domain.ErrInvalidInput)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("quantity for item %s must be positive: %w", line.ItemID, domain.ErrInvalidInput)
		}
	}
	return nil
}

// buildOrder resolves every line against the catalog, snapshots the unit
// price for each, and computes the total before anything is persisted. A
// single missing item id fails the whole order. Duplicate item ids are kept
// as independent lines, matching the legacy storefront.
func buildOrder(ctx context.Context, items ItemGetter, req createOrderRequest) (*domain.Order, error) {
	total := decimal.Zero
	lines := make([]domain.OrderItem, 0, len(req.Items))

	for _, line := range req.Items {
		item, err := items.GetItem(ctx, line.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, domain.ErrNotFound)
		}

		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		lines = append(lines, domain.OrderItem{
			ItemID:      line.ItemID,
			Quantity:    line.Quantity,
			PriceAtTime: item.Price,
		})
	}

	now := time.Now().UTC()
	return &domain.Order{
		GuestName:    req.GuestName,
		GuestEmail:   req.GuestEmail,
		GuestAddress: req.GuestAddress,
		Items:        lines,
		TotalAmount:  total.Round(2),
		Status:       domain.OrderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := buildOrder(r.Context(), h.items, req)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to resolve order items", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.store.Create(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.producer != nil {
		event := domain.OrderCreatedEvent{
			OrderID:     order.ID,
			GuestName:   order.GuestName,
			GuestEmail:  order.GuestEmail,
			TotalAmount: order.TotalAmount,
			Items:       order.Items,
			Timestamp:   order.CreatedAt,
		}
		if err := h.producer.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order created", "order_id", order.ID, "total", order.TotalAmount, "lines", len(order.Items))
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status          domain.OrderStatus `json:"status"`
	PaymentIntentID *string            `json:"payment_intent_id"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status: %s", req.Status))
		return
	}

	current, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if current == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if !h.allowAnyTransition {
		if err := domain.ValidateTransition(current.Status, req.Status); err != nil {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
	}

	order, err := h.store.UpdateStatus(r.Context(), id, req.Status, req.PaymentIntentID)
	if err != nil {
		h.logger.Error("failed to update order status", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
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
