package payments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/afontenla/bazaar/internal/domain"
)

type fakeOrderGetter struct {
	orders map[string]*domain.Order
}

func (f *fakeOrderGetter) GetByID(_ context.Context, id string) (*domain.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *order
	return &clone, nil
}

func newTestHandler(orders map[string]*domain.Order) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(&fakeOrderGetter{orders: orders}, NewMockProvider(), logger)
}

func createIntent(t *testing.T, handler *Handler, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders/"+id+"/payment-intent", nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	handler.HandleCreateIntent(rec, req)
	return rec
}

func TestHandleCreateIntent(t *testing.T) {
	pendingOrder := func() map[string]*domain.Order {
		return map[string]*domain.Order{
			"order-1": {
				ID:          "order-1",
				Status:      domain.OrderStatusPending,
				TotalAmount: decimal.RequireFromString("59.98"),
			},
		}
	}

	t.Run("issues tokens for a pending order", func(t *testing.T) {
		handler := newTestHandler(pendingOrder())

		rec := createIntent(t, handler, "order-1")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var intent domain.PaymentIntent
		if err := json.NewDecoder(rec.Body).Decode(&intent); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if intent.PaymentIntentID == "" || intent.ClientSecret == "" {
			t.Errorf("expected both tokens to be set, got %+v", intent)
		}
	})

	t.Run("a pending order can request intents repeatedly", func(t *testing.T) {
		handler := newTestHandler(pendingOrder())

		first := createIntent(t, handler, "order-1")
		second := createIntent(t, handler, "order-1")

		if first.Code != http.StatusOK || second.Code != http.StatusOK {
			t.Fatalf("expected 200s, got %d and %d", first.Code, second.Code)
		}
	})

	t.Run("returns 404 for an unknown order", func(t *testing.T) {
		handler := newTestHandler(map[string]*domain.Order{})

		rec := createIntent(t, handler, "missing")

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("returns 409 once the order has left pending", func(t *testing.T) {
		for _, status := range []domain.OrderStatus{
			domain.OrderStatusPaid,
			domain.OrderStatusShipped,
			domain.OrderStatusDelivered,
			domain.OrderStatusCancelled,
		} {
			handler := newTestHandler(map[string]*domain.Order{
				"order-1": {ID: "order-1", Status: status},
			})

			rec := createIntent(t, handler, "order-1")

			if rec.Code != http.StatusConflict {
				t.Errorf("status %s: expected 409, got %d", status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "invalid state") {
				t.Errorf("status %s: expected error to name the state failure: %s", status, rec.Body.String())
			}
		}
	})
}
