package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/afontenla/bazaar/internal/domain"
	"github.com/afontenla/bazaar/internal/messaging"
)

func testEvent() []byte {
	event := domain.OrderCreatedEvent{
		OrderID:     "order-1",
		GuestName:   "Ada Guest",
		GuestEmail:  "ada@example.com",
		TotalAmount: decimal.RequireFromString("59.98"),
		Items: []domain.OrderItem{
			{ItemID: "widget", Quantity: 2, PriceAtTime: decimal.RequireFromString("29.99")},
		},
		Timestamp: time.Now().UTC(),
	}
	data, _ := json.Marshal(event)
	return data
}

func TestHandleSendsConfirmationEmail(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode email payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewNotificationHandler(server.URL, server.Client(), logger)

	if err := handler.Handle(context.Background(), testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received["to"] != "ada@example.com" {
		t.Errorf("unexpected recipient: %s", received["to"])
	}
	if received["subject"] != "Order confirmation: order-1" {
		t.Errorf("unexpected subject: %s", received["subject"])
	}
	if !strings.Contains(received["body"], "59.98") {
		t.Errorf("expected body to include the order total: %s", received["body"])
	}
}

func TestHandleRejectsMalformedEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewNotificationHandler("http://localhost:0", http.DefaultClient, logger)

	err := handler.Handle(context.Background(), []byte("not json"))
	if err == nil {
		t.Fatal("expected an error for a malformed event")
	}
	// The consumer must be able to classify this as a skip, not a halt.
	if !errors.Is(err, messaging.ErrMalformedMessage) {
		t.Errorf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestHandlePropagatesEmailFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewNotificationHandler(server.URL, server.Client(), logger)

	if err := handler.Handle(context.Background(), testEvent()); err == nil {
		t.Error("expected an error when the email service fails")
	}
}
