package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/afontenla/bazaar/internal/domain"
	"github.com/afontenla/bazaar/internal/messaging"
)

// NotificationHandler turns order.created events into confirmation emails.
// It never touches stock or order status: the checkout flow owns both, and
// stock is informational only in this storefront.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("dropping undecodable order created event", "error", err)
		return fmt.Errorf("unmarshal order created event (%v): %w", err, messaging.ErrMalformedMessage)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "guest_email", event.GuestEmail)

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	h.logger.Info("order confirmation sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderCreatedEvent) error {
	message := map[string]string{
		"to":      event.GuestEmail,
		"subject": "Order confirmation: " + event.OrderID,
		"body": fmt.Sprintf("Hi %s, we received your order %s (%d items, total %s). We will email you again when it ships.",
			event.GuestName, event.OrderID, len(event.Items), event.TotalAmount.StringFixed(2)),
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
