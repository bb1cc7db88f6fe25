package payments

import (
	"context"
	"strings"
	"testing"

	"github.com/afontenla/bazaar/internal/domain"
)

func TestMockProviderCreateIntent(t *testing.T) {
	provider := NewMockProvider()
	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending}

	intent, err := provider.CreateIntent(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(intent.PaymentIntentID, "pi_mock_") {
		t.Errorf("unexpected intent id format: %s", intent.PaymentIntentID)
	}
	if !strings.HasPrefix(intent.ClientSecret, "pi_mock_") || !strings.Contains(intent.ClientSecret, "_secret_") {
		t.Errorf("unexpected client secret format: %s", intent.ClientSecret)
	}
	if intent.PaymentIntentID == intent.ClientSecret {
		t.Error("expected intent id and client secret to differ")
	}
}

func TestMockProviderTokensAreUnique(t *testing.T) {
	provider := NewMockProvider()
	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending}

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		intent, err := provider.CreateIntent(context.Background(), order)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[intent.PaymentIntentID] {
			t.Fatalf("duplicate intent id: %s", intent.PaymentIntentID)
		}
		seen[intent.PaymentIntentID] = true
	}
}
