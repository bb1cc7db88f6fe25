package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/afontenla/bazaar/internal/domain"
)

// Provider issues a payment intent for an order. The storefront ships with
// the mock below; a real processor integration replaces it without touching
// the order engine.
type Provider interface {
	CreateIntent(ctx context.Context, order *domain.Order) (*domain.PaymentIntent, error)
}

// MockProvider fabricates intent tokens from a millisecond timestamp and
// random bits. Practical uniqueness only, no cryptographic guarantee.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) CreateIntent(_ context.Context, order *domain.Order) (*domain.PaymentIntent, error) {
	ts := time.Now().UnixMilli()

	return &domain.PaymentIntent{
		PaymentIntentID: fmt.Sprintf("pi_mock_%d_%s", ts, randomSuffix()),
		ClientSecret:    fmt.Sprintf("pi_mock_%d_secret_%s", ts, randomSuffix()),
	}, nil
}

func randomSuffix() string {
	buf := make([]byte, 5)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
