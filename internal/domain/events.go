package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderCreatedEvent struct {
	OrderID     string          `json:"order_id"`
	GuestName   string          `json:"guest_name"`
	GuestEmail  string          `json:"guest_email"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
	Timestamp   time.Time       `json:"timestamp"`
}
