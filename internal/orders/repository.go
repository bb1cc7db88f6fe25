package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/afontenla/bazaar/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create persists an order and all of its lines in a single transaction.
// If any insert fails nothing is kept.
func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, guest_name, guest_email, guest_address, total_amount, payment_intent_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, order.ID, order.GuestName, order.GuestEmail, order.GuestAddress,
		order.TotalAmount, order.PaymentIntentID, order.Status, order.CreatedAt)
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New().String()
		item.OrderID = order.ID
		item.CreatedAt = order.CreatedAt

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, item_id, quantity, price_at_time, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, item.OrderID, item.ItemID, item.Quantity, item.PriceAtTime, item.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, guest_name, guest_email, guest_address, total_amount, payment_intent_id, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.GuestName, &order.GuestEmail, &order.GuestAddress,
		&order.TotalAmount, &order.PaymentIntentID, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, item_id, quantity, price_at_time, created_at
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ItemID, &item.Quantity, &item.PriceAtTime, &item.CreatedAt); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, guest_name, guest_email, guest_address, total_amount, payment_intent_id, status, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.GuestName, &order.GuestEmail, &order.GuestAddress,
			&order.TotalAmount, &order.PaymentIntentID, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, item_id, quantity, price_at_time, created_at
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ItemID, &item.Quantity, &item.PriceAtTime, &item.CreatedAt); err != nil {
			return nil, err
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// UpdateStatus overwrites the status and, when a token is supplied, the
// stored payment intent id. updated_at is always refreshed. Transition
// legality is the handler's concern; concurrent updates are last-write-wins.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, paymentIntentID *string) (*domain.Order, error) {
	var result sql.Result
	var err error

	if paymentIntentID != nil {
		result, err = r.db.ExecContext(ctx, `
			UPDATE orders SET status = $1, payment_intent_id = $2, updated_at = $3
			WHERE id = $4
		`, status, *paymentIntentID, time.Now().UTC(), id)
	} else {
		result, err = r.db.ExecContext(ctx, `
			UPDATE orders SET status = $1, updated_at = $2
			WHERE id = $3
		`, status, time.Now().UTC(), id)
	}
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}
