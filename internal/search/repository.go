package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/afontenla/bazaar/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// buildQuery composes one SELECT from the supplied predicates. Every set
// filter contributes a single AND-ed condition; the inner joins mean an item
// with a dangling category or store reference is silently excluded, which is
// the documented behavior for that (unsupported) state.
func buildQuery(f Filter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT i.id, i.name, i.description, i.price, i.stock_quantity, i.images,
			i.category_id, i.store_id, i.created_at, i.updated_at,
			c.id, c.name, c.description, c.created_at,
			s.id, s.name, s.description, s.owner_email, s.created_at
		FROM items i
		JOIN categories c ON i.category_id = c.id
		JOIN stores s ON i.store_id = s.id`)

	var conditions []string
	var args []any

	addCondition := func(format string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if f.Query != nil {
		addCondition("i.name ILIKE $%d", "%"+*f.Query+"%")
	}
	if f.CategoryID != nil {
		addCondition("i.category_id = $%d", *f.CategoryID)
	}
	if f.StoreID != nil {
		addCondition("i.store_id = $%d", *f.StoreID)
	}
	if f.MinPrice != nil {
		addCondition("i.price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		addCondition("i.price <= $%d", *f.MaxPrice)
	}
	if f.InStockOnly {
		conditions = append(conditions, "i.stock_quantity >= 1")
	}

	if len(conditions) > 0 {
		sb.WriteString("\n\t\tWHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	args = append(args, f.Limit, f.Offset)
	sb.WriteString(fmt.Sprintf("\n\t\tORDER BY i.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)))

	return sb.String(), args
}

func (r *Repository) Search(ctx context.Context, f Filter) ([]domain.ItemWithRelations, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	query, args := buildQuery(f)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.ItemWithRelations{}
	for rows.Next() {
		var item domain.ItemWithRelations
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Description, &item.Price, &item.StockQuantity,
			&item.Images, &item.CategoryID, &item.StoreID, &item.CreatedAt, &item.UpdatedAt,
			&item.Category.ID, &item.Category.Name, &item.Category.Description, &item.Category.CreatedAt,
			&item.Store.ID, &item.Store.Name, &item.Store.Description, &item.Store.OwnerEmail, &item.Store.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
