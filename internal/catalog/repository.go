package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/afontenla/bazaar/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateCategory(ctx context.Context, name string, description *string) (*domain.Category, error) {
	category := &domain.Category{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
	`, category.ID, category.Name, category.Description, category.CreatedAt)
	if err != nil {
		return nil, err
	}

	return category, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, created_at
		FROM categories
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

func (r *Repository) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	c := &domain.Category{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at
		FROM categories
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return c, nil
}

func (r *Repository) CreateStore(ctx context.Context, name string, description *string, ownerEmail string) (*domain.Store, error) {
	store := &domain.Store{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		OwnerEmail:  ownerEmail,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stores (id, name, description, owner_email, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, store.ID, store.Name, store.Description, store.OwnerEmail, store.CreatedAt)
	if err != nil {
		return nil, err
	}

	return store, nil
}

func (r *Repository) ListStores(ctx context.Context) ([]domain.Store, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, owner_email, created_at
		FROM stores
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	stores := []domain.Store{}
	for rows.Next() {
		var s domain.Store
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.OwnerEmail, &s.CreatedAt); err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}

	return stores, rows.Err()
}

func (r *Repository) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	s := &domain.Store{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, owner_email, created_at
		FROM stores
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Description, &s.OwnerEmail, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return s, nil
}

func (r *Repository) CreateItem(ctx context.Context, item *domain.Item) error {
	item.ID = uuid.New().String()
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, name, description, price, stock_quantity, images, category_id, store_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, item.ID, item.Name, item.Description, item.Price, item.StockQuantity,
		item.Images, item.CategoryID, item.StoreID, item.CreatedAt)

	return err
}

func (r *Repository) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	item := &domain.Item{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, stock_quantity, images, category_id, store_id, created_at, updated_at
		FROM items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.StockQuantity,
		&item.Images, &item.CategoryID, &item.StoreID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return item, nil
}

// GetItemWithRelations loads an item joined to its category and store. An
// item whose category or store row is missing is not returned; the join is
// inner on purpose.
func (r *Repository) GetItemWithRelations(ctx context.Context, id string) (*domain.ItemWithRelations, error) {
	item := &domain.ItemWithRelations{}

	err := r.db.QueryRowContext(ctx, `
		SELECT i.id, i.name, i.description, i.price, i.stock_quantity, i.images,
			i.category_id, i.store_id, i.created_at, i.updated_at,
			c.id, c.name, c.description, c.created_at,
			s.id, s.name, s.description, s.owner_email, s.created_at
		FROM items i
		JOIN categories c ON i.category_id = c.id
		JOIN stores s ON i.store_id = s.id
		WHERE i.id = $1
	`, id).Scan(
		&item.ID, &item.Name, &item.Description, &item.Price, &item.StockQuantity,
		&item.Images, &item.CategoryID, &item.StoreID, &item.CreatedAt, &item.UpdatedAt,
		&item.Category.ID, &item.Category.Name, &item.Category.Description, &item.Category.CreatedAt,
		&item.Store.ID, &item.Store.Name, &item.Store.Description, &item.Store.OwnerEmail, &item.Store.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return item, nil
}

// ItemUpdate carries the fields of a partial item update. Nil fields are
// left untouched.
type ItemUpdate struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	StockQuantity *int
	Images        *domain.ImageList
	CategoryID    *string
	StoreID       *string
}

func (r *Repository) UpdateItem(ctx context.Context, id string, update ItemUpdate) (*domain.Item, error) {
	sets := []string{}
	args := []any{}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Price != nil {
		add("price", *update.Price)
	}
	if update.StockQuantity != nil {
		add("stock_quantity", *update.StockQuantity)
	}
	if update.Images != nil {
		add("images", *update.Images)
	}
	if update.CategoryID != nil {
		add("category_id", *update.CategoryID)
	}
	if update.StoreID != nil {
		add("store_id", *update.StoreID)
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE items SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
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

	return r.GetItem(ctx, id)
}
