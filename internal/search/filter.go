package search

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/afontenla/bazaar/internal/domain"
)

const (
	DefaultLimit  = 20
	DefaultOffset = 0
)

// Filter holds the optional item-search predicates. Nil fields impose no
// constraint; filters are always conjoined.
type Filter struct {
	Query       *string
	CategoryID  *string
	StoreID     *string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	InStockOnly bool
	Limit       int
	Offset      int
}

func (f *Filter) Validate() error {
	if f.Limit <= 0 {
		return fmt.Errorf("limit must be positive: %w", domain.ErrInvalidInput)
	}
	if f.Offset < 0 {
		return fmt.Errorf("offset must be non-negative: %w", domain.ErrInvalidInput)
	}
	return nil
}

// ParseFilter builds a Filter from URL query parameters, applying the
// pagination defaults for absent values. Malformed numerics and booleans
// fail before any query is issued.
func ParseFilter(values url.Values) (Filter, error) {
	f := Filter{
		Limit:  DefaultLimit,
		Offset: DefaultOffset,
	}

	if q := values.Get("query"); q != "" {
		f.Query = &q
	}
	if id := values.Get("category_id"); id != "" {
		f.CategoryID = &id
	}
	if id := values.Get("store_id"); id != "" {
		f.StoreID = &id
	}

	if raw := values.Get("min_price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("min_price is not a valid number: %w", domain.ErrInvalidInput)
		}
		f.MinPrice = &price
	}
	if raw := values.Get("max_price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("max_price is not a valid number: %w", domain.ErrInvalidInput)
		}
		f.MaxPrice = &price
	}

	if raw := values.Get("in_stock_only"); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("in_stock_only is not a valid boolean: %w", domain.ErrInvalidInput)
		}
		f.InStockOnly = inStock
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("limit is not a valid integer: %w", domain.ErrInvalidInput)
		}
		f.Limit = limit
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("offset is not a valid integer: %w", domain.ErrInvalidInput)
		}
		f.Offset = offset
	}

	return f, f.Validate()
}
