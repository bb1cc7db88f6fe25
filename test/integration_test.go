//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/afontenla/bazaar/internal/catalog"
	"github.com/afontenla/bazaar/internal/domain"
	"github.com/afontenla/bazaar/internal/orders"
	"github.com/afontenla/bazaar/internal/payments"
	"github.com/afontenla/bazaar/internal/search"
)

// storefront wires the whole API surface against a real database, the same
// way cmd/server does minus telemetry and kafka.
type storefront struct {
	db          *sql.DB
	catalogRepo *catalog.Repository
	ordersRepo  *orders.Repository
	server      *httptest.Server
}

func newStorefront(t *testing.T, connStr string) *storefront {
	t.Helper()

	db, err := OpenDB(connStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalogRepo := catalog.NewRepository(db)
	ordersRepo := orders.NewRepository(db)
	searchRepo := search.NewRepository(db)

	catalogHandler := catalog.NewHandler(catalogRepo, logger)
	searchHandler := search.NewHandler(searchRepo, logger)
	ordersHandler := orders.NewHandler(ordersRepo, catalogRepo, nil, logger, false)
	paymentsHandler := payments.NewHandler(ordersRepo, payments.NewMockProvider(), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /categories", catalogHandler.HandleCreateCategory)
	mux.HandleFunc("POST /stores", catalogHandler.HandleCreateStore)
	mux.HandleFunc("POST /items", catalogHandler.HandleCreateItem)
	mux.HandleFunc("GET /items", searchHandler.HandleSearch)
	mux.HandleFunc("GET /items/{id}", catalogHandler.HandleGetItem)
	mux.HandleFunc("PATCH /items/{id}", catalogHandler.HandleUpdateItem)
	mux.HandleFunc("GET /categories/{id}/items", searchHandler.HandleListByCategory)
	mux.HandleFunc("GET /stores/{id}/items", searchHandler.HandleListByStore)
	mux.HandleFunc("POST /orders", ordersHandler.HandleCreate)
	mux.HandleFunc("GET /orders/{id}", ordersHandler.HandleGet)
	mux.HandleFunc("PATCH /orders/{id}/status", ordersHandler.HandleUpdateStatus)
	mux.HandleFunc("POST /orders/{id}/payment-intent", paymentsHandler.HandleCreateIntent)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &storefront{
		db:          db,
		catalogRepo: catalogRepo,
		ordersRepo:  ordersRepo,
		server:      server,
	}
}

func (s *storefront) post(t *testing.T, path, body string) (*http.Response, []byte) {
	t.Helper()
	return s.do(t, http.MethodPost, path, body)
}

func (s *storefront) patch(t *testing.T, path, body string) (*http.Response, []byte) {
	t.Helper()
	return s.do(t, http.MethodPatch, path, body)
}

func (s *storefront) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	return s.do(t, http.MethodGet, path, "")
}

func (s *storefront) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.server.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp, data
}

// seedCatalog creates one category, one store and three items at different
// price points and stock levels.
func (s *storefront) seedCatalog(t *testing.T, ctx context.Context) (categoryID, storeID string, itemIDs map[string]string) {
	t.Helper()

	category, err := s.catalogRepo.CreateCategory(ctx, "Electronics", nil)
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	store, err := s.catalogRepo.CreateStore(ctx, "Gizmo Shack", nil, "owner@gizmo.example")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	itemIDs = map[string]string{}
	for _, seed := range []struct {
		name  string
		price string
		stock int
	}{
		{"Budget Widget", "10.00", 5},
		{"Standard Widget", "50.00", 0},
		{"Deluxe Widget", "200.00", 3},
	} {
		item := &domain.Item{
			Name:          seed.name,
			Price:         decimal.RequireFromString(seed.price),
			StockQuantity: seed.stock,
			CategoryID:    category.ID,
			StoreID:       store.ID,
		}
		if err := s.catalogRepo.CreateItem(ctx, item); err != nil {
			t.Fatalf("failed to create item %s: %v", seed.name, err)
		}
		itemIDs[seed.name] = item.ID
	}

	return category.ID, store.ID, itemIDs
}

func TestItemSearch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg.ConnStr)
	categoryID, storeID, _ := s.seedCatalog(t, ctx)

	searchItems := func(t *testing.T, path string) []domain.ItemWithRelations {
		t.Helper()
		resp, body := s.get(t, path)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", resp.StatusCode, body)
		}
		var items []domain.ItemWithRelations
		if err := json.Unmarshal(body, &items); err != nil {
			t.Fatalf("failed to decode items: %v", err)
		}
		return items
	}

	t.Run("no filters returns everything", func(t *testing.T) {
		items := searchItems(t, "/items")
		if len(items) != 3 {
			t.Fatalf("expected 3 items, got %d", len(items))
		}
		for _, item := range items {
			if item.Category.ID != categoryID || item.Store.ID != storeID {
				t.Errorf("expected joined category and store on %s", item.Name)
			}
		}
	})

	t.Run("price bounds are AND-ed", func(t *testing.T) {
		items := searchItems(t, "/items?min_price=25&max_price=100")
		if len(items) != 1 {
			t.Fatalf("expected 1 item in [25, 100], got %d", len(items))
		}
		if items[0].Name != "Standard Widget" {
			t.Errorf("expected Standard Widget, got %s", items[0].Name)
		}
	})

	t.Run("name match is a case-insensitive substring", func(t *testing.T) {
		items := searchItems(t, "/items?query=DELUXE")
		if len(items) != 1 || items[0].Name != "Deluxe Widget" {
			t.Fatalf("expected only Deluxe Widget, got %d items", len(items))
		}
	})

	t.Run("in_stock_only hides zero-stock items", func(t *testing.T) {
		items := searchItems(t, "/items?in_stock_only=true")
		if len(items) != 2 {
			t.Fatalf("expected 2 in-stock items, got %d", len(items))
		}
		for _, item := range items {
			if item.StockQuantity < 1 {
				t.Errorf("expected stock >= 1, got %d for %s", item.StockQuantity, item.Name)
			}
		}
	})

	t.Run("browse by category and store", func(t *testing.T) {
		byCategory := searchItems(t, "/categories/"+categoryID+"/items")
		if len(byCategory) != 3 {
			t.Errorf("expected 3 items in category, got %d", len(byCategory))
		}
		byStore := searchItems(t, "/stores/"+storeID+"/items?min_price=100")
		if len(byStore) != 1 {
			t.Errorf("expected 1 store item over 100, got %d", len(byStore))
		}
	})

	t.Run("pagination", func(t *testing.T) {
		page := searchItems(t, "/items?limit=2")
		if len(page) != 2 {
			t.Errorf("expected 2 items on first page, got %d", len(page))
		}
		rest := searchItems(t, "/items?limit=2&offset=2")
		if len(rest) != 1 {
			t.Errorf("expected 1 item on second page, got %d", len(rest))
		}
	})
}

func TestCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg.ConnStr)
	_, _, itemIDs := s.seedCatalog(t, ctx)
	budgetID := itemIDs["Budget Widget"]
	deluxeID := itemIDs["Deluxe Widget"]

	resp, body := s.post(t, "/orders", `{
		"guest_name": "Ada Guest",
		"guest_email": "ada@example.com",
		"guest_address": "1 Test Lane",
		"items": [
			{"item_id": "`+budgetID+`", "quantity": 2},
			{"item_id": "`+deluxeID+`", "quantity": 1}
		]
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.StatusCode, body)
	}

	var order domain.Order
	if err := json.Unmarshal(body, &order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("220.00")) {
		t.Fatalf("expected total 220.00, got %s", order.TotalAmount)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status pending, got %s", order.Status)
	}

	// Order plus both lines must have been written atomically.
	persisted, err := s.ordersRepo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to load order from DB: %v", err)
	}
	if persisted == nil || len(persisted.Items) != 2 {
		t.Fatalf("expected persisted order with 2 lines, got %+v", persisted)
	}

	// Line prices are snapshots: repricing the item must not change them.
	newPrice := "999.99"
	resp, body = s.patch(t, "/items/"+budgetID, `{"price": "`+newPrice+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 repricing item, got %d: %s", resp.StatusCode, body)
	}
	persisted, err = s.ordersRepo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to reload order: %v", err)
	}
	for _, line := range persisted.Items {
		if line.ItemID == budgetID && !line.PriceAtTime.Equal(decimal.RequireFromString("10.00")) {
			t.Errorf("expected snapshotted price 10.00, got %s", line.PriceAtTime)
		}
	}

	// Payment intent while pending.
	resp, body = s.post(t, "/orders/"+order.ID+"/payment-intent", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 for payment intent, got %d: %s", resp.StatusCode, body)
	}
	var intent domain.PaymentIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		t.Fatalf("failed to decode intent: %v", err)
	}
	if !strings.HasPrefix(intent.PaymentIntentID, "pi_mock_") {
		t.Fatalf("unexpected intent id: %s", intent.PaymentIntentID)
	}

	// Mark the order paid, carrying the intent id.
	resp, body = s.patch(t, "/orders/"+order.ID+"/status",
		`{"status": "paid", "payment_intent_id": "`+intent.PaymentIntentID+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 for status update, got %d: %s", resp.StatusCode, body)
	}
	var paid domain.Order
	if err := json.Unmarshal(body, &paid); err != nil {
		t.Fatalf("failed to decode updated order: %v", err)
	}
	if paid.Status != domain.OrderStatusPaid {
		t.Fatalf("expected status paid, got %s", paid.Status)
	}
	if paid.PaymentIntentID == nil || *paid.PaymentIntentID != intent.PaymentIntentID {
		t.Fatalf("expected stored intent id %s, got %v", intent.PaymentIntentID, paid.PaymentIntentID)
	}

	// A second intent request must now be refused.
	resp, body = s.post(t, "/orders/"+order.ID+"/payment-intent", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status 409 for paid order, got %d: %s", resp.StatusCode, body)
	}

	// And so must a transition backwards.
	resp, body = s.patch(t, "/orders/"+order.ID+"/status", `{"status": "pending"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status 409 for paid->pending, got %d: %s", resp.StatusCode, body)
	}

	// Stock is informational: the checkout must not have touched it.
	item, err := s.catalogRepo.GetItem(ctx, deluxeID)
	if err != nil {
		t.Fatalf("failed to load item: %v", err)
	}
	if item.StockQuantity != 3 {
		t.Fatalf("expected stock untouched at 3, got %d", item.StockQuantity)
	}
}

func TestCheckoutRejectsUnknownItem(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg.ConnStr)
	_, _, itemIDs := s.seedCatalog(t, ctx)

	resp, body := s.post(t, "/orders", `{
		"guest_name": "Ada Guest",
		"guest_email": "ada@example.com",
		"guest_address": "1 Test Lane",
		"items": [
			{"item_id": "`+itemIDs["Budget Widget"]+`", "quantity": 1},
			{"item_id": "00000000-0000-0000-0000-000000000000", "quantity": 1}
		]
	}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", resp.StatusCode, body)
	}

	// Nothing may have been persisted for the failed checkout.
	all, err := s.ordersRepo.List(ctx)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no orders after failed checkout, got %d", len(all))
	}
}

func TestKafkaConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	if len(brokers) == 0 {
		t.Fatal("expected at least one broker")
	}

	t.Logf("kafka brokers: %v", brokers)
}
