package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/afontenla/bazaar/internal/domain"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type createCategoryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	category, err := h.repo.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		h.logger.Error("failed to create category", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("category created", "category_id", category.ID, "name", category.Name)
	h.writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, categories)
}

type createStoreRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	OwnerEmail  string  `json:"owner_email"`
}

func (h *Handler) HandleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := mail.ParseAddress(req.OwnerEmail); err != nil {
		h.writeError(w, http.StatusBadRequest, "owner_email is not a valid email address")
		return
	}

	store, err := h.repo.CreateStore(r.Context(), req.Name, req.Description, req.OwnerEmail)
	if err != nil {
		h.logger.Error("failed to create store", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("store created", "store_id", store.ID, "name", store.Name)
	h.writeJSON(w, http.StatusCreated, store)
}

func (h *Handler) HandleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.repo.ListStores(r.Context())
	if err != nil {
		h.logger.Error("failed to list stores", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, stores)
}

type createItemRequest struct {
	Name          string           `json:"name"`
	Description   *string          `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	StockQuantity int              `json:"stock_quantity"`
	Images        domain.ImageList `json:"images"`
	CategoryID    string           `json:"category_id"`
	StoreID       string           `json:"store_id"`
}

func (h *Handler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !req.Price.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}
	if req.StockQuantity < 0 {
		h.writeError(w, http.StatusBadRequest, "stock_quantity must be non-negative")
		return
	}
	if req.CategoryID == "" {
		h.writeError(w, http.StatusBadRequest, "category_id is required")
		return
	}
	if req.StoreID == "" {
		h.writeError(w, http.StatusBadRequest, "store_id is required")
		return
	}
	if err := validateImageURLs(req.Images); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.checkItemReferences(r, w, req.CategoryID, req.StoreID); err != nil {
		return
	}

	item := &domain.Item{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price.Round(2),
		StockQuantity: req.StockQuantity,
		Images:        req.Images,
		CategoryID:    req.CategoryID,
		StoreID:       req.StoreID,
	}

	if err := h.repo.CreateItem(r.Context(), item); err != nil {
		h.logger.Error("failed to create item", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("item created", "item_id", item.ID, "name", item.Name)
	h.writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	item, err := h.repo.GetItemWithRelations(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get item", "error", err, "item_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if item == nil {
		h.writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

type updateItemRequest struct {
	Name          *string           `json:"name"`
	Description   *string           `json:"description"`
	Price         *decimal.Decimal  `json:"price"`
	StockQuantity *int              `json:"stock_quantity"`
	Images        *domain.ImageList `json:"images"`
	CategoryID    *string           `json:"category_id"`
	StoreID       *string           `json:"store_id"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil && *req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}
	if req.Price != nil && !req.Price.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}
	if req.StockQuantity != nil && *req.StockQuantity < 0 {
		h.writeError(w, http.StatusBadRequest, "stock_quantity must be non-negative")
		return
	}
	if req.CategoryID != nil && *req.CategoryID == "" {
		h.writeError(w, http.StatusBadRequest, "category_id must not be empty")
		return
	}
	if req.StoreID != nil && *req.StoreID == "" {
		h.writeError(w, http.StatusBadRequest, "store_id must not be empty")
		return
	}
	if req.Images != nil {
		if err := validateImageURLs(*req.Images); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	categoryID := ""
	if req.CategoryID != nil {
		categoryID = *req.CategoryID
	}
	storeID := ""
	if req.StoreID != nil {
		storeID = *req.StoreID
	}
	if categoryID != "" || storeID != "" {
		if err := h.checkItemReferences(r, w, categoryID, storeID); err != nil {
			return
		}
	}

	update := ItemUpdate{
		Name:          req.Name,
		Description:   req.Description,
		StockQuantity: req.StockQuantity,
		Images:        req.Images,
		CategoryID:    req.CategoryID,
		StoreID:       req.StoreID,
	}
	if req.Price != nil {
		rounded := req.Price.Round(2)
		update.Price = &rounded
	}

	item, err := h.repo.UpdateItem(r.Context(), id, update)
	if err != nil {
		h.logger.Error("failed to update item", "error", err, "item_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if item == nil {
		h.writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.logger.Info("item updated", "item_id", item.ID)
	h.writeJSON(w, http.StatusOK, item)
}

// checkItemReferences verifies that the referenced category and store rows
// exist. There is no foreign key on the items table, so this is the only
// guard. Empty ids are skipped so partial updates can reuse it.
func (h *Handler) checkItemReferences(r *http.Request, w http.ResponseWriter, categoryID, storeID string) error {
	if categoryID != "" {
		category, err := h.repo.GetCategory(r.Context(), categoryID)
		if err != nil {
			h.logger.Error("failed to look up category", "error", err, "category_id", categoryID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return err
		}
		if category == nil {
			h.writeError(w, http.StatusNotFound, fmt.Sprintf("category %s not found", categoryID))
			return domain.ErrNotFound
		}
	}

	if storeID != "" {
		store, err := h.repo.GetStore(r.Context(), storeID)
		if err != nil {
			h.logger.Error("failed to look up store", "error", err, "store_id", storeID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return err
		}
		if store == nil {
			h.writeError(w, http.StatusNotFound, fmt.Sprintf("store %s not found", storeID))
			return domain.ErrNotFound
		}
	}

	return nil
}

func validateImageURLs(images domain.ImageList) error {
	for _, raw := range images {
		u, err := url.ParseRequestURI(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("images must be valid URLs")
		}
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
