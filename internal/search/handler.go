package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/afontenla/bazaar/internal/domain"
)

// ItemSearcher runs a composed item search. *Repository implements it.
type ItemSearcher interface {
	Search(ctx context.Context, f Filter) ([]domain.ItemWithRelations, error)
}

type Handler struct {
	searcher ItemSearcher
	logger   *slog.Logger
}

func NewHandler(searcher ItemSearcher, logger *slog.Logger) *Handler {
	return &Handler{
		searcher: searcher,
		logger:   logger,
	}
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.search(w, r, filter)
}

// HandleListByCategory is the browse-by-category read. It is the same
// conjunction query with a single category predicate.
func (h *Handler) HandleListByCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing category id")
		return
	}

	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.CategoryID = &id

	h.search(w, r, filter)
}

func (h *Handler) HandleListByStore(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing store id")
		return
	}

	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.StoreID = &id

	h.search(w, r, filter)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, filter Filter) {
	items, err := h.searcher.Search(r.Context(), filter)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to search items", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("items searched", "count", len(items))
	h.writeJSON(w, http.StatusOK, items)
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
