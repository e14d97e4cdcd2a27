package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gonzalofreyna/melocoton-move/product-service/internal/domain"
	"github.com/gonzalofreyna/melocoton-move/product-service/internal/repository"
	"github.com/gonzalofreyna/melocoton-move/product-service/pkg/catalog"
)

// ProductStore is the read side of the product repository.
type ProductStore interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, slug string) (*domain.Product, error)
}

type ProductHandler struct {
	store   ProductStore
	timeout time.Duration
	log     *slog.Logger
}

func NewProductHandler(store ProductStore, timeout time.Duration, log *slog.Logger) *ProductHandler {
	return &ProductHandler{
		store:   store,
		timeout: timeout,
		log:     log,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Catalog serves the whole catalog as a bare JSON array, the document the
// storefront and the checkout service both read.
func (h *ProductHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.store.GetAllProducts(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "failed to load products", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load products")
		return
	}

	records := make([]catalog.Record, len(products))
	for i, p := range products {
		records[i] = p.Record()
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	respondJSON(w, http.StatusOK, records)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.store.GetProduct(ctx, chi.URLParam(r, "slug"))
	if errors.Is(err, repository.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "failed to load product", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}

	respondJSON(w, http.StatusOK, p.Record())
}

// Routes mounts the catalog endpoints.
func (h *ProductHandler) Routes(r chi.Router) {
	r.Get("/products.json", h.Catalog)
	r.Get("/products/{slug}", h.Get)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
