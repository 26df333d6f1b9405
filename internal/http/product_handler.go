package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ProductCatalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

type ProductHandler struct {
	catalog ProductCatalog
	timeout time.Duration
}

func NewProductHandler(catalog ProductCatalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{catalog: catalog, timeout: timeout}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
