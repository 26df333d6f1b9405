package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/aquavo/fishweb-cart/internal/logger"
	"github.com/go-chi/chi/v5"
)

const maxQuantity = 99

// CartService is the cart backend behind the HTTP API.
type CartService interface {
	View(ctx context.Context, userID string) ([]domain.RemoteItem, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lines, err := h.carts.View(ctx, getUserIDFromContext(ctx))
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if !validQuantity(req.Quantity) {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	userID := getUserIDFromContext(ctx)
	if err := h.carts.AddItem(ctx, userID, req.ProductID, req.Quantity); err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	h.respondCart(ctx, w, userID, http.StatusCreated)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "id")
	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !validQuantity(req.Quantity) {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	userID := getUserIDFromContext(ctx)
	if err := h.carts.UpdateQuantity(ctx, userID, productID, req.Quantity); err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	h.respondCart(ctx, w, userID, http.StatusOK)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.RemoveItem(ctx, getUserIDFromContext(ctx), chi.URLParam(r, "id")); err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.ClearCart(ctx, getUserIDFromContext(ctx)); err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondCart answers a successful mutation with the cart as it now stands.
func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, userID string, status int) {
	lines, err := h.carts.View(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "cart view after mutation failed", "user_id", userID, "error", err)
		w.WriteHeader(status)
		return
	}
	respondJSON(w, status, lines)
}

func validQuantity(q int) bool {
	return q >= 1 && q <= maxQuantity
}
