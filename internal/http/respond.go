package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aquavo/fishweb-cart/internal/catalog"
	"github.com/aquavo/fishweb-cart/internal/logger"
	"github.com/aquavo/fishweb-cart/internal/repository"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleServiceError maps service errors onto HTTP statuses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, repository.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", "item not found in cart")
	case errors.Is(err, repository.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "cart_not_found", "cart not found")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(ctx).ErrorContext(ctx, "request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
