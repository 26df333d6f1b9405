package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	JWTSecret          []byte
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter builds the cart API: public product reads, authenticated cart
// routes and a health check.
func NewRouter(cfg RouterConfig, carts CartService, products ProductCatalog, logger *slog.Logger) http.Handler {
	cartHandler := NewCartHandler(carts, cfg.RequestTimeout)
	productHandler := NewProductHandler(products, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{id}", productHandler.GetProduct)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWTSecret))
			r.Use(CSRFMiddleware)

			r.Get("/", cartHandler.GetCart)
			r.Post("/", cartHandler.AddItem)
			r.Delete("/", cartHandler.ClearCart)
			r.Patch("/{id}", cartHandler.UpdateQuantity)
			r.Delete("/{id}", cartHandler.RemoveItem)
		})
	})

	return otelhttp.NewHandler(r, "cart-api")
}
