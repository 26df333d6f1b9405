package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/aquavo/fishweb-cart/internal/logger"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	CSRFHeader = "X-CSRF-Token"
	CSRFCookie = "csrf_token"
)

// CSRFMiddleware requires the anti-forgery header on state-changing requests.
// When the csrf_token cookie is present the header must match it.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get(CSRFHeader)
		if token == "" {
			respondError(w, http.StatusForbidden, "csrf_missing", "missing "+CSRFHeader+" header")
			return
		}
		if c, err := r.Cookie(CSRFCookie); err == nil {
			if subtle.ConstantTimeCompare([]byte(c.Value), []byte(token)) != 1 {
				respondError(w, http.StatusForbidden, "csrf_mismatch", "csrf token mismatch")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request and hands handlers a logger tagged
// with the request id through the context.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.With("request_id", middleware.GetReqID(r.Context()))
			ctx := logger.WithContext(r.Context(), reqLog)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				reqLog.InfoContext(ctx, "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
				)
			}()
			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
