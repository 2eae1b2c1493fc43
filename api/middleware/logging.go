package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

// wrap exposes status and size for handlers further down the chain. An
// already wrapped writer is reused so stacked middleware share one view.
func wrap(w http.ResponseWriter, r *http.Request) chimw.WrapResponseWriter {
	if ww, ok := w.(chimw.WrapResponseWriter); ok {
		return ww
	}
	return chimw.NewWrapResponseWriter(w, r.ProtoMajor)
}

// statusOf treats a handler that never wrote as 200, matching net/http.
func statusOf(ww chimw.WrapResponseWriter) int {
	if code := ww.Status(); code != 0 {
		return code
	}
	return http.StatusOK
}

func routePattern(r *http.Request, fallback string) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return fallback
}

// Logging writes one access line per request. Server errors log at error
// level, client errors at warn and the rest at info.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			ctx := logg.WithFields(r.Context(), map[string]any{"method": r.Method, "path": r.URL.Path})
			ww := wrap(w, r)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := statusOf(ww)
			ctx = logg.WithFields(ctx, map[string]any{
				"route":       routePattern(r, r.URL.Path),
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(began).Milliseconds(),
			})
			accessLog(ctx, logg, status)
		})
	}
}

func accessLog(ctx context.Context, logg *logger.Logger, status int) {
	switch {
	case status >= http.StatusInternalServerError:
		logg.Error(ctx, "request.complete", nil)
	case status >= http.StatusBadRequest:
		logg.Warn(ctx, "request.complete")
	default:
		logg.Info(ctx, "request.complete")
	}
}
