package middleware

import (
	"log/slog"
	"net/http"

	"github.com/autonfe/desk/internal/api/shared"
)

// NewTraceMiddleware adds a trace ID to the request context and logs the
// request at debug level.
func NewTraceMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			w.Header().Set("X-Trace-ID", shared.GetTraceID(ctx))

			logger.Debug("request started",
				slog.String("trace_id", shared.GetTraceID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
