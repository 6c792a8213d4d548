package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/autonfe/desk/internal/api/middleware"
)

// NewRouter creates the control API router, instrumented with otelhttp.
func NewRouter(h *RetrievalHandler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewTraceMiddleware(logger))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/retrievals/nfe", h.StartNFe)
		r.Post("/retrievals/nfse", h.StartNFSe)
		r.Delete("/retrievals/current", h.Cancel)
		r.Get("/panel", h.GetPanel)
		r.Get("/toasts", h.GetToasts)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return otelhttp.NewHandler(r, "autonfe-control-api")
}
