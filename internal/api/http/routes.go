package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the host status router: liveness, backend status and
// the Prometheus metrics endpoint.
func NewRouter(backend BackendStatus, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	statusHandler := NewStatusHandler(backend, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", statusHandler.GetStatus)
	r.Get("/ready", statusHandler.GetReady)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
