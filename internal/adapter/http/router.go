package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/railledger/internal/adapter/http/handler"
	"github.com/iho/railledger/internal/adapter/http/middleware"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	LedgerHandler    *handler.LedgerHandler
	SnapshotHandler  *handler.SnapshotHandler
	RateHandler      *handler.RateHandler
	ProvisionHandler *handler.ProvisionHandler
	HealthHandler    *handler.HealthHandler
	Logger           zerolog.Logger
}

// NewRouter creates the HTTP router. The API is read/ops only; settlement
// facts enter through the rail consumers, never through this surface.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.NewRecoveryMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)

	r.Get("/healthz", cfg.HealthHandler.Liveness)
	r.Get("/readyz", cfg.HealthHandler.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/payment-links/{id}", func(r chi.Router) {
			r.Get("/entries", cfg.LedgerHandler.ListByPaymentLink)
			r.Get("/snapshots", cfg.SnapshotHandler.ListByPaymentLink)
			r.Get("/variance", cfg.SnapshotHandler.GetVariance)
		})

		r.Get("/entries", cfg.LedgerHandler.ListByKey)
		r.Post("/tenants/{id}/provision", cfg.ProvisionHandler.Provision)
		r.Get("/rates/{base}/{quote}", cfg.RateHandler.Get)
	})

	return r
}
