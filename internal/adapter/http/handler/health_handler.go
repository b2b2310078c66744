package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/iho/railledger/internal/adapter/http/dto"
	"github.com/iho/railledger/internal/rates"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	pool        *pgxpool.Pool
	redisClient *redis.Client
	factory     *rates.Factory
}

// NewHealthHandler creates a new HealthHandler. Redis and the rate factory
// are optional; nil dependencies are skipped in readiness checks.
func NewHealthHandler(pool *pgxpool.Pool, redisClient *redis.Client, factory *rates.Factory) *HealthHandler {
	return &HealthHandler{
		pool:        pool,
		redisClient: redisClient,
		factory:     factory,
	}
}

// Liveness returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness returns 200 if the service is ready to accept traffic. Provider
// health is reported but never fails readiness: the booking path degrades
// explicitly instead of taking the whole service out of rotation.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "postgres unhealthy", err.Error())
		return
	}

	status := map[string]any{
		"status":   "ready",
		"postgres": "ok",
	}

	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unhealthy", err.Error())
			return
		}
		status["redis"] = "ok"
	}

	if h.factory != nil {
		status["providers"] = dto.ProviderHealthFromRates(h.factory.CheckHealth(ctx))
	}

	writeJSON(w, http.StatusOK, status)
}
