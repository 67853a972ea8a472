package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/cache"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthHandler reports engine readiness. Postgres is the source of truth
// for the ledger, so a failed database check makes the engine not ready.
// The balance cache is an optimization; a failed cache check is reported
// but does not fail readiness.
type HealthHandler struct {
	db        *pgxpool.Pool
	balances  *cache.BalanceCache
	startTime time.Time
	version   string
}

func NewHealthHandler(db *pgxpool.Pool, balances *cache.BalanceCache, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		balances:  balances,
		startTime: time.Now(),
		version:   version,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness answers the k8s liveness probe without touching dependencies.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness answers the k8s readiness probe with per-dependency detail.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if err := h.db.Ping(ctx); err != nil {
		checks["ledger_db"] = "unhealthy: " + err.Error()
		ready = false
	} else {
		checks["ledger_db"] = "healthy"
	}

	switch {
	case !h.balances.Enabled():
		checks["balance_cache"] = "disabled"
	case h.balances.Ping(ctx) != nil:
		checks["balance_cache"] = "unhealthy"
	default:
		checks["balance_cache"] = "healthy"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// Health is the plain load balancer check.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "ledger database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}
