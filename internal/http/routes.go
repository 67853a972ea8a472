package http

import (
	"github.com/dinver-app/dinver-sub009/internal/cache"
	"github.com/dinver-app/dinver-sub009/internal/config"
	"github.com/dinver-app/dinver-sub009/internal/http/handlers"
	"github.com/dinver-app/dinver-sub009/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the full API surface. Services are built by the
// caller so the scheduler and ingest consumers share the same instances.
func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, balances *cache.BalanceCache, cfg *config.Config, version string, h *handlers.Handler) {
	healthHandler := handlers.NewHealthHandler(db, balances, version)

	// Health checks and metrics (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(cfg.APIRateLimit, cfg.APIRateWindow))

	// Event intake
	v1.POST("/events", h.SubmitEvent)
	v1.POST("/referral/trigger", h.TriggerReferral)

	// User read side
	v1.GET("/users/:id/balance", h.GetBalance)
	v1.GET("/users/:id/history", h.GetHistory)
	v1.GET("/users/:id/achievements", h.GetAchievements)
	v1.GET("/users/:id/referrals", h.GetReferralStats)
	v1.GET("/referral/chain", h.GetReferralChain)

	// Leaderboard cycles
	v1.GET("/cycles/:id", h.GetCycle)
	v1.GET("/cycles/:id/leaderboard", h.GetLeaderboard)

	// Operator API
	admin := v1.Group("/admin")
	admin.Use(middleware.AdminJWT())
	{
		admin.POST("/adjust", h.AdminAdjust)
		admin.GET("/users/:id/adjustments", h.AdminAdjustments)
		admin.POST("/cycles", h.OpenCycle)
		admin.POST("/cycles/:id/close", h.CloseCycle)
		admin.POST("/reconcile", h.Reconcile)
	}
}
