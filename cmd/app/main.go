package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/cache"
	"github.com/dinver-app/dinver-sub009/internal/config"
	"github.com/dinver-app/dinver-sub009/internal/db"
	httpServer "github.com/dinver-app/dinver-sub009/internal/http"
	"github.com/dinver-app/dinver-sub009/internal/http/handlers"
	"github.com/dinver-app/dinver-sub009/internal/http/middleware"
	"github.com/dinver-app/dinver-sub009/internal/ingest"
	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/observability/otel"
	"github.com/dinver-app/dinver-sub009/internal/repository"
	"github.com/dinver-app/dinver-sub009/internal/scheduler"
	"github.com/dinver-app/dinver-sub009/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var version = "dev"

func main() {
	cfg := config.Load()
	service.InitJWT(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.InitTracer(ctx, cfg.OtelEndpoint, "points-engine")
	if err != nil {
		logger.Fatal("tracer init failed", "error", err)
	}
	defer shutdownTracer()

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	balanceCache, err := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connect failed", "error", err)
	}
	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// repositories
	ledgerRepo := repository.NewLedgerRepository(dbPool)
	balanceRepo := repository.NewBalanceRepository(dbPool)
	achievementRepo := repository.NewAchievementRepository(dbPool)
	referralRepo := repository.NewReferralRepository(dbPool)
	cycleRepo := repository.NewCycleRepository(dbPool)
	auditRepo := repository.NewAuditRepository(dbPool)

	// services
	registry := cfg.Registry()
	guard := service.NewIdempotencyGuard(ledgerRepo)
	awards := service.NewAwardService(ledgerRepo, balanceRepo, balanceCache, cfg.LevelThresholds, cfg.AwardRetryBudget)
	achievements, err := service.NewAchievementService(achievementRepo, registry)
	if err != nil {
		logger.Fatal("achievement catalog load failed", "error", err)
	}
	engine := service.NewEngine(dbPool, guard, awards, achievements, registry, cfg.UnlockQueueDepth)
	balances := service.NewBalanceService(ledgerRepo, balanceRepo, balanceCache)
	referrals := service.NewReferralService(dbPool, referralRepo, awards, cfg.ReferralPoints, cfg.AwardRetryBudget)
	cycles := service.NewCycleService(dbPool, cycleRepo, cfg.CycleWinnerCount)
	admin := service.NewAdminService(dbPool, awards, auditRepo)
	reconciler := service.NewReconciler(dbPool, ledgerRepo, balanceRepo, balanceCache, cfg.LevelThresholds)

	r := gin.Default()
	h := handlers.NewHandler(dbPool, engine, balances, achievements, referrals, cycles, admin, reconciler)
	httpServer.RegisterRoutes(r, dbPool, balanceCache, cfg, version, h)

	// background work
	sched := scheduler.New(cycles, reconciler, cfg.SchedulerInterval, cfg.ReconcileEvery)
	go sched.Run(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		consumer := ingest.NewKafkaEvents(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, engine)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("kafka consumer stopped", "error", err)
			}
		}()
	}

	if cfg.RabbitURL != "" {
		consumer, err := ingest.NewRabbitReferrals(cfg.RabbitURL, referrals)
		if err != nil {
			logger.Fatal("rabbit connect failed", "error", err)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("rabbit consumer stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: otelhttp.NewHandler(r, "points-engine"),
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}
