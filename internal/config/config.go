package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/logger"

	"github.com/joho/godotenv"
)

// Config holds everything the engine reads from the environment. Business
// thresholds (levels, referral amounts, winner count) are configuration by
// design: the engine never hardcodes them.
type Config struct {
	AppPort     string
	DatabaseURL string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// LevelThresholds[i] is the minimum total for level i+1. Level 0 is
	// everyone below the first threshold.
	LevelThresholds []float64

	// Referral payouts per trigger and side. A zero amount disables that
	// side for the trigger.
	ReferralPoints map[domain.ReferralTrigger]ReferralPayout

	CycleWinnerCount  int
	UnlockQueueDepth  int
	AwardRetryBudget  int
	SchedulerInterval time.Duration
	ReconcileEvery    int // run the reconcile sweep every Nth scheduler tick

	APIRateLimit  int
	APIRateWindow time.Duration

	// Optional ingest and tracing endpoints. Empty disables the component.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
	RabbitURL    string
	OtelEndpoint string
}

// ReferralPayout is the per-side reward for one trigger.
type ReferralPayout struct {
	Referrer float64
	Referred float64
}

// Load reads configuration from the environment (and .env when present).
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	return &Config{
		AppPort:     port,
		DatabaseURL: dbURL,
		JWTSecret:   jwtSecret,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		LevelThresholds: parseThresholds(os.Getenv("LEVEL_THRESHOLDS")),
		ReferralPoints:  parseReferralPoints(),

		CycleWinnerCount:  envInt("CYCLE_WINNER_COUNT", 3),
		UnlockQueueDepth:  envInt("UNLOCK_QUEUE_DEPTH", 8),
		AwardRetryBudget:  envInt("AWARD_RETRY_BUDGET", 3),
		SchedulerInterval: time.Duration(envInt("SCHEDULER_INTERVAL_SECONDS", 60)) * time.Second,
		ReconcileEvery:    envInt("RECONCILE_EVERY_TICKS", 60),

		APIRateLimit:  envInt("API_RATE_LIMIT", 60),
		APIRateWindow: time.Duration(envInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,

		KafkaBrokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOr("KAFKA_EVENTS_TOPIC", "action-events"),
		KafkaGroupID: envOr("KAFKA_GROUP_ID", "points-engine"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		OtelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// Registry builds the action registry: built-in mappings plus any
// configured via ACTION_CATEGORY_MAP, e.g.
// "dish_photo_add:reviews,menu_scan:visits|receipts".
func (c *Config) Registry() *domain.ActionRegistry {
	reg := domain.DefaultRegistry()
	raw := os.Getenv("ACTION_CATEGORY_MAP")
	if raw == "" {
		return reg
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		reg.Register(parts[0], domain.ActionMapping{Categories: strings.Split(parts[1], "|")})
	}
	return reg
}

func parseThresholds(raw string) []float64 {
	// defaults match the seeded product tiers
	thresholds := []float64{100, 250, 500, 1000, 2500}
	if raw == "" {
		return thresholds
	}
	var parsed []float64
	for _, s := range strings.Split(raw, ",") {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && f > 0 {
			parsed = append(parsed, f)
		}
	}
	if len(parsed) == 0 {
		return thresholds
	}
	sort.Float64s(parsed)
	return parsed
}

func parseReferralPoints() map[domain.ReferralTrigger]ReferralPayout {
	return map[domain.ReferralTrigger]ReferralPayout{
		domain.TriggerRegistration: {
			Referrer: envFloat("REFERRAL_REGISTRATION_REFERRER", 50),
			Referred: envFloat("REFERRAL_REGISTRATION_REFERRED", 25),
		},
		domain.TriggerVerification: {
			Referrer: envFloat("REFERRAL_VERIFICATION_REFERRER", 30),
			Referred: envFloat("REFERRAL_VERIFICATION_REFERRED", 0),
		},
		domain.TriggerFirstReceipt: {
			Referrer: envFloat("REFERRAL_FIRST_RECEIPT_REFERRER", 40),
			Referred: envFloat("REFERRAL_FIRST_RECEIPT_REFERRED", 20),
		},
	}
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}
