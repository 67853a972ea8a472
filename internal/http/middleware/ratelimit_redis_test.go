package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func limitedRouter(max int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/balance", RedisRateLimit(max, window), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doGet(t *testing.T, r *gin.Engine) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	r.ServeHTTP(w, req)
	return w
}

// Without redis the limiter must not block traffic: read endpoints keep
// serving when the limiter backend was never configured.
func TestRedisRateLimitFailsOpenWithoutClient(t *testing.T) {
	saved := redisClient
	redisClient = nil
	t.Cleanup(func() { redisClient = saved })

	r := limitedRouter(1, time.Second)
	for i := 0; i < 5; i++ {
		w := doGet(t, r)
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, w.Header().Get("X-RateLimit-Error"))
	}
}

// A redis outage after startup must also fail open, but leave the error
// marker header so the degradation is visible.
func TestRedisRateLimitFailsOpenOnRedisError(t *testing.T) {
	saved := redisClient
	redisClient = redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() {
		redisClient.Close()
		redisClient = saved
	})

	r := limitedRouter(1, time.Second)
	for i := 0; i < 3; i++ {
		w := doGet(t, r)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "redis-error", w.Header().Get("X-RateLimit-Error"))
	}
}

// Against a real redis the fixed window must admit max requests and reject
// the next one. Runs only when REDIS_ADDR is set.
func TestRedisRateLimitBlocksOverLimit(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}

	saved := redisClient
	InitRedisRateLimiter(addr, os.Getenv("REDIS_PASSWORD"), db)
	require.NotNil(t, redisClient, "limiter did not connect to redis")
	t.Cleanup(func() { redisClient = saved })

	max := 2
	r := limitedRouter(max, 2*time.Second)

	for i := 0; i < max; i++ {
		w := doGet(t, r)
		require.Equal(t, http.StatusOK, w.Code, "request %d inside the window", i+1)
	}
	w := doGet(t, r)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}
