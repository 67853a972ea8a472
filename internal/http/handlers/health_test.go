package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// unreachablePool builds a pool that dials nothing until pinged, so the
// handler's failure path is testable without a database.
func unreachablePool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), "postgres://nobody@127.0.0.1:1/none")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestLivenessNeedsNoDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(unreachablePool(t), nil, "test")

	r := gin.New()
	r.GET("/healthz", h.Liveness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessReportsDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(unreachablePool(t), nil, "test")

	r := gin.New()
	r.GET("/readyz", h.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "not ready", body.Status)
	require.Contains(t, body.Checks["ledger_db"], "unhealthy")
	require.Equal(t, "disabled", body.Checks["balance_cache"])
}
