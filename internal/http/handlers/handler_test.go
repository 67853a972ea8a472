package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestWriteError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrUnknownActionType, http.StatusBadRequest},
		{domain.ErrSelfReferral, http.StatusUnprocessableEntity},
		{domain.ErrInsufficientBalance, http.StatusConflict},
		{domain.ErrReferrerMismatch, http.StatusConflict},
		{domain.ErrCycleAlreadyClosed, http.StatusConflict},
		{domain.ErrConcurrentModification, http.StatusServiceUnavailable},
		{domain.ErrCycleNotFound, http.StatusNotFound},
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrEngineUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", domain.ErrEngineUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("something else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeError(c, tc.err)
		require.Equal(t, tc.status, w.Code, "error=%v", tc.err)
	}
}

func TestPathUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := pathUserID(c)
	require.True(t, ok)
	require.Equal(t, int64(42), id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: bad}}
		_, ok := pathUserID(c)
		require.False(t, ok, "value=%q", bad)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
}
