package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	serialization := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	uniqueViolation := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}

	require.True(t, retryable(deadlock))
	require.True(t, retryable(serialization))
	require.True(t, retryable(fmt.Errorf("award: %w", deadlock)), "wrapping must not hide the code")

	require.False(t, retryable(uniqueViolation))
	require.False(t, retryable(errors.New("boom")))
	require.False(t, retryable(nil))
}

func TestWrapStorageKeepsRetryableIdentity(t *testing.T) {
	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}

	wrapped := wrapStorage(deadlock)
	require.True(t, retryable(wrapped), "a deadlock must stay visible to the retry loop")
	require.False(t, errors.Is(wrapped, domain.ErrEngineUnavailable))
}

func TestWrapStoragePreservesSentinels(t *testing.T) {
	require.ErrorIs(t, wrapStorage(domain.ErrInsufficientBalance), domain.ErrInsufficientBalance)
	require.ErrorIs(t, wrapStorage(domain.ErrUserNotFound), domain.ErrUserNotFound)
	require.ErrorIs(t, wrapStorage(errors.New("connection reset")), domain.ErrEngineUnavailable)
	require.NoError(t, wrapStorage(nil))
}
