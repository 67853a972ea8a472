package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dinver-app/dinver-sub009/internal/cache"
	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// AwardService executes the ledger insert and the balance update as one
// atomic unit, with the balance row locked per user. Two concurrent awards
// for the same user serialize; unrelated users proceed in parallel.
type AwardService struct {
	ledger   *repository.LedgerRepository
	balances *repository.BalanceRepository
	cache    *cache.BalanceCache

	levelThresholds []float64
	retryBudget     int
}

func NewAwardService(ledger *repository.LedgerRepository, balances *repository.BalanceRepository, balanceCache *cache.BalanceCache, levelThresholds []float64, retryBudget int) *AwardService {
	if retryBudget < 1 {
		retryBudget = 1
	}
	return &AwardService{
		ledger:          ledger,
		balances:        balances,
		cache:           balanceCache,
		levelThresholds: levelThresholds,
		retryBudget:     retryBudget,
	}
}

// AwardInTx runs the award inside the caller's transaction: the engine,
// the referral coordinator and the admin path all commit an entry together
// with whatever else their transaction carries. The caller owns
// commit/rollback, retries and cache invalidation.
func (s *AwardService) AwardInTx(ctx context.Context, tx pgx.Tx, userID int64, actionType string, points float64, idempotencyKey string, meta map[string]interface{}) (*domain.AwardResult, error) {
	return s.awardInTx(ctx, tx, userID, actionType, points, idempotencyKey, meta)
}

func (s *AwardService) awardInTx(ctx context.Context, tx pgx.Tx, userID int64, actionType string, points float64, idempotencyKey string, meta map[string]interface{}) (*domain.AwardResult, error) {
	entry := &domain.LedgerEntry{
		UserID:         userID,
		ActionType:     actionType,
		Points:         points,
		IdempotencyKey: idempotencyKey,
		Meta:           meta,
	}

	inserted, err := s.ledger.InsertWithTx(ctx, tx, entry)
	if err != nil {
		return nil, wrapStorage(err)
	}
	if !inserted {
		return s.duplicateResult(ctx, userID, actionType, idempotencyKey)
	}

	b, err := s.balances.LockWithTx(ctx, tx, userID)
	if err != nil {
		return nil, wrapStorage(err)
	}

	newTotal := b.TotalPoints + points
	if newTotal < 0 {
		return nil, domain.ErrInsufficientBalance
	}

	b.TotalPoints = newTotal
	b.Level = LevelFor(s.levelThresholds, newTotal)
	b.LastEntryAt = &entry.CreatedAt

	if err := s.balances.UpdateWithTx(ctx, tx, b); err != nil {
		return nil, wrapStorage(err)
	}

	return &domain.AwardResult{
		Entry:       entry,
		TotalPoints: b.TotalPoints,
		Level:       b.Level,
	}, nil
}

// duplicateResult loads the entry the original call produced, so retries
// observe the same result as the first success.
func (s *AwardService) duplicateResult(ctx context.Context, userID int64, actionType, idempotencyKey string) (*domain.AwardResult, error) {
	entry, err := s.ledger.GetByKey(ctx, userID, actionType, idempotencyKey)
	if err != nil {
		return nil, wrapStorage(err)
	}

	res := &domain.AwardResult{Entry: entry, Duplicate: true}
	if b, err := s.balances.Get(ctx, userID); err == nil {
		res.TotalPoints = b.TotalPoints
		res.Level = b.Level
	}
	return res, nil
}

// Invalidate drops the cached balance view after an external commit.
func (s *AwardService) Invalidate(ctx context.Context, userID int64) {
	s.invalidate(ctx, userID)
}

func (s *AwardService) invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		logger.Warn("balance cache invalidation failed", "user_id", userID, "error", err)
	}
}

// retryable reports whether the error is a serialization failure or
// deadlock worth another attempt.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// wrapStorage keeps domain sentinels intact and folds everything else into
// EngineUnavailable, except retryable conflicts which keep their identity
// for the retry loop.
func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInsufficientBalance) ||
		errors.Is(err, domain.ErrUserNotFound) ||
		retryable(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
}
