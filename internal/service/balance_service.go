package service

import (
	"context"
	"errors"

	"github.com/dinver-app/dinver-sub009/internal/cache"
	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/repository"
)

// BalanceService is the read side of the engine: cached balance lookups and
// ledger history.
type BalanceService struct {
	ledger   *repository.LedgerRepository
	balances *repository.BalanceRepository
	cache    *cache.BalanceCache
}

func NewBalanceService(ledger *repository.LedgerRepository, balances *repository.BalanceRepository, balanceCache *cache.BalanceCache) *BalanceService {
	return &BalanceService{
		ledger:   ledger,
		balances: balances,
		cache:    balanceCache,
	}
}

// GetBalance serves the cached view when present and falls through to the
// database on a miss. A user with no ledger activity reads as a zero
// balance, not an error.
func (s *BalanceService) GetBalance(ctx context.Context, userID int64) (*domain.Balance, error) {
	if b, err := s.cache.Get(ctx, userID); err == nil {
		return b, nil
	} else if !cache.Miss(err) {
		logger.Warn("balance cache read failed", "user_id", userID, "error", err)
	}

	b, err := s.balances.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return &domain.Balance{UserID: userID}, nil
		}
		return nil, wrapStorage(err)
	}

	if err := s.cache.Set(ctx, b); err != nil {
		logger.Warn("balance cache write failed", "user_id", userID, "error", err)
	}
	return b, nil
}

// History returns the user's most recent ledger entries, newest first.
func (s *BalanceService) History(ctx context.Context, userID int64, limit int) ([]*domain.LedgerEntry, error) {
	entries, err := s.ledger.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return entries, nil
}
