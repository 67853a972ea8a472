package service

import (
	"context"
	"fmt"

	"github.com/dinver-app/dinver-sub009/internal/cache"
	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/metrics"
	"github.com/dinver-app/dinver-sub009/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reconciler detects balances that drifted from the ledger sum and repairs
// them. The ledger is the source of truth; a drifted balance is always
// rewritten to the sum, never the other way around.
type Reconciler struct {
	db       *pgxpool.Pool
	ledger   *repository.LedgerRepository
	balances *repository.BalanceRepository
	cache    *cache.BalanceCache

	levelThresholds []float64
}

func NewReconciler(db *pgxpool.Pool, ledger *repository.LedgerRepository, balances *repository.BalanceRepository, balanceCache *cache.BalanceCache, levelThresholds []float64) *Reconciler {
	return &Reconciler{
		db:              db,
		ledger:          ledger,
		balances:        balances,
		cache:           balanceCache,
		levelThresholds: levelThresholds,
	}
}

// Run sweeps for drifted balances and repairs each one. Returns the number
// of repaired rows. One failed repair does not stop the sweep.
func (r *Reconciler) Run(ctx context.Context, limit int) (int, error) {
	users, err := r.balances.ListOutOfSync(ctx, limit)
	if err != nil {
		return 0, wrapStorage(err)
	}

	repaired := 0
	for _, userID := range users {
		if err := r.repair(ctx, userID); err != nil {
			logger.Error("balance repair failed", "user_id", userID, "error", err)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		metrics.ReconcileDrift.Add(float64(repaired))
		logger.Warn("reconciled drifted balances", "count", repaired)
	}
	return repaired, nil
}

// repair recomputes one user's balance from the ledger under the same row
// lock awards take, so no concurrent award is lost in the rewrite.
func (r *Reconciler) repair(ctx context.Context, userID int64) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin repair tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := r.balances.LockWithTx(ctx, tx, userID)
	if err != nil {
		return err
	}

	sum, err := r.ledger.SumByUserWithTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	if b.TotalPoints == sum {
		// drift resolved between sweep and lock
		return nil
	}

	// last_entry_at is left alone: the repair is bookkeeping, not activity
	b.TotalPoints = sum
	b.Level = LevelFor(r.levelThresholds, sum)

	if err := r.balances.UpdateWithTx(ctx, tx, b); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if err := r.cache.Invalidate(ctx, userID); err != nil {
		logger.Warn("balance cache invalidation failed", "user_id", userID, "error", err)
	}
	return nil
}
