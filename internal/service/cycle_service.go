package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/metrics"
	"github.com/dinver-app/dinver-sub009/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CycleService manages leaderboard cycles: opening, live standings, and the
// single-shot close that freezes winners.
type CycleService struct {
	db          *pgxpool.Pool
	repo        *repository.CycleRepository
	winnerCount int
}

func NewCycleService(db *pgxpool.Pool, repo *repository.CycleRepository, winnerCount int) *CycleService {
	if winnerCount < 1 {
		winnerCount = 3
	}
	return &CycleService{db: db, repo: repo, winnerCount: winnerCount}
}

// Open creates a new OPEN cycle for the given window.
func (s *CycleService) Open(ctx context.Context, startDate, endDate time.Time, createdBy string) (*domain.LeaderboardCycle, error) {
	if !endDate.After(startDate) {
		return nil, fmt.Errorf("%w: end date must follow start date", domain.ErrInvalidCycleWindow)
	}
	c := &domain.LeaderboardCycle{
		StartDate: startDate,
		EndDate:   endDate,
		CreatedBy: createdBy,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, wrapStorage(err)
	}
	return c, nil
}

// Get returns the cycle plus its frozen winners once closed.
func (s *CycleService) Get(ctx context.Context, id int64) (*domain.CycleResult, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapStorage(err)
	}

	result := &domain.CycleResult{Cycle: c}
	if c.Status == domain.CycleStatusClosed {
		winners, err := s.repo.GetWinners(ctx, id)
		if err != nil {
			return nil, wrapStorage(err)
		}
		result.Winners = winners
	}
	return result, nil
}

// Standings returns the live leaderboard while the cycle is open, or the
// frozen winners after it closed.
func (s *CycleService) Standings(ctx context.Context, id int64, limit int) (*domain.CycleResult, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapStorage(err)
	}

	result := &domain.CycleResult{Cycle: c}
	if c.Status == domain.CycleStatusClosed {
		winners, err := s.repo.GetWinners(ctx, id)
		if err != nil {
			return nil, wrapStorage(err)
		}
		result.Winners = winners
		return result, nil
	}

	standings, err := s.repo.Standings(ctx, limit)
	if err != nil {
		return nil, wrapStorage(err)
	}
	for _, st := range standings {
		result.Winners = append(result.Winners, domain.CycleWinner{
			CycleID:           c.ID,
			UserID:            st.UserID,
			Rank:              st.Rank,
			PointsAtSelection: st.TotalPoints,
		})
	}
	return result, nil
}

// Close transitions the cycle OPEN→CLOSED and freezes the winner snapshot.
// Closing an already closed cycle returns ErrCycleAlreadyClosed with the
// existing winners untouched. Concurrent closers are serialized by a
// per-cycle advisory lock; the loser observes CLOSED and no-ops.
func (s *CycleService) Close(ctx context.Context, id int64) (*domain.CycleResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	locked, err := s.repo.TryAdvisoryLockWithTx(ctx, tx, id)
	if err != nil {
		return nil, wrapStorage(err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: close in progress", domain.ErrConcurrentModification)
	}

	c, err := s.repo.LockWithTx(ctx, tx, id)
	if err != nil {
		return nil, wrapStorage(err)
	}
	if c.Status == domain.CycleStatusClosed {
		winners, werr := s.repo.GetWinners(ctx, id)
		if werr != nil {
			return nil, wrapStorage(werr)
		}
		return &domain.CycleResult{Cycle: c, Winners: winners},
			domain.ErrCycleAlreadyClosed
	}

	standings, err := s.repo.SnapshotTopWithTx(ctx, tx, s.winnerCount)
	if err != nil {
		return nil, wrapStorage(err)
	}
	if err := s.repo.InsertWinnersWithTx(ctx, tx, id, standings); err != nil {
		return nil, wrapStorage(err)
	}

	now := time.Now().UTC()
	if err := s.repo.MarkClosedWithTx(ctx, tx, id, now); err != nil {
		return nil, wrapStorage(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, wrapStorage(err)
	}

	c.Status = domain.CycleStatusClosed
	c.ClosedAt = &now
	metrics.CyclesClosed.Inc()
	logger.Info("leaderboard cycle closed", "cycle_id", id, "winners", len(standings))

	winners, err := s.repo.GetWinners(ctx, id)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return &domain.CycleResult{Cycle: c, Winners: winners}, nil
}

// CloseDue closes every OPEN cycle whose end date has passed. Called by the
// scheduler; errors on one cycle never block the rest.
func (s *CycleService) CloseDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDueOpen(ctx, now)
	if err != nil {
		return 0, wrapStorage(err)
	}

	closed := 0
	for _, c := range due {
		if _, err := s.Close(ctx, c.ID); err != nil {
			if errors.Is(err, domain.ErrCycleAlreadyClosed) {
				continue
			}
			logger.Error("scheduled cycle close failed", "cycle_id", c.ID, "error", err)
			continue
		}
		closed++
	}
	return closed, nil
}
