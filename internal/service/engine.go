package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Engine is the per-event pipeline: idempotency guard, award, achievement
// evaluation, and the bounded unlock queue that replaces direct recursion.
// One event is one transaction: the ledger entry, its progress increments,
// any achieved flips and their bonus entries commit or roll back together.
type Engine struct {
	db           *pgxpool.Pool
	guard        *IdempotencyGuard
	awards       *AwardService
	achievements *AchievementService
	registry     *domain.ActionRegistry
	queueDepth   int
}

// SubmitResult is what one submitted event produced, including any
// achievement bonuses awarded along the way.
type SubmitResult struct {
	Entry       *domain.LedgerEntry  `json:"entry"`
	Duplicate   bool                 `json:"duplicate"`
	TotalPoints float64              `json:"total_points"`
	Level       int                  `json:"level"`
	Unlocked    []domain.Achievement `json:"unlocked,omitempty"`
}

func NewEngine(db *pgxpool.Pool, guard *IdempotencyGuard, awards *AwardService, achievements *AchievementService, registry *domain.ActionRegistry, queueDepth int) *Engine {
	if queueDepth < 1 {
		queueDepth = 8
	}
	return &Engine{
		db:           db,
		guard:        guard,
		awards:       awards,
		achievements: achievements,
		registry:     registry,
		queueDepth:   queueDepth,
	}
}

// UnlockKey is the deterministic idempotency key of an achievement bonus.
func UnlockKey(userID, achievementID int64) string {
	return fmt.Sprintf("ach-%d-%d", achievementID, userID)
}

// SubmitActionEvent runs one event through the pipeline. Unknown but
// well-formed action types are recorded inert; malformed events are
// rejected. Duplicate submissions return the original result.
func (e *Engine) SubmitActionEvent(ctx context.Context, ev *domain.ActionEvent) (*SubmitResult, error) {
	if !ev.Valid() {
		return nil, domain.ErrUnknownActionType
	}

	if verdict, err := e.guard.Admit(ctx, ev); err != nil {
		return nil, err
	} else if verdict == Duplicate {
		return e.priorResult(ctx, ev)
	}

	var lastErr error
	for attempt := 0; attempt < e.awards.retryBudget; attempt++ {
		if attempt > 0 {
			metrics.AwardRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}

		res, err := e.submitOnce(ctx, ev)
		if err == nil {
			return res, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	logger.Warn("submit retry budget exhausted",
		"user_id", ev.UserID, "action_type", ev.ActionType, "error", lastErr)
	return nil, fmt.Errorf("%w: %v", domain.ErrConcurrentModification, lastErr)
}

// submitOnce processes the event and everything it cascades into as one
// transaction. The unlock queue bounds side-effect chaining: a
// misconfigured category that maps back to itself hits the cap and is
// dropped with an alertable counter instead of looping.
func (e *Engine) submitOnce(ctx context.Context, ev *domain.ActionEvent) (*SubmitResult, error) {
	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	queue := []*domain.ActionEvent{ev}
	result := &SubmitResult{}
	var accepted []string
	inert, overflow := 0, 0

	for i := 0; len(queue) > 0; i++ {
		next := queue[0]
		queue = queue[1:]

		res, err := e.awards.awardInTx(ctx, tx, next.UserID, next.ActionType, next.Points, next.IdempotencyKey, next.Meta)
		if err != nil {
			return nil, err
		}

		if i == 0 {
			result.Entry = res.Entry
			result.Duplicate = res.Duplicate
		}
		result.TotalPoints = res.TotalPoints
		result.Level = res.Level

		if res.Duplicate {
			if i == 0 {
				// nothing was written; no commit needed
				metrics.EventsDuplicate.WithLabelValues(next.ActionType).Inc()
				return result, nil
			}
			continue
		}
		accepted = append(accepted, next.ActionType)

		if !e.registry.Known(next.ActionType) {
			inert++
			continue
		}

		unlocked, err := e.achievements.OnLedgerEntryInTx(ctx, tx, res.Entry)
		if err != nil {
			return nil, wrapStorage(err)
		}
		for _, a := range unlocked {
			result.Unlocked = append(result.Unlocked, a)
			if len(queue) >= e.queueDepth {
				overflow++
				logger.Warn("unlock queue full, dropping bonus event",
					"user_id", next.UserID, "achievement_id", a.ID)
				continue
			}
			if a.BonusPoints > 0 {
				queue = append(queue, UnlockEvent(next.UserID, a))
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapStorage(err)
	}

	e.awards.Invalidate(ctx, ev.UserID)
	for _, actionType := range accepted {
		metrics.EventsAccepted.WithLabelValues(actionType).Inc()
	}
	for _, a := range result.Unlocked {
		metrics.AchievementsUnlocked.WithLabelValues(a.Category).Inc()
	}
	if inert > 0 {
		metrics.EventsInert.Add(float64(inert))
	}
	if overflow > 0 {
		metrics.UnlockQueueOverflow.Add(float64(overflow))
	}
	return result, nil
}

// priorResult loads what the original submission produced.
func (e *Engine) priorResult(ctx context.Context, ev *domain.ActionEvent) (*SubmitResult, error) {
	metrics.EventsDuplicate.WithLabelValues(ev.ActionType).Inc()
	res, err := e.awards.duplicateResult(ctx, ev.UserID, ev.ActionType, ev.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{
		Entry:       res.Entry,
		Duplicate:   true,
		TotalPoints: res.TotalPoints,
		Level:       res.Level,
	}, nil
}
