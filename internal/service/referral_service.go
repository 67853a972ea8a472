package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/config"
	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/metrics"
	"github.com/dinver-app/dinver-sub009/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReferralService pays both sides of a referral chain as the referred user
// hits milestones. The guard flags and both ledger awards commit in one
// transaction, so a crash never pays a side without recording it.
type ReferralService struct {
	db          *pgxpool.Pool
	repo        *repository.ReferralRepository
	awards      *AwardService
	payouts     map[domain.ReferralTrigger]config.ReferralPayout
	retryBudget int
}

func NewReferralService(db *pgxpool.Pool, repo *repository.ReferralRepository, awards *AwardService, payouts map[domain.ReferralTrigger]config.ReferralPayout, retryBudget int) *ReferralService {
	if retryBudget < 1 {
		retryBudget = 3
	}
	return &ReferralService{
		db:          db,
		repo:        repo,
		awards:      awards,
		payouts:     payouts,
		retryBudget: retryBudget,
	}
}

func referralKey(trigger domain.ReferralTrigger, referrerID, referredID int64, side string) string {
	return fmt.Sprintf("ref-%s-%d-%d-%s", trigger, referrerID, referredID, side)
}

// OnTrigger processes one milestone of a referral chain. Each side is paid
// at most once per trigger; replays return an all-false result. A side with
// a zero payout is skipped entirely. The transaction locks two balance rows,
// so deadlocks against overlapping triggers are expected and retried.
func (s *ReferralService) OnTrigger(ctx context.Context, referrerID, referredID int64, trigger domain.ReferralTrigger) (*domain.RewardResult, error) {
	if !domain.ValidTrigger(trigger) {
		return nil, domain.ErrUnknownActionType
	}
	if referrerID == referredID {
		return nil, domain.ErrSelfReferral
	}

	var lastErr error
	for attempt := 0; attempt < s.retryBudget; attempt++ {
		if attempt > 0 {
			metrics.AwardRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}

		result, err := s.onTriggerOnce(ctx, referrerID, referredID, trigger)
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	logger.Warn("referral trigger retry budget exhausted",
		"referrer_id", referrerID, "referred_id", referredID,
		"trigger", trigger, "error", lastErr)
	return nil, fmt.Errorf("%w: %v", domain.ErrConcurrentModification, lastErr)
}

func (s *ReferralService) onTriggerOnce(ctx context.Context, referrerID, referredID int64, trigger domain.ReferralTrigger) (*domain.RewardResult, error) {
	payout := s.payouts[trigger]
	result := &domain.RewardResult{Trigger: trigger}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rw, err := s.repo.EnsureWithTx(ctx, tx, referrerID, referredID, trigger)
	if err != nil {
		return nil, wrapStorage(err)
	}

	if payout.Referrer > 0 {
		flipped, err := s.repo.MarkReferrerWithTx(ctx, tx, rw.ID)
		if err != nil {
			return nil, wrapStorage(err)
		}
		if flipped {
			key := referralKey(trigger, referrerID, referredID, "referrer")
			meta := referralMeta(trigger, referrerID, referredID, "referrer")
			if _, err := s.awards.AwardInTx(ctx, tx, referrerID, domain.ActionReferralBonus, payout.Referrer, key, meta); err != nil {
				return nil, err
			}
			result.ReferrerRewarded = true
			result.ReferrerPoints = payout.Referrer
		}
	}

	if payout.Referred > 0 {
		flipped, err := s.repo.MarkReferredWithTx(ctx, tx, rw.ID)
		if err != nil {
			return nil, wrapStorage(err)
		}
		if flipped {
			key := referralKey(trigger, referrerID, referredID, "referred")
			meta := referralMeta(trigger, referrerID, referredID, "referred")
			if _, err := s.awards.AwardInTx(ctx, tx, referredID, domain.ActionReferralBonus, payout.Referred, key, meta); err != nil {
				return nil, err
			}
			result.ReferredRewarded = true
			result.ReferredPoints = payout.Referred
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapStorage(err)
	}

	if result.ReferrerRewarded {
		metrics.ReferralRewards.WithLabelValues(string(trigger), "referrer").Inc()
		s.awards.Invalidate(ctx, referrerID)
	}
	if result.ReferredRewarded {
		metrics.ReferralRewards.WithLabelValues(string(trigger), "referred").Inc()
		s.awards.Invalidate(ctx, referredID)
	}
	return result, nil
}

// Chain returns the per-trigger reward rows for a (referrer, referred) pair.
func (s *ReferralService) Chain(ctx context.Context, referrerID, referredID int64) ([]domain.ReferralReward, error) {
	rows, err := s.repo.GetChain(ctx, referrerID, referredID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return rows, nil
}

// ReferredCount returns how many registrations a referrer has been paid for.
func (s *ReferralService) ReferredCount(ctx context.Context, referrerID int64) (int, error) {
	n, err := s.repo.CountReferred(ctx, referrerID)
	if err != nil {
		return 0, wrapStorage(err)
	}
	return n, nil
}

func referralMeta(trigger domain.ReferralTrigger, referrerID, referredID int64, side string) map[string]interface{} {
	return map[string]interface{}{
		"trigger":     string(trigger),
		"referrer_id": referrerID,
		"referred_id": referredID,
		"side":        side,
	}
}
