package service

import (
	"context"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/repository"

	"github.com/jackc/pgx/v5"
)

// AchievementService tracks per-category progress counters and flips
// achievements when a threshold is crossed. The catalog is read-only at
// runtime and loaded once at construction. All progress writes run inside
// the caller's transaction, so an entry and its increments commit or roll
// back together.
type AchievementService struct {
	repo       *repository.AchievementRepository
	registry   *domain.ActionRegistry
	byCategory map[string][]domain.Achievement
}

func NewAchievementService(repo *repository.AchievementRepository, registry *domain.ActionRegistry) (*AchievementService, error) {
	catalog, err := repo.GetActive(context.Background())
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]domain.Achievement)
	for _, a := range catalog {
		byCategory[a.Category] = append(byCategory[a.Category], a)
	}

	return &AchievementService{
		repo:       repo,
		registry:   registry,
		byCategory: byCategory,
	}, nil
}

// UserAchievements returns the full catalog annotated with the user's
// progress, including achievements the user has not touched yet.
func (s *AchievementService) UserAchievements(ctx context.Context, userID int64) ([]*domain.AchievementStatus, error) {
	statuses, err := s.repo.GetUserAchievements(ctx, userID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return statuses, nil
}

// OnLedgerEntryInTx advances every achievement mapped to the entry's action
// type inside the caller's transaction and returns the achievements that
// newly unlocked. The progress rows are locked under the same tx that
// inserted the entry, so a crash can never commit one without the other.
func (s *AchievementService) OnLedgerEntryInTx(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) ([]domain.Achievement, error) {
	mapping, ok := s.registry.Mapping(entry.ActionType)
	if !ok {
		return nil, nil
	}

	increment := s.incrementFor(mapping, entry)
	if increment <= 0 {
		return nil, nil
	}

	var unlocked []domain.Achievement
	for _, category := range mapping.Categories {
		for _, a := range s.byCategory[category] {
			crossed, err := s.advance(ctx, tx, entry.UserID, a, increment)
			if err != nil {
				return nil, err
			}
			if crossed {
				unlocked = append(unlocked, a)
			}
		}
	}
	return unlocked, nil
}

// advance applies one clamped increment. Returns true only on the call
// that first reaches the threshold.
func (s *AchievementService) advance(ctx context.Context, tx pgx.Tx, userID int64, a domain.Achievement, increment int) (bool, error) {
	p, err := s.repo.LockProgressWithTx(ctx, tx, userID, a.ID)
	if err != nil {
		return false, err
	}
	if p.Achieved {
		return false, nil
	}

	p.Progress += increment
	if p.Progress >= a.Threshold {
		p.Progress = a.Threshold
		p.Achieved = true
		now := time.Now().UTC()
		p.AchievedAt = &now
	}

	if err := s.repo.UpdateProgressWithTx(ctx, tx, p); err != nil {
		return false, err
	}
	return p.Achieved, nil
}

// incrementFor derives the progress increment: a metadata count when the
// mapping names one, otherwise 1.
func (s *AchievementService) incrementFor(mapping domain.ActionMapping, entry *domain.LedgerEntry) int {
	if mapping.CountMetaKey == "" {
		return 1
	}
	raw, ok := entry.Meta[mapping.CountMetaKey]
	if !ok {
		return 1
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 1
	}
}

// UnlockEvent synthesizes the bonus event for a newly unlocked
// achievement. The key is deterministic per (achievement, user), so the
// bonus is idempotent no matter how the unlock path is replayed.
func UnlockEvent(userID int64, a domain.Achievement) *domain.ActionEvent {
	return &domain.ActionEvent{
		ActionType:     domain.ActionAchievementUnlocked,
		UserID:         userID,
		Points:         a.BonusPoints,
		IdempotencyKey: UnlockKey(userID, a.ID),
		OccurredAt:     time.Now().UTC(),
		Meta: map[string]interface{}{
			"achievement_id": a.ID,
			"category":       a.Category,
			"level":          a.Level,
		},
	}
}
