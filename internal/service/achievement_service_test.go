package service

import (
	"testing"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestUnlockEvent(t *testing.T) {
	a := domain.Achievement{
		ID:          3,
		Category:    domain.CategoryReviews,
		Level:       2,
		BonusPoints: 25,
	}

	ev := UnlockEvent(77, a)
	require.Equal(t, domain.ActionAchievementUnlocked, ev.ActionType)
	require.Equal(t, int64(77), ev.UserID)
	require.Equal(t, 25.0, ev.Points)
	require.Equal(t, UnlockKey(77, 3), ev.IdempotencyKey)
	require.True(t, ev.Valid())
}

func TestIncrementFor(t *testing.T) {
	s := &AchievementService{}

	plain := domain.ActionMapping{Categories: []string{domain.CategoryVisits}}
	require.Equal(t, 1, s.incrementFor(plain, &domain.LedgerEntry{}))

	counted := domain.ActionMapping{Categories: []string{domain.CategoryCuisines}, CountMetaKey: "count"}
	entry := &domain.LedgerEntry{Meta: map[string]interface{}{"count": float64(3)}}
	require.Equal(t, 3, s.incrementFor(counted, entry))

	// missing or malformed counts fall back to a single step
	require.Equal(t, 1, s.incrementFor(counted, &domain.LedgerEntry{}))
	bad := &domain.LedgerEntry{Meta: map[string]interface{}{"count": "three"}}
	require.Equal(t, 1, s.incrementFor(counted, bad))
}
