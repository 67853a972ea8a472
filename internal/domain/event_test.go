package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActionEvent_Valid(t *testing.T) {
	ok := ActionEvent{ActionType: ActionReviewAdd, UserID: 1, IdempotencyKey: "k1"}
	require.True(t, ok.Valid())

	cases := map[string]ActionEvent{
		"missing action type": {UserID: 1, IdempotencyKey: "k"},
		"blank action type":   {ActionType: "   ", UserID: 1, IdempotencyKey: "k"},
		"zero user":           {ActionType: ActionVisitQR, IdempotencyKey: "k"},
		"negative user":       {ActionType: ActionVisitQR, UserID: -3, IdempotencyKey: "k"},
		"missing key":         {ActionType: ActionVisitQR, UserID: 1},
		"blank key":           {ActionType: ActionVisitQR, UserID: 1, IdempotencyKey: " "},
	}
	for name, ev := range cases {
		require.False(t, ev.Valid(), name)
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	m, ok := reg.Mapping(ActionReviewAdd)
	require.True(t, ok)
	require.Equal(t, []string{CategoryReviews}, m.Categories)

	m, ok = reg.Mapping(ActionNewCuisineType)
	require.True(t, ok)
	require.Equal(t, "count", m.CountMetaKey)

	// the bonus action maps to nothing, which terminates unlock chains
	require.False(t, reg.Known(ActionAchievementUnlocked))
	require.False(t, reg.Known("some_future_action"))
}

func TestRegistry_Register(t *testing.T) {
	reg := DefaultRegistry()

	reg.Register("dish_photo_add", ActionMapping{Categories: []string{CategoryReviews}})
	require.True(t, reg.Known("dish_photo_add"))

	// blank names are ignored
	reg.Register("  ", ActionMapping{Categories: []string{CategoryVisits}})
	require.False(t, reg.Known("  "))

	// re-registering replaces the mapping
	reg.Register("dish_photo_add", ActionMapping{Categories: []string{CategoryVisits}})
	m, _ := reg.Mapping("dish_photo_add")
	require.Equal(t, []string{CategoryVisits}, m.Categories)
}

func TestValidTrigger(t *testing.T) {
	require.True(t, ValidTrigger(TriggerRegistration))
	require.True(t, ValidTrigger(TriggerVerification))
	require.True(t, ValidTrigger(TriggerFirstReceipt))
	require.False(t, ValidTrigger("unfollow"))
	require.False(t, ValidTrigger(""))
}
