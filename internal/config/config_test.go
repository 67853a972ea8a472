package config

import (
	"testing"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestParseThresholds(t *testing.T) {
	require.Equal(t, []float64{100, 250, 500, 1000, 2500}, parseThresholds(""))
	require.Equal(t, []float64{50, 150, 400}, parseThresholds("50,150,400"))

	// unsorted input comes back sorted
	require.Equal(t, []float64{10, 20, 30}, parseThresholds("30, 10, 20"))

	// garbage falls back to the defaults
	require.Equal(t, []float64{100, 250, 500, 1000, 2500}, parseThresholds("abc,-5"))
}

func TestRegistryFromEnv(t *testing.T) {
	t.Setenv("ACTION_CATEGORY_MAP", "dish_photo_add:reviews,menu_scan:visits|receipts, bad-entry")

	cfg := &Config{}
	reg := cfg.Registry()

	m, ok := reg.Mapping("dish_photo_add")
	require.True(t, ok)
	require.Equal(t, []string{domain.CategoryReviews}, m.Categories)

	m, ok = reg.Mapping("menu_scan")
	require.True(t, ok)
	require.Equal(t, []string{domain.CategoryVisits, domain.CategoryReceipts}, m.Categories)

	// built-ins survive the overlay
	require.True(t, reg.Known(domain.ActionReviewAdd))
	require.False(t, reg.Known("bad-entry"))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SOME_INT", "7")
	require.Equal(t, 7, envInt("SOME_INT", 3))
	require.Equal(t, 3, envInt("SOME_INT_MISSING", 3))

	t.Setenv("SOME_INT_BAD", "-2")
	require.Equal(t, 3, envInt("SOME_INT_BAD", 3))

	t.Setenv("SOME_FLOAT", "12.5")
	require.Equal(t, 12.5, envFloat("SOME_FLOAT", 1))
	require.Equal(t, 1.0, envFloat("SOME_FLOAT_MISSING", 1))

	require.Equal(t, []string{"a", "b"}, splitNonEmpty("a, b,"))
	require.Nil(t, splitNonEmpty(""))
}
