package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFor(t *testing.T) {
	thresholds := []float64{100, 250, 500, 1000, 2500}

	cases := []struct {
		total float64
		want  int
	}{
		{0, 0},
		{99.99, 0},
		{100, 1},
		{249, 1},
		{250, 2},
		{500, 3},
		{999.5, 3},
		{1000, 4},
		{2500, 5},
		{1_000_000, 5},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, LevelFor(thresholds, tc.total), "total=%v", tc.total)
	}
}

func TestLevelFor_NoThresholds(t *testing.T) {
	require.Equal(t, 0, LevelFor(nil, 5000))
}

func TestUnlockKey_Deterministic(t *testing.T) {
	require.Equal(t, "ach-7-42", UnlockKey(42, 7))
	require.Equal(t, UnlockKey(42, 7), UnlockKey(42, 7))
	require.NotEqual(t, UnlockKey(42, 7), UnlockKey(7, 42))
}

func TestReferralKey(t *testing.T) {
	key := referralKey("registration", 10, 20, "referrer")
	require.Equal(t, "ref-registration-10-20-referrer", key)
	require.NotEqual(t, key, referralKey("registration", 10, 20, "referred"))
}
