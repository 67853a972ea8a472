package ingest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestShouldRequeue(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		requeue bool
	}{
		{"engine unavailable", domain.ErrEngineUnavailable, true},
		{"concurrent modification", domain.ErrConcurrentModification, true},
		{"wrapped engine unavailable", fmt.Errorf("%w: dial tcp refused", domain.ErrEngineUnavailable), true},
		{"wrapped deadlock", fmt.Errorf("%w: deadlock detected", domain.ErrConcurrentModification), true},
		{"self referral", domain.ErrSelfReferral, false},
		{"unknown trigger", domain.ErrUnknownActionType, false},
		{"referrer mismatch", domain.ErrReferrerMismatch, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.requeue, shouldRequeue(tc.err))
		})
	}
}
