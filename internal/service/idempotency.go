package service

import (
	"context"
	"fmt"

	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/repository"
)

// Admission is the idempotency guard's verdict for one event.
type Admission int

const (
	Accepted Admission = iota
	Duplicate
)

// IdempotencyGuard deduplicates action events by their stable key. It is a
// fast path only: the durable guarantee lives in the ledger's unique index,
// which holds across restarts and replicas. A store failure fails closed.
type IdempotencyGuard struct {
	ledger *repository.LedgerRepository
}

func NewIdempotencyGuard(ledger *repository.LedgerRepository) *IdempotencyGuard {
	return &IdempotencyGuard{ledger: ledger}
}

// Admit reports whether the event's key has already been consumed.
func (g *IdempotencyGuard) Admit(ctx context.Context, ev *domain.ActionEvent) (Admission, error) {
	exists, err := g.ledger.Exists(ctx, ev.UserID, ev.ActionType, ev.IdempotencyKey)
	if err != nil {
		return Duplicate, fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	if exists {
		return Duplicate, nil
	}
	return Accepted, nil
}
