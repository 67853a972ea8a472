package scheduler

import (
	"context"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/service"
)

// Scheduler drives the periodic work: closing due leaderboard cycles every
// tick and running the drift-repair sweep every Nth tick.
type Scheduler struct {
	cycles     *service.CycleService
	reconciler *service.Reconciler

	interval       time.Duration
	reconcileEvery int
}

func New(cycles *service.CycleService, reconciler *service.Reconciler, interval time.Duration, reconcileEvery int) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if reconcileEvery < 1 {
		reconcileEvery = 60
	}
	return &Scheduler{
		cycles:         cycles,
		reconciler:     reconciler,
		interval:       interval,
		reconcileEvery: reconcileEvery,
	}
}

// Run blocks until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			s.closeDue(ctx)
			if tick%s.reconcileEvery == 0 {
				s.reconcile(ctx)
			}
		}
	}
}

func (s *Scheduler) closeDue(ctx context.Context) {
	closed, err := s.cycles.CloseDue(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("scheduled cycle close sweep failed", "error", err)
		return
	}
	if closed > 0 {
		logger.Info("closed due cycles", "count", closed)
	}
}

func (s *Scheduler) reconcile(ctx context.Context) {
	if _, err := s.reconciler.Run(ctx, 500); err != nil {
		logger.Error("scheduled reconcile sweep failed", "error", err)
	}
}
