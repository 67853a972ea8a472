package service

import (
	"context"
	"fmt"

	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdminService applies manual balance adjustments through the same ledger
// path as organic events, with an audit row committed alongside.
type AdminService struct {
	db     *pgxpool.Pool
	awards *AwardService
	audit  *repository.AuditRepository
}

func NewAdminService(db *pgxpool.Pool, awards *AwardService, audit *repository.AuditRepository) *AdminService {
	return &AdminService{db: db, awards: awards, audit: audit}
}

// Adjust awards (or deducts) points on behalf of an operator. The ledger
// entry, balance update and audit row commit together. A negative delta
// that would take the balance below zero is rejected.
func (s *AdminService) Adjust(ctx context.Context, adminID string, userID int64, delta float64, reason, idempotencyKey string) (*domain.AwardResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	meta := map[string]interface{}{
		"admin_id": adminID,
		"reason":   reason,
	}
	res, err := s.awards.AwardInTx(ctx, tx, userID, domain.ActionAdminAdjustment, delta, idempotencyKey, meta)
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		return res, nil
	}

	adj := &repository.AdminAdjustment{
		AdminID: adminID,
		UserID:  userID,
		Delta:   delta,
		Reason:  reason,
		EntryID: &res.Entry.ID,
	}
	if err := s.audit.RecordWithTx(ctx, tx, adj); err != nil {
		return nil, wrapStorage(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapStorage(err)
	}

	s.awards.Invalidate(ctx, userID)
	logger.Info("admin adjustment applied",
		"admin_id", adminID, "user_id", userID, "delta", delta, "reason", reason)
	return res, nil
}

// Adjustments lists recent adjustments for one user.
func (s *AdminService) Adjustments(ctx context.Context, userID int64, limit int) ([]repository.AdminAdjustment, error) {
	list, err := s.audit.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return list, nil
}
