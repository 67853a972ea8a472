package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdminAdjustment is one administrative balance override, kept for audit.
type AdminAdjustment struct {
	ID        int64     `json:"id"`
	AdminID   string    `json:"admin_id"`
	UserID    int64     `json:"user_id"`
	Delta     float64   `json:"delta"`
	Reason    string    `json:"reason"`
	EntryID   *int64    `json:"entry_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// RecordWithTx writes the audit row in the same transaction as the ledger
// entry it documents.
func (r *AuditRepository) RecordWithTx(ctx context.Context, tx pgx.Tx, a *AdminAdjustment) error {
	return tx.QueryRow(ctx,
		`INSERT INTO admin_adjustments (admin_id, user_id, delta, reason, entry_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		a.AdminID, a.UserID, a.Delta, a.Reason, a.EntryID,
	).Scan(&a.ID, &a.CreatedAt)
}

// ListByUser returns recent adjustments for one user, newest first.
func (r *AuditRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]AdminAdjustment, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, admin_id, user_id, delta, reason, entry_id, created_at
		 FROM admin_adjustments
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AdminAdjustment
	for rows.Next() {
		var a AdminAdjustment
		err := rows.Scan(&a.ID, &a.AdminID, &a.UserID, &a.Delta, &a.Reason, &a.EntryID, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
