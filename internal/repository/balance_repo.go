package repository

import (
	"context"
	"errors"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BalanceRepository owns the balances table, a materialized cache of the
// ledger. All mutations happen under a per-user row lock held by the
// caller's transaction.
type BalanceRepository struct {
	db *pgxpool.Pool
}

func NewBalanceRepository(db *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// LockWithTx creates the balance row on first touch and locks it for the
// rest of the transaction. The lock scope is exactly one user; unrelated
// awards proceed in parallel.
func (r *BalanceRepository) LockWithTx(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Balance, error) {
	_, err := tx.Exec(ctx,
		`INSERT INTO balances (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return nil, err
	}

	var b domain.Balance
	err = tx.QueryRow(ctx,
		`SELECT user_id, total_points, level, last_entry_at, updated_at
		 FROM balances WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&b.UserID, &b.TotalPoints, &b.Level, &b.LastEntryAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateWithTx writes the new total, derived level and last entry stamp.
func (r *BalanceRepository) UpdateWithTx(ctx context.Context, tx pgx.Tx, b *domain.Balance) error {
	_, err := tx.Exec(ctx,
		`UPDATE balances
		 SET total_points = $1, level = $2, last_entry_at = $3, updated_at = NOW()
		 WHERE user_id = $4`,
		b.TotalPoints, b.Level, b.LastEntryAt, b.UserID,
	)
	return err
}

// Get returns the balance view for one user.
func (r *BalanceRepository) Get(ctx context.Context, userID int64) (*domain.Balance, error) {
	var b domain.Balance
	err := r.db.QueryRow(ctx,
		`SELECT user_id, total_points, level, last_entry_at, updated_at
		 FROM balances WHERE user_id = $1`,
		userID,
	).Scan(&b.UserID, &b.TotalPoints, &b.Level, &b.LastEntryAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ListOutOfSync finds balance rows whose cached total disagrees with the
// ledger sum, plus users that have ledger entries but no balance row.
func (r *BalanceRepository) ListOutOfSync(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.Query(ctx,
		`SELECT l.user_id
		 FROM ledger_entries l
		 LEFT JOIN balances b ON b.user_id = l.user_id
		 GROUP BY l.user_id, b.total_points
		 HAVING b.total_points IS NULL OR b.total_points <> SUM(l.points)
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
