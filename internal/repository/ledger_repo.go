package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository owns the append-only ledger. Entries are inserted and
// read, never updated or deleted.
type LedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Exists is the idempotency guard's fast path. The real guarantee is the
// unique index hit by InsertWithTx; this only short-circuits obvious
// retries before a transaction is opened.
func (r *LedgerRepository) Exists(ctx context.Context, userID int64, actionType, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM ledger_entries
			WHERE user_id = $1 AND action_type = $2 AND idempotency_key = $3)`,
		userID, actionType, key,
	).Scan(&exists)
	return exists, err
}

// InsertWithTx appends an entry inside the caller's transaction. It returns
// inserted=false when the (user, action, key) tuple already exists; the
// entry is left untouched in that case.
func (r *LedgerRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) (bool, error) {
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO ledger_entries (user_id, action_type, points, idempotency_key, meta)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, action_type, idempotency_key) DO NOTHING
		 RETURNING id, created_at`,
		entry.UserID, entry.ActionType, entry.Points, entry.IdempotencyKey, metaJSON,
	).Scan(&entry.ID, &entry.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByKey loads the entry a duplicate submission originally produced.
func (r *LedgerRepository) GetByKey(ctx context.Context, userID int64, actionType, key string) (*domain.LedgerEntry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, action_type, points, idempotency_key, meta, created_at
		 FROM ledger_entries
		 WHERE user_id = $1 AND action_type = $2 AND idempotency_key = $3`,
		userID, actionType, key,
	)
	return scanEntry(row)
}

// GetByUserID returns recent entries for a user, newest first.
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, action_type, points, idempotency_key, meta, created_at
		 FROM ledger_entries
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// SumByUser recomputes the user's true total from the ledger. Used by the
// reconciler, never by the hot path.
func (r *LedgerRepository) SumByUser(ctx context.Context, userID int64) (float64, error) {
	var sum float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM ledger_entries WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	return sum, err
}

// SumByUserWithTx is SumByUser inside a repair transaction so the total is
// computed under the same snapshot as the balance row lock.
func (r *LedgerRepository) SumByUserWithTx(ctx context.Context, tx pgx.Tx, userID int64) (float64, error) {
	var sum float64
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM ledger_entries WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	return sum, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*domain.LedgerEntry, error) {
	var (
		entry    domain.LedgerEntry
		metaJSON []byte
	)
	err := row.Scan(&entry.ID, &entry.UserID, &entry.ActionType, &entry.Points,
		&entry.IdempotencyKey, &metaJSON, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &entry.Meta)
	}
	return &entry, nil
}
