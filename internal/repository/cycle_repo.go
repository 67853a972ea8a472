package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// CycleRepository owns leaderboard cycles and their frozen winner rows.
type CycleRepository struct {
	db *pgxpool.Pool
}

func NewCycleRepository(db *pgxpool.Pool) *CycleRepository {
	return &CycleRepository{db: db}
}

// Create opens a new cycle.
func (r *CycleRepository) Create(ctx context.Context, c *domain.LeaderboardCycle) error {
	query, args, err := psql.Insert("leaderboard_cycles").
		Columns("start_date", "end_date", "status", "created_by").
		Values(c.StartDate, c.EndDate, domain.CycleStatusOpen, c.CreatedBy).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	c.Status = domain.CycleStatusOpen
	return r.db.QueryRow(ctx, query, args...).Scan(&c.ID)
}

// Get loads one cycle.
func (r *CycleRepository) Get(ctx context.Context, id int64) (*domain.LeaderboardCycle, error) {
	query, args, err := psql.Select("id", "start_date", "end_date", "status", "created_by", "closed_at").
		From("leaderboard_cycles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var c domain.LeaderboardCycle
	err = r.db.QueryRow(ctx, query, args...).
		Scan(&c.ID, &c.StartDate, &c.EndDate, &c.Status, &c.CreatedBy, &c.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCycleNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListDueOpen returns OPEN cycles whose end date has passed.
func (r *CycleRepository) ListDueOpen(ctx context.Context, now time.Time) ([]domain.LeaderboardCycle, error) {
	query, args, err := psql.Select("id", "start_date", "end_date", "status", "created_by", "closed_at").
		From("leaderboard_cycles").
		Where(sq.Eq{"status": domain.CycleStatusOpen}).
		Where(sq.LtOrEq{"end_date": now}).
		OrderBy("end_date").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.LeaderboardCycle
	for rows.Next() {
		var c domain.LeaderboardCycle
		err := rows.Scan(&c.ID, &c.StartDate, &c.EndDate, &c.Status, &c.CreatedBy, &c.ClosedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// TryAdvisoryLockWithTx takes the per-cycle advisory lock for the duration
// of the transaction. False means another replica is closing this cycle.
func (r *CycleRepository) TryAdvisoryLockWithTx(ctx context.Context, tx pgx.Tx, cycleID int64) (bool, error) {
	var locked bool
	err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, cycleID).Scan(&locked)
	return locked, err
}

// LockWithTx loads the cycle row under FOR UPDATE so the status check and
// the transition commit atomically.
func (r *CycleRepository) LockWithTx(ctx context.Context, tx pgx.Tx, id int64) (*domain.LeaderboardCycle, error) {
	var c domain.LeaderboardCycle
	err := tx.QueryRow(ctx,
		`SELECT id, start_date, end_date, status, created_by, closed_at
		 FROM leaderboard_cycles WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&c.ID, &c.StartDate, &c.EndDate, &c.Status, &c.CreatedBy, &c.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCycleNotFound
		}
		return nil, err
	}
	return &c, nil
}

// SnapshotTopWithTx freezes the top-n balances at the closing instant.
// Ordering is deterministic: points desc, first-to-reach (earliest last
// entry) asc, user id asc.
func (r *CycleRepository) SnapshotTopWithTx(ctx context.Context, tx pgx.Tx, n int) ([]domain.Standing, error) {
	query, args, err := psql.Select("user_id", "total_points").
		From("balances").
		Where(sq.Gt{"total_points": 0}).
		OrderBy("total_points DESC", "last_entry_at ASC NULLS LAST", "user_id ASC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []domain.Standing
	rank := 0
	for rows.Next() {
		var s domain.Standing
		if err := rows.Scan(&s.UserID, &s.TotalPoints); err != nil {
			return nil, err
		}
		rank++
		s.Rank = rank
		standings = append(standings, s)
	}
	return standings, rows.Err()
}

// InsertWinnersWithTx writes the winner rows. ON CONFLICT DO NOTHING keeps
// a replayed close from ever rewriting a frozen snapshot.
func (r *CycleRepository) InsertWinnersWithTx(ctx context.Context, tx pgx.Tx, cycleID int64, standings []domain.Standing) error {
	for _, s := range standings {
		query, args, err := psql.Insert("cycle_winners").
			Columns("cycle_id", "user_id", "rank", "points_at_selection").
			Values(cycleID, s.UserID, s.Rank, s.TotalPoints).
			Suffix("ON CONFLICT (cycle_id, user_id) DO NOTHING").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

// MarkClosedWithTx flips the cycle to CLOSED.
func (r *CycleRepository) MarkClosedWithTx(ctx context.Context, tx pgx.Tx, cycleID int64, closedAt time.Time) error {
	query, args, err := psql.Update("leaderboard_cycles").
		Set("status", domain.CycleStatusClosed).
		Set("closed_at", closedAt).
		Where(sq.Eq{"id": cycleID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, query, args...)
	return err
}

// GetWinners returns the frozen winner rows for a closed cycle.
func (r *CycleRepository) GetWinners(ctx context.Context, cycleID int64) ([]domain.CycleWinner, error) {
	query, args, err := psql.Select("cycle_id", "user_id", "rank", "points_at_selection").
		From("cycle_winners").
		Where(sq.Eq{"cycle_id": cycleID}).
		OrderBy("rank").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var winners []domain.CycleWinner
	for rows.Next() {
		var w domain.CycleWinner
		if err := rows.Scan(&w.CycleID, &w.UserID, &w.Rank, &w.PointsAtSelection); err != nil {
			return nil, err
		}
		winners = append(winners, w)
	}
	return winners, rows.Err()
}

// Standings returns the live leaderboard for display while a cycle is
// still open. Same ordering as the closing snapshot.
func (r *CycleRepository) Standings(ctx context.Context, limit int) ([]domain.Standing, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT user_id, total_points
		 FROM balances
		 WHERE total_points > 0
		 ORDER BY total_points DESC, last_entry_at ASC NULLS LAST, user_id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []domain.Standing
	rank := 0
	for rows.Next() {
		var s domain.Standing
		if err := rows.Scan(&s.UserID, &s.TotalPoints); err != nil {
			return nil, err
		}
		rank++
		s.Rank = rank
		standings = append(standings, s)
	}
	return standings, rows.Err()
}
