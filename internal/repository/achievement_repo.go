package repository

import (
	"context"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AchievementRepository reads the static catalog and mutates per-user
// progress rows. Progress mutations go through LockProgressWithTx so two
// concurrent triggering events serialize on the row.
type AchievementRepository struct {
	db *pgxpool.Pool
}

func NewAchievementRepository(db *pgxpool.Pool) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// GetActive returns the active catalog ordered for display.
func (r *AchievementRepository) GetActive(ctx context.Context) ([]domain.Achievement, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, category, level, threshold, bonus_points, name_en, name_sq, active, sort_order
		 FROM achievements
		 WHERE active = true
		 ORDER BY sort_order, category, level`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Achievement
	for rows.Next() {
		var a domain.Achievement
		err := rows.Scan(&a.ID, &a.Category, &a.Level, &a.Threshold, &a.BonusPoints,
			&a.NameEn, &a.NameSq, &a.Active, &a.SortOrder)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// GetUserAchievements returns the user's progress joined with the catalog.
// Achievements the user never touched appear with zero progress.
func (r *AchievementRepository) GetUserAchievements(ctx context.Context, userID int64) ([]*domain.AchievementStatus, error) {
	rows, err := r.db.Query(ctx,
		`SELECT a.id, a.category, a.level, a.threshold, a.bonus_points,
				a.name_en, a.name_sq, a.active, a.sort_order,
				COALESCE(p.progress, 0), COALESCE(p.achieved, false), p.achieved_at
		 FROM achievements a
		 LEFT JOIN achievement_progress p
			ON p.achievement_id = a.id AND p.user_id = $1
		 WHERE a.active = true
		 ORDER BY a.sort_order, a.category, a.level`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.AchievementStatus
	for rows.Next() {
		var s domain.AchievementStatus
		err := rows.Scan(&s.Achievement.ID, &s.Achievement.Category, &s.Achievement.Level,
			&s.Achievement.Threshold, &s.Achievement.BonusPoints,
			&s.Achievement.NameEn, &s.Achievement.NameSq,
			&s.Achievement.Active, &s.Achievement.SortOrder,
			&s.Progress, &s.Achieved, &s.AchievedAt)
		if err != nil {
			return nil, err
		}
		s.UserID = userID
		s.AchievementID = s.Achievement.ID
		result = append(result, &s)
	}
	return result, rows.Err()
}

// LockProgressWithTx creates the progress row on first touch and locks it
// for the transaction.
func (r *AchievementRepository) LockProgressWithTx(ctx context.Context, tx pgx.Tx, userID, achievementID int64) (*domain.AchievementProgress, error) {
	_, err := tx.Exec(ctx,
		`INSERT INTO achievement_progress (user_id, achievement_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		userID, achievementID,
	)
	if err != nil {
		return nil, err
	}

	var p domain.AchievementProgress
	err = tx.QueryRow(ctx,
		`SELECT user_id, achievement_id, progress, achieved, achieved_at
		 FROM achievement_progress
		 WHERE user_id = $1 AND achievement_id = $2 FOR UPDATE`,
		userID, achievementID,
	).Scan(&p.UserID, &p.AchievementID, &p.Progress, &p.Achieved, &p.AchievedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProgressWithTx persists a progress change. achieved_at is written
// once; callers never clear it.
func (r *AchievementRepository) UpdateProgressWithTx(ctx context.Context, tx pgx.Tx, p *domain.AchievementProgress) error {
	_, err := tx.Exec(ctx,
		`UPDATE achievement_progress
		 SET progress = $1, achieved = $2, achieved_at = $3
		 WHERE user_id = $4 AND achievement_id = $5`,
		p.Progress, p.Achieved, p.AchievedAt, p.UserID, p.AchievementID,
	)
	return err
}
