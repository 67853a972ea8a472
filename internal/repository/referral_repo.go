package repository

import (
	"context"
	"errors"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReferralRepository owns referral_rewards. Flag flips are guarded updates
// (`WHERE NOT flag`) so each side is paid at most once per trigger no
// matter how often the trigger is replayed.
type ReferralRepository struct {
	db *pgxpool.Pool
}

func NewReferralRepository(db *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// EnsureWithTx gets or creates the reward row for (referrer, referred,
// trigger) and locks it. A referred user can only ever have one referrer
// per trigger; a conflicting referrer surfaces as ErrReferrerMismatch.
func (r *ReferralRepository) EnsureWithTx(ctx context.Context, tx pgx.Tx, referrerID, referredID int64, trigger domain.ReferralTrigger) (*domain.ReferralReward, error) {
	_, err := tx.Exec(ctx,
		`INSERT INTO referral_rewards (referrer_id, referred_id, trigger)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (referred_id, trigger) DO NOTHING`,
		referrerID, referredID, trigger,
	)
	if err != nil {
		return nil, err
	}

	var rw domain.ReferralReward
	err = tx.QueryRow(ctx,
		`SELECT id, referrer_id, referred_id, trigger,
				rewarded_referrer, rewarded_referred, created_at
		 FROM referral_rewards
		 WHERE referred_id = $1 AND trigger = $2 FOR UPDATE`,
		referredID, trigger,
	).Scan(&rw.ID, &rw.ReferrerID, &rw.ReferredID, &rw.Trigger,
		&rw.RewardedReferrer, &rw.RewardedReferred, &rw.CreatedAt)
	if err != nil {
		return nil, err
	}

	if rw.ReferrerID != referrerID {
		return nil, domain.ErrReferrerMismatch
	}
	return &rw, nil
}

// MarkReferrerWithTx flips the referrer-side flag. Returns false when it
// was already set.
func (r *ReferralRepository) MarkReferrerWithTx(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE referral_rewards SET rewarded_referrer = true
		 WHERE id = $1 AND rewarded_referrer = false`,
		id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkReferredWithTx flips the referred-side flag. Returns false when it
// was already set.
func (r *ReferralRepository) MarkReferredWithTx(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE referral_rewards SET rewarded_referred = true
		 WHERE id = $1 AND rewarded_referred = false`,
		id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetChain returns all trigger rows for a (referrer, referred) pair.
func (r *ReferralRepository) GetChain(ctx context.Context, referrerID, referredID int64) ([]domain.ReferralReward, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, referrer_id, referred_id, trigger,
				rewarded_referrer, rewarded_referred, created_at
		 FROM referral_rewards
		 WHERE referrer_id = $1 AND referred_id = $2
		 ORDER BY created_at`,
		referrerID, referredID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ReferralReward
	for rows.Next() {
		var rw domain.ReferralReward
		err := rows.Scan(&rw.ID, &rw.ReferrerID, &rw.ReferredID, &rw.Trigger,
			&rw.RewardedReferrer, &rw.RewardedReferred, &rw.CreatedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, rw)
	}
	return result, rows.Err()
}

// CountReferred returns how many users a referrer has brought in, counted
// by completed registration rewards.
func (r *ReferralRepository) CountReferred(ctx context.Context, referrerID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM referral_rewards
		 WHERE referrer_id = $1 AND trigger = $2 AND rewarded_referrer = true`,
		referrerID, domain.TriggerRegistration,
	).Scan(&count)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	return count, nil
}
