package domain

import "time"

// Achievement categories advanced by action events.
const (
	CategoryReviews  = "reviews"
	CategoryVisits   = "visits"
	CategoryReceipts = "receipts"
	CategoryCuisines = "cuisines"
	CategoryReferral = "referrals"
)

// Achievement is one tier of the static catalog. Read-only at runtime,
// seeded by cmd/seed.
type Achievement struct {
	ID          int64   `db:"id" json:"id"`
	Category    string  `db:"category" json:"category"`
	Level       int     `db:"level" json:"level"`
	Threshold   int     `db:"threshold" json:"threshold"`
	BonusPoints float64 `db:"bonus_points" json:"bonus_points"`
	NameEn      string  `db:"name_en" json:"name_en"`
	NameSq      string  `db:"name_sq" json:"name_sq"`
	Active      bool    `db:"active" json:"active"`
	SortOrder   int     `db:"sort_order" json:"sort_order"`
}

// AchievementProgress tracks one user against one achievement. Progress is
// monotonically non-decreasing and clamped at the threshold; achieved flips
// once and never reverts.
type AchievementProgress struct {
	UserID        int64      `db:"user_id" json:"user_id"`
	AchievementID int64      `db:"achievement_id" json:"achievement_id"`
	Progress      int        `db:"progress" json:"progress"`
	Achieved      bool       `db:"achieved" json:"achieved"`
	AchievedAt    *time.Time `db:"achieved_at" json:"achieved_at,omitempty"`
}

// AchievementStatus is the outbound view: progress joined with its catalog
// entry.
type AchievementStatus struct {
	AchievementProgress
	Achievement Achievement `json:"achievement"`
}
