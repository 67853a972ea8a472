package domain

import "time"

// Cycle statuses. A cycle transitions OPEN→CLOSED exactly once.
const (
	CycleStatusOpen   = "OPEN"
	CycleStatusClosed = "CLOSED"
)

// LeaderboardCycle is one time-boxed competition window.
type LeaderboardCycle struct {
	ID        int64      `db:"id" json:"id"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   time.Time  `db:"end_date" json:"end_date"`
	Status    string     `db:"status" json:"status"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	ClosedAt  *time.Time `db:"closed_at" json:"closed_at,omitempty"`
}

// CycleWinner is written once when a cycle closes and never mutated.
// PointsAtSelection is the balance snapshot taken at the closing instant.
type CycleWinner struct {
	CycleID           int64   `db:"cycle_id" json:"cycle_id"`
	UserID            int64   `db:"user_id" json:"user_id"`
	Rank              int     `db:"rank" json:"rank"`
	PointsAtSelection float64 `db:"points_at_selection" json:"points_at_selection"`
}

// Standing is a live leaderboard row for an open cycle. Unlike winners it
// is recomputed on every read.
type Standing struct {
	Rank        int     `json:"rank"`
	UserID      int64   `json:"user_id"`
	TotalPoints float64 `json:"total_points"`
}

// CycleResult is the outbound view of a cycle: status plus winners once
// the cycle is closed.
type CycleResult struct {
	Cycle   *LeaderboardCycle `json:"cycle"`
	Winners []CycleWinner     `json:"winners,omitempty"`
}
