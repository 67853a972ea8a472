package domain

import "time"

// LedgerEntry is an immutable, signed point transaction. Entries are never
// updated or deleted; corrections are new entries with opposite sign.
type LedgerEntry struct {
	ID             int64                  `db:"id" json:"id"`
	UserID         int64                  `db:"user_id" json:"user_id"`
	ActionType     string                 `db:"action_type" json:"action_type"`
	Points         float64                `db:"points" json:"points"`
	IdempotencyKey string                 `db:"idempotency_key" json:"idempotency_key"`
	Meta           map[string]interface{} `db:"meta" json:"meta,omitempty"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
}

// Balance is a materialized view of the user's ledger. It is owned by the
// balance aggregator and rebuildable from the entries at any time.
type Balance struct {
	UserID      int64      `db:"user_id" json:"user_id"`
	TotalPoints float64    `db:"total_points" json:"total_points"`
	Level       int        `db:"level" json:"level"`
	LastEntryAt *time.Time `db:"last_entry_at" json:"last_entry_at,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// AwardResult is what an award call returns, for the first call and every
// duplicate retry alike.
type AwardResult struct {
	Entry       *LedgerEntry `json:"entry"`
	Duplicate   bool         `json:"duplicate"`
	TotalPoints float64      `json:"total_points"`
	Level       int          `json:"level"`
}
