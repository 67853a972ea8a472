package domain

import (
	"strings"
	"time"
)

// Well-known action types. The set is open: producers may submit types not
// listed here and they are recorded as inert ledger entries until a mapping
// is configured.
const (
	ActionReviewAdd           = "review_add"
	ActionVisitQR             = "visit_qr"
	ActionReceiptApproved     = "receipt_approved"
	ActionNewCuisineType      = "new_cuisine_type"
	ActionReferralBonus       = "referral_bonus"
	ActionAchievementUnlocked = "achievement_unlocked"
	ActionAdminAdjustment     = "admin_adjustment"
	ActionPointsSpend         = "points_spend"
)

// ActionEvent is the transient input of the engine. It is not persisted
// beyond the ledger entry it produces.
type ActionEvent struct {
	ActionType     string                 `json:"action_type"`
	UserID         int64                  `json:"user_id"`
	Points         float64                `json:"points"`
	IdempotencyKey string                 `json:"idempotency_key"`
	OccurredAt     time.Time              `json:"occurred_at"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

// Valid reports whether the event is well-formed enough to be recorded.
func (e *ActionEvent) Valid() bool {
	return strings.TrimSpace(e.ActionType) != "" && e.UserID > 0 && strings.TrimSpace(e.IdempotencyKey) != ""
}

// ActionMapping describes the achievement side effects of one action type.
type ActionMapping struct {
	// Categories lists the achievement categories this action advances.
	Categories []string
	// CountMetaKey, when set, names a numeric meta field used as the
	// progress increment instead of 1.
	CountMetaKey string
}

// ActionRegistry is a string-keyed registry of action types. Unknown but
// well-formed types are accepted and recorded with no side effects, so new
// producer actions never require a code change here.
type ActionRegistry struct {
	mappings map[string]ActionMapping
}

// DefaultRegistry returns the registry with the platform's built-in
// mappings. achievement_unlocked deliberately maps to nothing: that is what
// terminates the unlock chain.
func DefaultRegistry() *ActionRegistry {
	return &ActionRegistry{mappings: map[string]ActionMapping{
		ActionReviewAdd:       {Categories: []string{CategoryReviews}},
		ActionVisitQR:         {Categories: []string{CategoryVisits}},
		ActionReceiptApproved: {Categories: []string{CategoryReceipts}},
		ActionNewCuisineType:  {Categories: []string{CategoryCuisines}, CountMetaKey: "count"},
	}}
}

// Register adds or replaces a mapping. Used by config to extend the
// registry without a rebuild.
func (r *ActionRegistry) Register(actionType string, m ActionMapping) {
	if strings.TrimSpace(actionType) == "" {
		return
	}
	r.mappings[actionType] = m
}

// Mapping returns the side-effect mapping for an action type, if any.
func (r *ActionRegistry) Mapping(actionType string) (ActionMapping, bool) {
	m, ok := r.mappings[actionType]
	return m, ok
}

// Known reports whether the action type has configured side effects.
func (r *ActionRegistry) Known(actionType string) bool {
	_, ok := r.mappings[actionType]
	return ok
}
