package domain

import "errors"

var (
	// ErrDuplicateAction means the idempotency key was already consumed.
	// Callers receive the original result, not a failure.
	ErrDuplicateAction = errors.New("duplicate action")

	// ErrUnknownActionType is returned for malformed events (empty type,
	// missing user or key). Well-formed but unmapped types are accepted.
	ErrUnknownActionType = errors.New("unknown action type")

	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrSelfReferral           = errors.New("self referral")
	ErrReferrerMismatch       = errors.New("referred user already has a referrer")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrCycleAlreadyClosed     = errors.New("cycle already closed")
	ErrCycleNotFound          = errors.New("cycle not found")
	ErrInvalidCycleWindow     = errors.New("invalid cycle window")
	ErrUserNotFound           = errors.New("user not found")

	// ErrEngineUnavailable wraps storage-layer failures after the
	// transaction has been rolled back in full.
	ErrEngineUnavailable = errors.New("engine unavailable")
)
