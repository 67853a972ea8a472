package domain

import "time"

// ReferralTrigger is a milestone in a referral chain.
type ReferralTrigger string

const (
	TriggerRegistration ReferralTrigger = "registration"
	TriggerVerification ReferralTrigger = "verification"
	TriggerFirstReceipt ReferralTrigger = "first_receipt"
)

// ValidTrigger reports whether t is one of the known milestones.
func ValidTrigger(t ReferralTrigger) bool {
	switch t {
	case TriggerRegistration, TriggerVerification, TriggerFirstReceipt:
		return true
	}
	return false
}

// ReferralReward records which sides of a (referrer, referred) pair have
// been paid for a given trigger. The flags flip false→true exactly once.
type ReferralReward struct {
	ID               int64           `db:"id" json:"id"`
	ReferrerID       int64           `db:"referrer_id" json:"referrer_id"`
	ReferredID       int64           `db:"referred_id" json:"referred_id"`
	Trigger          ReferralTrigger `db:"trigger" json:"trigger"`
	RewardedReferrer bool            `db:"rewarded_referrer" json:"rewarded_referrer"`
	RewardedReferred bool            `db:"rewarded_referred" json:"rewarded_referred"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// RewardResult reports what a trigger call actually paid out. Repeated
// calls for the same chain and trigger return all-false results.
type RewardResult struct {
	Trigger          ReferralTrigger `json:"trigger"`
	ReferrerRewarded bool            `json:"referrer_rewarded"`
	ReferredRewarded bool            `json:"referred_rewarded"`
	ReferrerPoints   float64         `json:"referrer_points,omitempty"`
	ReferredPoints   float64         `json:"referred_points,omitempty"`
}
