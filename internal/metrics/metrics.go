package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_events_accepted_total",
			Help: "Action events that produced a new ledger entry",
		},
		[]string{"action_type"},
	)
	EventsDuplicate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_events_duplicate_total",
			Help: "Action events rejected by the idempotency guard",
		},
		[]string{"action_type"},
	)
	EventsInert = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_events_inert_total",
			Help: "Events with unmapped action types, recorded without side effects",
		},
	)
	AchievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_achievements_unlocked_total",
			Help: "Achievements flipped to achieved",
		},
		[]string{"category"},
	)
	UnlockQueueOverflow = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_unlock_queue_overflow_total",
			Help: "Unlock events dropped because the bounded queue was full",
		},
	)
	ReferralRewards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_referral_rewards_total",
			Help: "Referral rewards paid out",
		},
		[]string{"trigger", "side"},
	)
	CyclesClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_cycles_closed_total",
			Help: "Leaderboard cycles transitioned to CLOSED",
		},
	)
	ReconcileDrift = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_reconcile_drift_total",
			Help: "Balance rows found out of sync with the ledger and repaired",
		},
	)
	AwardRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_award_retries_total",
			Help: "Award transactions retried after lock conflicts",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsAccepted,
		EventsDuplicate,
		EventsInert,
		AchievementsUnlocked,
		UnlockQueueOverflow,
		ReferralRewards,
		CyclesClosed,
		ReconcileDrift,
		AwardRetries,
	)
}
