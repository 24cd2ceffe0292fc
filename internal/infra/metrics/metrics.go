// Package metrics provides Prometheus metrics for the progression engine:
// counters for XP grants, ledger retries, reconciliation passes, badge
// unlocks, and quest grants.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── XP Ledger ──────────────────────────────────────────────────────────────

// XPAwards tracks applied XP grants.
var XPAwards = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "xp_awards_total",
	Help:      "Total XP grants applied by the ledger.",
})

// XPPoints tracks the total XP amount granted.
var XPPoints = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "xp_points_total",
	Help:      "Total XP points granted.",
})

// XPDuplicates tracks grants suppressed by an existing idempotency key.
var XPDuplicates = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "xp_duplicates_total",
	Help:      "Total XP grants skipped because the key was already applied.",
})

// TxRetries tracks ledger transaction retries after a write conflict.
var TxRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "ledger_tx_retries_total",
	Help:      "Total ledger transaction retries due to write conflicts.",
})

// LevelUps tracks level transitions.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "level_ups_total",
	Help:      "Total level-up transitions.",
})

// ─── Reconciliation ─────────────────────────────────────────────────────────

// ReconcileRuns tracks reconciliation passes by kind.
var ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "reconcile_runs_total",
	Help:      "Total reconciliation passes.",
}, []string{"kind"})

// ReconcileSkips tracks malformed records skipped during reconciliation.
var ReconcileSkips = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "reconcile_skipped_records_total",
	Help:      "Total malformed activity records skipped during reconciliation.",
})

// ─── Badges & Quests ────────────────────────────────────────────────────────

// BadgesEarned tracks first-time badge unlocks.
var BadgesEarned = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "badges_earned_total",
	Help:      "Total first-time badge unlocks.",
}, []string{"badge"})

// BadgeEvalFailures tracks isolated per-badge evaluation failures.
var BadgeEvalFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "badge_eval_failures_total",
	Help:      "Total badge evaluations skipped due to an isolated failure.",
})

// QuestGrants tracks daily quest XP grants by quest.
var QuestGrants = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "quest_grants_total",
	Help:      "Total daily quest XP grants.",
}, []string{"quest"})
