// Package domain holds the core types of the Lumen progression engine:
// the XP ledger, the per-user stats document, badges, and daily quests.
// The engine reads raw activity records written by the capture client
// and never mutates them.
package domain

import "time"

// ─── XP Ledger Types ────────────────────────────────────────────────────────

// XPEvent is one applied XP grant. Events are append-only: the existence
// of Key is the sole idempotency guard, so a written event must never be
// re-applied, mutated, or deleted.
type XPEvent struct {
	Key       string            `json:"key"`
	UserID    string            `json:"user_id"`
	Amount    int64             `json:"amount"`
	WeekKey   string            `json:"week_key"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// AwardResult reports the outcome of an idempotent XP grant.
// Level is only meaningful when Awarded is true.
type AwardResult struct {
	Awarded   bool `json:"awarded"`
	Level     int  `json:"level,omitempty"`
	LeveledUp bool `json:"leveled_up,omitempty"`
}

// ─── Stats Document ─────────────────────────────────────────────────────────

// StatsDoc is the single mutable progression record per user.
//
// Ownership is partitioned between two writers: the XP ledger increments
// AllTimeXP/WeeklyXP/WeeklyKey/Level/LevelName, and reconciliation
// replaces everything else wholesale. A writer must only merge-write the
// fields it owns — never the whole document — so the two can race safely.
type StatsDoc struct {
	UserID string `json:"user_id"`

	// Ledger-owned fields.
	AllTimeXP int64  `json:"all_time_xp"`
	WeeklyXP  int64  `json:"weekly_xp"`
	WeeklyKey string `json:"weekly_key"`
	Level     int    `json:"level"`
	LevelName string `json:"level_name"`

	// Reconciliation-owned fields.
	MomentsCount     int            `json:"moments_count"`
	ReflectionsCount int            `json:"reflections_count"`
	StreakDays       int            `json:"streak_days"`
	BestStreakDays   int            `json:"best_streak_days"`
	JourneyDay       int            `json:"journey_day"`
	DepthMoments     int            `json:"depth_moments"`
	EmotionCounts    map[string]int `json:"emotion_counts"`
	LastMomentAt     time.Time      `json:"last_moment_at,omitzero"`
	LastReflectionAt time.Time      `json:"last_reflection_at,omitzero"`

	// Externally incremented counters.
	ActiveBadgeID  string `json:"active_badge_id,omitempty"`
	PatternsViewed int    `json:"patterns_viewed"`
}

// StatsUpdate carries the reconciliation-owned fields computed by a full
// recompute from raw activity data. It is merge-written as a unit.
type StatsUpdate struct {
	MomentsCount     int            `json:"moments_count"`
	ReflectionsCount int            `json:"reflections_count"`
	StreakDays       int            `json:"streak_days"`
	BestStreakDays   int            `json:"best_streak_days"`
	JourneyDay       int            `json:"journey_day"`
	DepthMoments     int            `json:"depth_moments"`
	EmotionCounts    map[string]int `json:"emotion_counts"`
	LastMomentAt     time.Time      `json:"last_moment_at,omitzero"`
	LastReflectionAt time.Time      `json:"last_reflection_at,omitzero"`
}

// ─── Badge Types ────────────────────────────────────────────────────────────

// BadgeCategory groups badges by theme.
type BadgeCategory string

const (
	CatFirstSteps  BadgeCategory = "first_steps"
	CatConsistency BadgeCategory = "consistency"
	CatDepth       BadgeCategory = "depth"
	CatAwareness   BadgeCategory = "awareness"
)

// CriteriaType selects how a badge's progress is measured.
type CriteriaType string

const (
	CriteriaMomentsLogged        CriteriaType = "moments_logged"
	CriteriaReflectionsCompleted CriteriaType = "reflections_completed"
	CriteriaTagsAdded            CriteriaType = "tags_added"
	CriteriaEmotionLogged        CriteriaType = "emotion_logged"
	CriteriaStreakDays           CriteriaType = "streak_days"
	CriteriaPatternsViewed       CriteriaType = "patterns_viewed"
)

// BadgeDef defines a single badge in the static catalog.
type BadgeDef struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Category    BadgeCategory `json:"category"`
	Criteria    CriteriaType  `json:"criteria"`
	Threshold   int           `json:"threshold"`
	EmotionType string        `json:"emotion_type,omitempty"` // Only for emotion_logged
	RewardXP    int64         `json:"reward_xp"`
	Icon        string        `json:"icon"`
}

// BadgeState is the per-user earned/progress record for one badge.
// Earned is monotonic: once true it is never reset by a later recompute.
type BadgeState struct {
	BadgeID         string    `json:"badge_id"`
	Earned          bool      `json:"earned"`
	EarnedAt        time.Time `json:"earned_at,omitzero"`
	ProgressCurrent int       `json:"progress_current"`
	ProgressTarget  int       `json:"progress_target"`
}

// ─── Notification Types ─────────────────────────────────────────────────────

// NotificationType categorizes notifications.
type NotificationType string

const (
	NotifyLevelUp     NotificationType = "level_up"
	NotifyBadgeEarned NotificationType = "badge_earned"
	NotifyStreak      NotificationType = "streak_milestone"
)

// Notification is a user-facing message queued for the client to show.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
	Shown     bool             `json:"shown"`
}

// NotificationPolicy governs how often notifications are queued.
type NotificationPolicy struct {
	MaxPerDay  int    `json:"max_per_day"`
	QuietStart string `json:"quiet_start"` // "22:00"
	QuietEnd   string `json:"quiet_end"`   // "08:00"
}

// DefaultNotificationPolicy returns the default policy: one notification
// per day, quiet overnight.
func DefaultNotificationPolicy() NotificationPolicy {
	return NotificationPolicy{
		MaxPerDay:  1,
		QuietStart: "22:00",
		QuietEnd:   "08:00",
	}
}
