package progression

import (
	"fmt"
	"log"
	"time"

	"github.com/lumen-app/lumen/internal/domain"
	"github.com/lumen-app/lumen/internal/infra/metrics"
	"github.com/lumen-app/lumen/internal/infra/sqlite"
)

// progressFunc measures one criteria variant against the current stats
// snapshot. Registered once per criteria type — adding a badge with a
// new criteria means adding one entry here, not another switch arm.
type progressFunc func(stats domain.StatsDoc, def domain.BadgeDef) int

var criteriaProgress = map[domain.CriteriaType]progressFunc{
	domain.CriteriaMomentsLogged: func(s domain.StatsDoc, _ domain.BadgeDef) int {
		return s.MomentsCount
	},
	domain.CriteriaReflectionsCompleted: func(s domain.StatsDoc, _ domain.BadgeDef) int {
		return s.ReflectionsCount
	},
	domain.CriteriaTagsAdded: func(s domain.StatsDoc, _ domain.BadgeDef) int {
		return s.DepthMoments
	},
	domain.CriteriaEmotionLogged: func(s domain.StatsDoc, def domain.BadgeDef) int {
		return s.EmotionCounts[def.EmotionType]
	},
	domain.CriteriaStreakDays: func(s domain.StatsDoc, _ domain.BadgeDef) int {
		return s.StreakDays
	},
	domain.CriteriaPatternsViewed: func(s domain.StatsDoc, _ domain.BadgeDef) int {
		return s.PatternsViewed
	},
}

// BadgeEngine evaluates the static badge catalog against a user's stats
// and persists earned/progress state per badge.
type BadgeEngine struct {
	db          *sqlite.DB
	ledger      *Ledger
	notifier    *Notifier
	definitions []domain.BadgeDef
	now         func() time.Time
}

// NewBadgeEngine creates a badge engine over the full catalog.
// ledger and notifier may be nil; newly earned badges then simply skip
// the XP reward and notification.
func NewBadgeEngine(db *sqlite.DB, ledger *Ledger, notifier *Notifier) *BadgeEngine {
	return &BadgeEngine{
		db:          db,
		ledger:      ledger,
		notifier:    notifier,
		definitions: AllBadges(),
		now:         time.Now,
	}
}

// ReconcileBadges evaluates every badge in the catalog against the
// user's current stats. Per-badge failures are isolated and logged; a
// partial pass is preferable to none. Returns the badges newly earned
// by this pass.
func (b *BadgeEngine) ReconcileBadges(userID string) ([]domain.BadgeDef, error) {
	if err := b.db.EnsureStats(userID); err != nil {
		return nil, fmt.Errorf("ensure stats: %w", err)
	}
	stats, err := b.db.GetStats(userID)
	if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}

	var newlyEarned []domain.BadgeDef
	for _, def := range b.definitions {
		isNew, err := b.reconcileBadge(userID, *stats, def)
		if err != nil {
			log.Printf("[badges] skipping %s for user %s: %v", def.ID, userID, err)
			metrics.BadgeEvalFailures.Inc()
			continue
		}
		if isNew {
			newlyEarned = append(newlyEarned, def)
		}
	}

	metrics.ReconcileRuns.WithLabelValues("badges").Inc()
	return newlyEarned, nil
}

// reconcileBadge evaluates one badge. Earned is monotonic: the computed
// value is OR-ed with the stored row, so a later data correction that
// lowers progress can never take a badge away.
func (b *BadgeEngine) reconcileBadge(userID string, stats domain.StatsDoc, def domain.BadgeDef) (bool, error) {
	progressFor, ok := criteriaProgress[def.Criteria]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrUnknownCriteria, def.Criteria)
	}

	progress := progressFor(stats, def)
	earned := def.Threshold > 0 && progress >= def.Threshold

	stored, err := b.db.GetBadge(userID, def.ID)
	if err != nil {
		return false, fmt.Errorf("read badge: %w", err)
	}

	state := domain.BadgeState{
		BadgeID:         def.ID,
		Earned:          earned,
		ProgressCurrent: progress,
		ProgressTarget:  def.Threshold,
	}

	isNew := false
	switch {
	case stored != nil && stored.Earned:
		// Already earned — keep the flag and original timestamp.
		state.Earned = true
		state.EarnedAt = stored.EarnedAt
	case earned:
		state.EarnedAt = b.now()
		isNew = true
	}

	if err := b.db.UpsertBadge(userID, state); err != nil {
		return false, fmt.Errorf("write badge: %w", err)
	}

	if isNew {
		metrics.BadgesEarned.WithLabelValues(def.ID).Inc()
		b.rewardBadge(userID, def)
	}
	return isNew, nil
}

// rewardBadge grants the badge's XP reward and queues a notification.
// The ledger key BADGE_<id> makes a re-run of the pass grant-safe.
func (b *BadgeEngine) rewardBadge(userID string, def domain.BadgeDef) {
	if b.ledger != nil && def.RewardXP > 0 {
		key := "BADGE_" + def.ID
		meta := map[string]string{"source": "badge", "badge_id": def.ID}
		if _, err := b.ledger.AwardXPOnce(userID, key, def.RewardXP, meta); err != nil {
			log.Printf("[badges] reward for %s failed: %v", def.ID, err)
		}
	}
	if b.notifier != nil {
		b.notifier.BadgeEarned(userID, def)
	}
}

// States returns the stored per-badge state for the user.
func (b *BadgeEngine) States(userID string) ([]domain.BadgeState, error) {
	return b.db.ListBadges(userID)
}

// SetActive records the badge the user chose to display on their profile.
func (b *BadgeEngine) SetActive(userID, badgeID string) error {
	if _, ok := b.definition(badgeID); !ok {
		return domain.ErrUnknownBadge
	}
	return b.db.SetActiveBadge(userID, badgeID)
}

// Definitions returns the full badge catalog (for display).
func (b *BadgeEngine) Definitions() []domain.BadgeDef {
	return b.definitions
}

func (b *BadgeEngine) definition(id string) (domain.BadgeDef, bool) {
	for _, def := range b.definitions {
		if def.ID == id {
			return def, true
		}
	}
	return domain.BadgeDef{}, false
}

// ─── Badge Catalog ──────────────────────────────────────────────────────────
// Static and immutable. IDs are stable identifiers persisted in badge
// records; never rename one without a data migration.

// AllBadges returns the full badge catalog.
func AllBadges() []domain.BadgeDef {
	return []domain.BadgeDef{
		// ── First Steps ────────────────────────────────────────────────
		{
			ID: "first_moment", Name: "First Light", Category: domain.CatFirstSteps,
			Criteria: domain.CriteriaMomentsLogged, Threshold: 1,
			RewardXP: 10, Icon: "✨",
		},
		{
			ID: "first_reflection", Name: "Looking Inward", Category: domain.CatFirstSteps,
			Criteria: domain.CriteriaReflectionsCompleted, Threshold: 1,
			RewardXP: 15, Icon: "🪞",
		},
		{
			ID: "first_pattern", Name: "Curious Mind", Category: domain.CatFirstSteps,
			Criteria: domain.CriteriaPatternsViewed, Threshold: 1,
			RewardXP: 10, Icon: "🔍",
		},

		// ── Consistency ────────────────────────────────────────────────
		{
			ID: "streak_3", Name: "Three in a Row", Category: domain.CatConsistency,
			Criteria: domain.CriteriaStreakDays, Threshold: 3,
			RewardXP: 25, Icon: "🕯️",
		},
		{
			ID: "streak_7", Name: "Full Week", Category: domain.CatConsistency,
			Criteria: domain.CriteriaStreakDays, Threshold: 7,
			RewardXP: 50, Icon: "🔥",
		},
		{
			ID: "streak_30", Name: "Monthly Ritual", Category: domain.CatConsistency,
			Criteria: domain.CriteriaStreakDays, Threshold: 30,
			RewardXP: 200, Icon: "🌙",
		},
		{
			ID: "reflections_7", Name: "Seven Evenings", Category: domain.CatConsistency,
			Criteria: domain.CriteriaReflectionsCompleted, Threshold: 7,
			RewardXP: 40, Icon: "📖",
		},
		{
			ID: "reflections_30", Name: "Month of Pages", Category: domain.CatConsistency,
			Criteria: domain.CriteriaReflectionsCompleted, Threshold: 30,
			RewardXP: 150, Icon: "📚",
		},

		// ── Depth ──────────────────────────────────────────────────────
		{
			ID: "moments_10", Name: "Ten Moments", Category: domain.CatDepth,
			Criteria: domain.CriteriaMomentsLogged, Threshold: 10,
			RewardXP: 30, Icon: "🌿",
		},
		{
			ID: "moments_50", Name: "Fifty Moments", Category: domain.CatDepth,
			Criteria: domain.CriteriaMomentsLogged, Threshold: 50,
			RewardXP: 100, Icon: "🌳",
		},
		{
			ID: "moments_100", Name: "Hundred Moments", Category: domain.CatDepth,
			Criteria: domain.CriteriaMomentsLogged, Threshold: 100,
			RewardXP: 250, Icon: "🏔️",
		},
		{
			ID: "depth_10", Name: "Going Deeper", Category: domain.CatDepth,
			Criteria: domain.CriteriaTagsAdded, Threshold: 10,
			RewardXP: 40, Icon: "🌊",
		},
		{
			ID: "depth_50", Name: "Deep Diver", Category: domain.CatDepth,
			Criteria: domain.CriteriaTagsAdded, Threshold: 50,
			RewardXP: 120, Icon: "🐚",
		},

		// ── Awareness ──────────────────────────────────────────────────
		{
			ID: "joy_10", Name: "Collector of Joy", Category: domain.CatAwareness,
			Criteria: domain.CriteriaEmotionLogged, EmotionType: "joy", Threshold: 10,
			RewardXP: 40, Icon: "☀️",
		},
		{
			ID: "calm_10", Name: "Still Waters", Category: domain.CatAwareness,
			Criteria: domain.CriteriaEmotionLogged, EmotionType: "calm", Threshold: 10,
			RewardXP: 40, Icon: "🌾",
		},
		{
			ID: "patterns_10", Name: "Pattern Seeker", Category: domain.CatAwareness,
			Criteria: domain.CriteriaPatternsViewed, Threshold: 10,
			RewardXP: 50, Icon: "🧭",
		},
	}
}
