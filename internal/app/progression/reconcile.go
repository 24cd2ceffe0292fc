package progression

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lumen-app/lumen/internal/domain"
	"github.com/lumen-app/lumen/internal/infra/metrics"
	"github.com/lumen-app/lumen/internal/infra/sqlite"
)

// journeyWindowDays is the trailing window (inclusive of today) for the
// journey-day counter.
const journeyWindowDays = 7

// Reconciler recomputes derived stats wholesale from the raw activity
// collections. Every pass is a deterministic function of the data at
// call time, so it is safe to re-run or to race with itself — last
// writer wins. It only ever merge-writes the reconciliation-owned
// fields; XP counters and level stay ledger-owned.
type Reconciler struct {
	db  *sqlite.DB
	now func() time.Time
}

// NewReconciler creates a stats reconciler.
func NewReconciler(db *sqlite.DB) *Reconciler {
	return &Reconciler{db: db, now: time.Now}
}

// ReconcileStatsFromData recomputes all reconciliation-owned counters
// from the moment and reflection collections and merge-writes them.
// Malformed records are skipped, not fatal.
func (r *Reconciler) ReconcileStatsFromData(userID string) (*domain.StatsUpdate, error) {
	return r.ReconcileStatsFromDataAt(userID, r.now())
}

// ReconcileStatsFromDataAt is ReconcileStatsFromData with an explicit
// clock for deterministic day boundaries.
func (r *Reconciler) ReconcileStatsFromDataAt(userID string, now time.Time) (*domain.StatsUpdate, error) {
	if err := r.db.EnsureStats(userID); err != nil {
		return nil, fmt.Errorf("ensure stats: %w", err)
	}

	moments, err := r.db.ListMoments(userID)
	if err != nil {
		return nil, fmt.Errorf("load moments: %w", err)
	}
	reflections, err := r.db.ListReflections(userID)
	if err != nil {
		return nil, fmt.Errorf("load reflections: %w", err)
	}

	update := domain.StatsUpdate{EmotionCounts: map[string]int{}}
	momentDays := map[string]bool{}

	for _, m := range moments {
		if m.Emotion == "" || m.CreatedAt.IsZero() {
			log.Printf("[reconcile] skipping malformed moment %s for user %s", m.ID, userID)
			metrics.ReconcileSkips.Inc()
			continue
		}
		update.MomentsCount++
		if m.HasDepth() {
			update.DepthMoments++
		}
		update.EmotionCounts[m.Emotion]++
		if m.CreatedAt.After(update.LastMomentAt) {
			update.LastMomentAt = m.CreatedAt
		}
		momentDays[m.DateKey] = true
	}

	for _, entry := range reflections {
		if entry.UpdatedAt.After(update.LastReflectionAt) {
			update.LastReflectionAt = entry.UpdatedAt
		}
	}

	rawDates, err := r.db.CompletedReflectionDates(userID)
	if err != nil {
		return nil, fmt.Errorf("load completed dates: %w", err)
	}
	var completedDates []string
	for _, key := range rawDates {
		if _, err := ParseDateKey(key); err != nil {
			log.Printf("[reconcile] skipping completed reflection with bad date key %q for user %s", key, userID)
			metrics.ReconcileSkips.Inc()
			continue
		}
		completedDates = append(completedDates, key)
	}
	update.ReflectionsCount = len(completedDates)

	todayKey := DateKey(now)
	update.StreakDays, update.BestStreakDays = computeStreak(completedDates, todayKey)
	update.JourneyDay = computeJourneyDay(momentDays, now)

	if err := r.db.UpdateReconcileFields(userID, update); err != nil {
		return nil, fmt.Errorf("write stats: %w", err)
	}

	metrics.ReconcileRuns.WithLabelValues("stats").Inc()
	return &update, nil
}

// ReconcileWeeklyReset zeroes the weekly XP window when the stored week
// key is stale. Idempotent — safe to call on every session start.
func (r *Reconciler) ReconcileWeeklyReset(userID string) error {
	return r.ReconcileWeeklyResetAt(userID, r.now())
}

// ReconcileWeeklyResetAt is ReconcileWeeklyReset with an explicit clock.
func (r *Reconciler) ReconcileWeeklyResetAt(userID string, now time.Time) error {
	if err := r.db.EnsureStats(userID); err != nil {
		return fmt.Errorf("ensure stats: %w", err)
	}
	stats, err := r.db.GetStats(userID)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	current := WeekKey(now)
	if stats.WeeklyKey == current {
		return nil
	}

	if err := r.db.ResetWeekly(userID, current); err != nil {
		return fmt.Errorf("reset weekly: %w", err)
	}
	metrics.ReconcileRuns.WithLabelValues("weekly_reset").Inc()
	return nil
}

// computeStreak walks completed-reflection dates and returns the current
// and best consecutive-day streaks.
//
// Dates are de-duplicated and sorted descending. A gap of exactly one
// calendar day extends the run; any other gap restarts it at 1. The
// current streak is the run anchored at the most recent date — and is
// forced to 0 when today is not among the completed dates: today's
// absence breaks the active streak even though the history is preserved
// in the best streak.
func computeStreak(dateKeys []string, todayKey string) (current, best int) {
	days := dedupeDates(dateKeys)
	if len(days) == 0 {
		return 0, 0
	}

	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	run := 1
	best = 1
	firstRun := 0

	for i := 1; i < len(days); i++ {
		prev, errPrev := ParseDateKey(days[i-1])
		cur, errCur := ParseDateKey(days[i])
		if errPrev != nil || errCur != nil {
			continue
		}

		if prev.Sub(cur) == 24*time.Hour {
			run++
		} else {
			if firstRun == 0 {
				firstRun = run
			}
			run = 1
		}
		if run > best {
			best = run
		}
	}
	if firstRun == 0 {
		firstRun = run
	}

	current = firstRun
	if days[0] != todayKey {
		current = 0
	}
	return current, best
}

// computeJourneyDay counts the distinct calendar days with at least one
// moment in the trailing 7-day window inclusive of today, capped at 7.
func computeJourneyDay(momentDays map[string]bool, now time.Time) int {
	today, err := ParseDateKey(DateKey(now))
	if err != nil {
		return 0
	}

	count := 0
	for i := 0; i < journeyWindowDays; i++ {
		day := DateKey(today.AddDate(0, 0, -i))
		if momentDays[day] {
			count++
		}
	}
	if count > journeyWindowDays {
		count = journeyWindowDays
	}
	return count
}

// dedupeDates returns the unique date keys, order unspecified.
func dedupeDates(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
