package progression_test

import (
	"testing"
	"time"

	"github.com/lumen-app/lumen/internal/app/progression"
	"github.com/lumen-app/lumen/internal/domain"
	"github.com/lumen-app/lumen/internal/infra/sqlite"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// openNotifier returns a notifier whose policy never suppresses, so
// tests are not sensitive to the wall clock.
func openNotifier(db *sqlite.DB) *progression.Notifier {
	return progression.NewNotifierWithPolicy(db, domain.NotificationPolicy{
		MaxPerDay:  1000,
		QuietStart: "00:00",
		QuietEnd:   "00:00",
	})
}

// completeReflection fills all three answer slots for the given day.
func completeReflection(t *testing.T, rec *progression.Recorder, userID, dateKey string) {
	t.Helper()
	for _, slot := range []domain.ReflectionSlot{
		domain.SlotGratitude, domain.SlotHighlight, domain.SlotIntention,
	} {
		if _, err := rec.SaveReflectionAnswer(userID, dateKey, slot, "answer"); err != nil {
			t.Fatalf("save %s for %s: %v", slot, dateKey, err)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Calculator
// ═══════════════════════════════════════════════════════════════════════════

func TestComputeLevel_Thresholds(t *testing.T) {
	tests := []struct {
		xp   int64
		want int
	}{
		{0, 1},
		{49, 1},
		{50, 2},
		{199, 2},
		{200, 3},
		{600, 4},
		{1500, 5},
		{3500, 6},
		{7499, 6},
		{7500, 7},
		{1_000_000, 7}, // Capped, never panics
	}
	for _, tt := range tests {
		if got := progression.ComputeLevel(tt.xp); got != tt.want {
			t.Errorf("ComputeLevel(%d) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}

func TestComputeLevel_Monotonic(t *testing.T) {
	prev := 0
	for xp := int64(0); xp <= 8000; xp += 7 {
		level := progression.ComputeLevel(xp)
		if level < prev {
			t.Fatalf("level decreased: ComputeLevel(%d) = %d after %d", xp, level, prev)
		}
		prev = level
	}
}

func TestComputeLevelName_Clamped(t *testing.T) {
	if got := progression.ComputeLevelName(0); got != progression.ComputeLevelName(1) {
		t.Errorf("level 0 should clamp to level 1 name, got %q", got)
	}
	if got := progression.ComputeLevelName(99); got != progression.ComputeLevelName(progression.MaxLevel()) {
		t.Errorf("level 99 should clamp to max level name, got %q", got)
	}
	if progression.ComputeLevelName(1) == "" {
		t.Error("level 1 name should not be empty")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Time-Window Keys
// ═══════════════════════════════════════════════════════════════════════════

func TestDateKey_UTC(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2024, 1, 7, 23, 30, 0, 0, loc)
	if got := progression.DateKey(ts); got != "2024-01-08" {
		t.Errorf("DateKey = %q, want 2024-01-08", got)
	}
}

func TestWeekKey_KnownDates(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-01-01", "2024-W01"}, // Monday, start of W01
		{"2024-01-07", "2024-W01"}, // Sunday, still W01
		{"2024-01-08", "2024-W02"}, // Monday, W02
		{"2023-01-01", "2022-W52"}, // Sunday belongs to previous year's last week
		{"2021-01-01", "2020-W53"}, // Friday in a 53-week ISO year
		{"2024-12-30", "2025-W01"}, // Monday belongs to next year's W01
		{"2020-12-31", "2020-W53"},
	}
	for _, tt := range tests {
		ts, err := time.Parse("2006-01-02", tt.date)
		if err != nil {
			t.Fatalf("parse %s: %v", tt.date, err)
		}
		if got := progression.WeekKey(ts); got != tt.want {
			t.Errorf("WeekKey(%s) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestParseDateKey_Invalid(t *testing.T) {
	if _, err := progression.ParseDateKey("01/08/2024"); err == nil {
		t.Error("expected error for malformed date key")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Ledger
// ═══════════════════════════════════════════════════════════════════════════

func TestAwardXPOnce_Idempotent(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)

	first, err := ledger.AwardXPOnce("u1", "K", 10, nil)
	if err != nil {
		t.Fatalf("first award: %v", err)
	}
	if !first.Awarded {
		t.Error("first award should be applied")
	}

	second, err := ledger.AwardXPOnce("u1", "K", 10, nil)
	if err != nil {
		t.Fatalf("second award: %v", err)
	}
	if second.Awarded {
		t.Error("second award with same key should be skipped")
	}

	stats, err := ledger.Stats("u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.AllTimeXP != 10 {
		t.Errorf("AllTimeXP = %d, want 10 (applied exactly once)", stats.AllTimeXP)
	}
}

func TestAwardXPOnce_InvalidInputIsNoOp(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)

	cases := []struct {
		name   string
		user   string
		key    string
		amount int64
	}{
		{"missing user", "", "K", 10},
		{"empty key", "u1", "", 10},
		{"zero amount", "u1", "K", 0},
		{"negative amount", "u1", "K", -5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ledger.AwardXPOnce(tc.user, tc.key, tc.amount, nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if res.Awarded {
				t.Error("invalid input must not award")
			}
		})
	}
}

func TestAwardXPOnce_WeeklyReset(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)

	// 2024-01-03 is in 2024-W01; 2024-01-08 is in 2024-W02.
	w1 := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	w2 := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)

	if _, err := ledger.AwardXPOnceAt("u1", "seed", 40, nil, w1); err != nil {
		t.Fatalf("seed award: %v", err)
	}

	res, err := ledger.AwardXPOnceAt("u1", "next-week", 10, nil, w2)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if !res.Awarded {
		t.Fatal("award should apply")
	}

	stats, _ := ledger.Stats("u1")
	if stats.WeeklyXP != 10 {
		t.Errorf("WeeklyXP = %d, want 10 (reset at week boundary, not 50)", stats.WeeklyXP)
	}
	if stats.WeeklyKey != "2024-W02" {
		t.Errorf("WeeklyKey = %q, want 2024-W02", stats.WeeklyKey)
	}
	if stats.AllTimeXP != 50 {
		t.Errorf("AllTimeXP = %d, want 50 (never reset)", stats.AllTimeXP)
	}
}

func TestAwardXPOnce_CrossesLevelThreshold(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)

	w1a := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	w1b := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

	if _, err := ledger.AwardXPOnceAt("u1", "seed", 40, nil, w1a); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := ledger.AwardXPOnceAt("u1", "MOMENT_COMPLETED_2024-01-05", 10, nil, w1b)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if !res.Awarded {
		t.Fatal("award should apply")
	}
	if res.Level != 2 {
		t.Errorf("Level = %d, want 2 (crossed the 50 threshold)", res.Level)
	}
	if !res.LeveledUp {
		t.Error("LeveledUp should be true")
	}

	stats, _ := ledger.Stats("u1")
	if stats.AllTimeXP != 50 || stats.WeeklyXP != 50 {
		t.Errorf("got allTime=%d weekly=%d, want 50/50", stats.AllTimeXP, stats.WeeklyXP)
	}
	if stats.Level != 2 {
		t.Errorf("stored level = %d, want 2", stats.Level)
	}
	if stats.LevelName != progression.ComputeLevelName(2) {
		t.Errorf("LevelName = %q, want %q", stats.LevelName, progression.ComputeLevelName(2))
	}
}

func TestAwardXPOnce_LevelUpQueuesNotification(t *testing.T) {
	db := testDB(t)
	notifier := openNotifier(db)
	ledger := progression.NewLedgerWithNotifier(db, notifier)

	res, err := ledger.AwardXPOnce("u1", "big", 60, nil)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if !res.LeveledUp {
		t.Fatal("60 XP from zero should level up")
	}

	pending, err := notifier.Pending("u1", 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one notification, got %d", len(pending))
	}
	if pending[0].Type != domain.NotifyLevelUp {
		t.Errorf("type = %q, want %q", pending[0].Type, domain.NotifyLevelUp)
	}

	// A grant that does not raise the level queues nothing.
	if _, err := ledger.AwardXPOnce("u1", "small", 5, nil); err != nil {
		t.Fatalf("award: %v", err)
	}
	pending, _ = notifier.Pending("u1", 10)
	if len(pending) != 1 {
		t.Errorf("non-level-up grant should not notify, got %d pending", len(pending))
	}
}

func TestLedger_StatsLazyInit(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)

	stats, err := ledger.Stats("brand-new")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats == nil {
		t.Fatal("expected lazily initialized stats doc")
	}
	if stats.AllTimeXP != 0 || stats.Level != 1 {
		t.Errorf("fresh doc should be zeroed at level 1, got xp=%d level=%d", stats.AllTimeXP, stats.Level)
	}
}

func TestLedger_History(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)

	_, _ = ledger.AwardXPOnce("u1", "a", 5, map[string]string{"source": "test"})
	_, _ = ledger.AwardXPOnce("u1", "b", 7, nil)

	events, err := ledger.History("u1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reconciliation
// ═══════════════════════════════════════════════════════════════════════════

func TestReconcile_CountsAndHistogram(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)
	r := progression.NewReconciler(db)

	d1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	if _, err := rec.LogMomentAt("u1", "joy", nil, "", d1); err != nil {
		t.Fatalf("log moment: %v", err)
	}
	if _, err := rec.LogMomentAt("u1", "calm", []string{"x"}, "", d2); err != nil {
		t.Fatalf("log moment: %v", err)
	}
	completeReflection(t, rec, "u1", "2024-01-01")

	update, err := r.ReconcileStatsFromDataAt("u1", d2)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if update.MomentsCount != 2 {
		t.Errorf("MomentsCount = %d, want 2", update.MomentsCount)
	}
	if update.DepthMoments != 1 {
		t.Errorf("DepthMoments = %d, want 1 (only the tagged moment)", update.DepthMoments)
	}
	if update.ReflectionsCount != 1 {
		t.Errorf("ReflectionsCount = %d, want 1", update.ReflectionsCount)
	}
	if update.EmotionCounts["joy"] != 1 || update.EmotionCounts["calm"] != 1 {
		t.Errorf("EmotionCounts = %v, want joy:1 calm:1", update.EmotionCounts)
	}
	if !update.LastMomentAt.Equal(d2) {
		t.Errorf("LastMomentAt = %v, want %v", update.LastMomentAt, d2)
	}

	// The update is merge-written into the stats doc.
	stats, err := db.GetStats("u1")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.MomentsCount != 2 || stats.DepthMoments != 1 {
		t.Errorf("stats not persisted: %+v", stats)
	}
}

func TestReconcile_DoesNotTouchLedgerFields(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)
	r := progression.NewReconciler(db)

	at := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	if _, err := ledger.AwardXPOnceAt("u1", "seed", 60, nil, at); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := r.ReconcileStatsFromDataAt("u1", at); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	stats, _ := ledger.Stats("u1")
	if stats.AllTimeXP != 60 || stats.WeeklyXP != 60 {
		t.Errorf("reconcile clobbered ledger fields: allTime=%d weekly=%d", stats.AllTimeXP, stats.WeeklyXP)
	}
	if stats.Level != 2 {
		t.Errorf("reconcile clobbered level: %d", stats.Level)
	}
}

func TestReconcile_ReflectionsCountDistinctCompleted(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)
	r := progression.NewReconciler(db)

	completeReflection(t, rec, "u1", "2024-01-01")
	completeReflection(t, rec, "u1", "2024-01-02")
	// Started but incomplete — must not count.
	if _, err := rec.SaveReflectionAnswer("u1", "2024-01-03", domain.SlotGratitude, "g"); err != nil {
		t.Fatalf("save: %v", err)
	}

	update, err := r.ReconcileStatsFromDataAt("u1", time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if update.ReflectionsCount != 2 {
		t.Errorf("ReflectionsCount = %d, want 2 (completed days only)", update.ReflectionsCount)
	}
}

func TestStreak_ConsecutiveThroughToday(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)
	r := progression.NewReconciler(db)

	// Mon, Tue, Wed completed; today is Wed.
	completeReflection(t, rec, "u1", "2024-01-01")
	completeReflection(t, rec, "u1", "2024-01-02")
	completeReflection(t, rec, "u1", "2024-01-03")

	today := time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)
	update, err := r.ReconcileStatsFromDataAt("u1", today)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if update.StreakDays != 3 {
		t.Errorf("StreakDays = %d, want 3", update.StreakDays)
	}
	if update.BestStreakDays != 3 {
		t.Errorf("BestStreakDays = %d, want 3", update.BestStreakDays)
	}
}

func TestStreak_GapRestartsAtOne(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)
	r := progression.NewReconciler(db)

	// Mon and Wed completed, Tue missing; today is Wed.
	completeReflection(t, rec, "u1", "2024-01-01")
	completeReflection(t, rec, "u1", "2024-01-03")

	today := time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)
	update, err := r.ReconcileStatsFromDataAt("u1", today)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if update.StreakDays != 1 {
		t.Errorf("StreakDays = %d, want 1 (gap broke the chain)", update.StreakDays)
	}
}

func TestStreak_ZeroWhenTodayMissing(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)
	r := progression.NewReconciler(db)

	// Mon and Tue completed; today is Wed with no reflection yet.
	completeReflection(t, rec, "u1", "2024-01-01")
	completeReflection(t, rec, "u1", "2024-01-02")

	today := time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)
	update, err := r.ReconcileStatsFromDataAt("u1", today)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if update.StreakDays != 0 {
		t.Errorf("StreakDays = %d, want 0 (today absent breaks the active streak)", update.StreakDays)
	}
	if update.BestStreakDays != 2 {
		t.Errorf("BestStreakDays = %d, want 2 (history preserved)", update.BestStreakDays)
	}
}

func TestJourneyDay_TrailingWindow(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)
	r := progression.NewReconciler(db)

	today := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	// Three days with moments inside the window, one far outside.
	for _, offset := range []int{0, -2, -6, -30} {
		at := today.AddDate(0, 0, offset)
		if _, err := rec.LogMomentAt("u1", "joy", nil, "", at); err != nil {
			t.Fatalf("log moment: %v", err)
		}
	}

	update, err := r.ReconcileStatsFromDataAt("u1", today)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if update.JourneyDay != 3 {
		t.Errorf("JourneyDay = %d, want 3 (only days inside the 7-day window)", update.JourneyDay)
	}
}

func TestJourneyDay_CappedAtSeven(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)
	r := progression.NewReconciler(db)

	today := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	for offset := 0; offset > -10; offset-- {
		at := today.AddDate(0, 0, offset)
		if _, err := rec.LogMomentAt("u1", "joy", nil, "", at); err != nil {
			t.Fatalf("log moment: %v", err)
		}
	}

	update, err := r.ReconcileStatsFromDataAt("u1", today)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if update.JourneyDay != 7 {
		t.Errorf("JourneyDay = %d, want 7 (capped)", update.JourneyDay)
	}
}

func TestWeeklyReset_StaleKey(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)
	r := progression.NewReconciler(db)

	w1 := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	if _, err := ledger.AwardXPOnceAt("u1", "seed", 40, nil, w1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w2 := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	if err := r.ReconcileWeeklyResetAt("u1", w2); err != nil {
		t.Fatalf("weekly reset: %v", err)
	}

	stats, _ := ledger.Stats("u1")
	if stats.WeeklyXP != 0 {
		t.Errorf("WeeklyXP = %d, want 0 after reset", stats.WeeklyXP)
	}
	if stats.WeeklyKey != "2024-W02" {
		t.Errorf("WeeklyKey = %q, want 2024-W02", stats.WeeklyKey)
	}
	if stats.AllTimeXP != 40 {
		t.Errorf("AllTimeXP = %d, want 40 (untouched)", stats.AllTimeXP)
	}
}

func TestWeeklyReset_Idempotent(t *testing.T) {
	db := testDB(t)
	r := progression.NewReconciler(db)

	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := r.ReconcileWeeklyResetAt("u1", now); err != nil {
			t.Fatalf("reset %d: %v", i, err)
		}
	}

	stats, err := db.GetStats("u1")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.WeeklyKey != "2024-W02" || stats.WeeklyXP != 0 {
		t.Errorf("got weeklyKey=%q weeklyXP=%d", stats.WeeklyKey, stats.WeeklyXP)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Engine
// ═══════════════════════════════════════════════════════════════════════════

func TestBadges_ThresholdCrossing(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)
	engine := progression.NewBadgeEngine(db, ledger, openNotifier(db))
	rec := progression.NewRecorder(db)
	r := progression.NewReconciler(db)

	// No activity — nothing earned.
	newly, err := engine.ReconcileBadges("u1")
	if err != nil {
		t.Fatalf("reconcile badges: %v", err)
	}
	if len(newly) != 0 {
		t.Errorf("expected no badges, got %d", len(newly))
	}

	// One moment crosses the first_moment threshold.
	at := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	if _, err := rec.LogMomentAt("u1", "joy", nil, "", at); err != nil {
		t.Fatalf("log moment: %v", err)
	}
	if _, err := r.ReconcileStatsFromDataAt("u1", at); err != nil {
		t.Fatalf("reconcile stats: %v", err)
	}

	newly, err = engine.ReconcileBadges("u1")
	if err != nil {
		t.Fatalf("reconcile badges: %v", err)
	}
	found := false
	for _, def := range newly {
		if def.ID == "first_moment" {
			found = true
		}
	}
	if !found {
		t.Error("first_moment should be newly earned at momentsCount=1")
	}

	state, err := db.GetBadge("u1", "first_moment")
	if err != nil {
		t.Fatalf("get badge: %v", err)
	}
	if state == nil || !state.Earned {
		t.Fatal("first_moment should be persisted as earned")
	}
	if state.EarnedAt.IsZero() {
		t.Error("earnedAt should be set on first transition")
	}
	if state.ProgressCurrent != 1 || state.ProgressTarget != 1 {
		t.Errorf("progress = %d/%d, want 1/1", state.ProgressCurrent, state.ProgressTarget)
	}
}

func TestBadges_EarnedIsMonotonic(t *testing.T) {
	db := testDB(t)
	engine := progression.NewBadgeEngine(db, nil, nil)

	// Simulate a previously earned badge whose progress later dropped
	// (e.g. a data correction removed the qualifying records).
	earnedAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if err := db.EnsureStats("u1"); err != nil {
		t.Fatalf("ensure stats: %v", err)
	}
	err := db.UpsertBadge("u1", domain.BadgeState{
		BadgeID: "first_moment", Earned: true, EarnedAt: earnedAt,
		ProgressCurrent: 1, ProgressTarget: 1,
	})
	if err != nil {
		t.Fatalf("seed badge: %v", err)
	}

	if _, err := engine.ReconcileBadges("u1"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	state, err := db.GetBadge("u1", "first_moment")
	if err != nil {
		t.Fatalf("get badge: %v", err)
	}
	if !state.Earned {
		t.Error("earned must never regress to false")
	}
	if !state.EarnedAt.Equal(earnedAt) {
		t.Errorf("earnedAt changed: %v, want %v", state.EarnedAt, earnedAt)
	}
	if state.ProgressCurrent != 0 {
		t.Errorf("progress should reflect current data (0), got %d", state.ProgressCurrent)
	}
}

func TestBadges_RewardGrantedOnce(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)
	engine := progression.NewBadgeEngine(db, ledger, nil)
	rec := progression.NewRecorder(db)
	r := progression.NewReconciler(db)

	at := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	if _, err := rec.LogMomentAt("u1", "joy", nil, "", at); err != nil {
		t.Fatalf("log moment: %v", err)
	}
	if _, err := r.ReconcileStatsFromDataAt("u1", at); err != nil {
		t.Fatalf("reconcile stats: %v", err)
	}

	if _, err := engine.ReconcileBadges("u1"); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	statsAfterFirst, _ := ledger.Stats("u1")

	// Re-running the pass must not double-grant the reward.
	if _, err := engine.ReconcileBadges("u1"); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	statsAfterSecond, _ := ledger.Stats("u1")

	if statsAfterFirst.AllTimeXP == 0 {
		t.Fatal("badge reward XP should have been granted")
	}
	if statsAfterSecond.AllTimeXP != statsAfterFirst.AllTimeXP {
		t.Errorf("reward double-granted: %d then %d",
			statsAfterFirst.AllTimeXP, statsAfterSecond.AllTimeXP)
	}
}

func TestBadges_SetActive(t *testing.T) {
	db := testDB(t)
	engine := progression.NewBadgeEngine(db, nil, nil)

	if err := db.EnsureStats("u1"); err != nil {
		t.Fatalf("ensure stats: %v", err)
	}
	if err := engine.SetActive("u1", "first_moment"); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := engine.SetActive("u1", "no-such-badge"); err != domain.ErrUnknownBadge {
		t.Errorf("expected ErrUnknownBadge, got %v", err)
	}

	stats, _ := db.GetStats("u1")
	if stats.ActiveBadgeID != "first_moment" {
		t.Errorf("ActiveBadgeID = %q, want first_moment", stats.ActiveBadgeID)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Policy
// ═══════════════════════════════════════════════════════════════════════════

func TestNotifier_DailyCap(t *testing.T) {
	db := testDB(t)
	notifier := progression.NewNotifierWithPolicy(db, domain.NotificationPolicy{
		MaxPerDay:  1,
		QuietStart: "00:00",
		QuietEnd:   "00:00",
	})

	badge := progression.AllBadges()[0]
	notifier.BadgeEarned("u1", badge)
	notifier.BadgeEarned("u1", badge)

	pending, err := notifier.Pending("u1", 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected cap of 1 per day, got %d", len(pending))
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Daily Quest Engine
// ═══════════════════════════════════════════════════════════════════════════

func TestDailyQuests_GrantOncePerDay(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)
	quests := progression.NewQuestEngine(db, ledger)
	rec := progression.NewRecorder(db)

	at := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	dateKey := "2024-01-03"

	if _, err := rec.LogMomentAt("u1", "joy", nil, "", at); err != nil {
		t.Fatalf("log moment: %v", err)
	}
	completeReflection(t, rec, "u1", dateKey)

	granted, err := quests.ReconcileDailyQuests("u1", dateKey)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(granted) != 2 {
		t.Fatalf("expected 2 grants (moment + reflection), got %v", granted)
	}

	// Repeated invocations the same day are no-ops.
	granted, err = quests.ReconcileDailyQuests("u1", dateKey)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(granted) != 0 {
		t.Errorf("expected no new grants, got %v", granted)
	}

	stats, _ := ledger.Stats("u1")
	if stats.AllTimeXP != 25 {
		t.Errorf("AllTimeXP = %d, want 25 (10 moment + 15 reflection, once)", stats.AllTimeXP)
	}
}

func TestDailyQuests_NoActivityNoGrant(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)
	quests := progression.NewQuestEngine(db, ledger)

	granted, err := quests.ReconcileDailyQuests("u1", "2024-01-03")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(granted) != 0 {
		t.Errorf("expected no grants, got %v", granted)
	}
}

func TestDailyQuests_IncompleteReflectionNotCounted(t *testing.T) {
	db := testDB(t)
	ledger := progression.NewLedger(db)
	quests := progression.NewQuestEngine(db, ledger)
	rec := progression.NewRecorder(db)

	// Only two of three slots answered.
	dateKey := "2024-01-03"
	if _, err := rec.SaveReflectionAnswer("u1", dateKey, domain.SlotGratitude, "a"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := rec.SaveReflectionAnswer("u1", dateKey, domain.SlotHighlight, "b"); err != nil {
		t.Fatalf("save: %v", err)
	}

	granted, err := quests.ReconcileDailyQuests("u1", dateKey)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(granted) != 0 {
		t.Errorf("incomplete reflection must not grant, got %v", granted)
	}
}

func TestDailyQuests_BadDateKey(t *testing.T) {
	db := testDB(t)
	quests := progression.NewQuestEngine(db, progression.NewLedger(db))

	if _, err := quests.ReconcileDailyQuests("u1", "Jan 3"); err == nil {
		t.Error("expected error for malformed date key")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Recorder
// ═══════════════════════════════════════════════════════════════════════════

func TestReflection_CompletesOnThirdAnswer(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)

	dateKey := "2024-01-03"

	entry, err := rec.SaveReflectionAnswer("u1", dateKey, domain.SlotGratitude, "sunlight")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if entry.Completed {
		t.Error("one answer should not complete the reflection")
	}

	entry, _ = rec.SaveReflectionAnswer("u1", dateKey, domain.SlotHighlight, "a walk")
	if entry.Completed {
		t.Error("two answers should not complete the reflection")
	}

	entry, err = rec.SaveReflectionAnswer("u1", dateKey, domain.SlotIntention, "rest early")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !entry.Completed {
		t.Error("all three answers should complete the reflection")
	}
}

func TestReflection_ClearingSlotReopens(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)

	dateKey := "2024-01-03"
	completeReflection(t, rec, "u1", dateKey)

	entry, err := rec.SaveReflectionAnswer("u1", dateKey, domain.SlotHighlight, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if entry.Completed {
		t.Error("clearing a slot should reopen the entry")
	}
}

func TestLogMoment_AssignsIDAndDateKey(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)

	at := time.Date(2024, 1, 3, 23, 30, 0, 0, time.UTC)
	m, err := rec.LogMomentAt("u1", "joy", []string{"walk"}, "note", at)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if m.ID == "" {
		t.Error("moment should get an ID")
	}
	if m.DateKey != "2024-01-03" {
		t.Errorf("DateKey = %q, want 2024-01-03", m.DateKey)
	}

	moments, err := rec.Moments("u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(moments) != 1 || moments[0].Emotion != "joy" {
		t.Fatalf("unexpected moments: %+v", moments)
	}
	if len(moments[0].Tags) != 1 || moments[0].Tags[0] != "walk" {
		t.Errorf("tags not round-tripped: %v", moments[0].Tags)
	}
}

func TestMarkPatternsViewed_FeedsBadgeCriteria(t *testing.T) {
	db := testDB(t)
	rec := progression.NewRecorder(db)
	engine := progression.NewBadgeEngine(db, nil, nil)

	if err := rec.MarkPatternsViewed("u1"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	newly, err := engine.ReconcileBadges("u1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	found := false
	for _, def := range newly {
		if def.ID == "first_pattern" {
			found = true
		}
	}
	if !found {
		t.Error("first_pattern should be earned after one patterns view")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Full Session Pass
// ═══════════════════════════════════════════════════════════════════════════

func TestService_ReconcileAll(t *testing.T) {
	db := testDB(t)
	svc := progression.NewService(db)

	today := progression.DateKey(time.Now())
	if _, err := svc.Recorder.LogMoment("u1", "joy", nil, ""); err != nil {
		t.Fatalf("log moment: %v", err)
	}
	completeReflection(t, svc.Recorder, "u1", today)

	update, err := svc.ReconcileAll("u1")
	if err != nil {
		t.Fatalf("reconcile all: %v", err)
	}
	if update == nil {
		t.Fatal("expected a stats update")
	}
	if update.MomentsCount != 1 {
		t.Errorf("MomentsCount = %d, want 1", update.MomentsCount)
	}

	// Both daily quests were routed through the ledger.
	stats, err := svc.Ledger.Stats("u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.AllTimeXP < 25 {
		t.Errorf("AllTimeXP = %d, want at least 25 from daily quests", stats.AllTimeXP)
	}

	// Running again changes nothing ledger-side.
	before := stats.AllTimeXP
	badgeCount, _ := db.EarnedBadgeCount("u1")
	if _, err := svc.ReconcileAll("u1"); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	stats, _ = svc.Ledger.Stats("u1")
	if stats.AllTimeXP != before {
		t.Errorf("second pass changed XP: %d -> %d", before, stats.AllTimeXP)
	}
	badgeCountAfter, _ := db.EarnedBadgeCount("u1")
	if badgeCountAfter != badgeCount {
		t.Errorf("second pass changed earned badges: %d -> %d", badgeCount, badgeCountAfter)
	}
}
