package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumen-app/lumen/internal/domain"
)

// ─── Transactions ───────────────────────────────────────────────────────────

// Tx exposes the ledger's conditional read-then-write sequence against a
// single database transaction. All reads and writes inside fn are atomic
// relative to other writers racing on the same event key or stats row.
type Tx struct {
	tx *sql.Tx
}

// WithTx executes fn within a transaction. If fn returns an error the
// transaction is rolled back, otherwise it is committed.
func (d *DB) WithTx(fn func(*Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&Tx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ─── Stats Document ─────────────────────────────────────────────────────────

const statsColumns = `user_id, all_time_xp, weekly_xp, weekly_key, level, level_name,
	moments_count, reflections_count, streak_days, best_streak_days, journey_day,
	depth_moments, emotion_counts, last_moment_at, last_reflection_at,
	active_badge_id, patterns_viewed`

// EnsureStats lazily creates a zeroed stats row for the user.
// Idempotent — an existing row is left untouched.
func (d *DB) EnsureStats(userID string) error { return ensureStats(d.db, userID) }

// EnsureStats is the transactional variant used inside the award sequence.
func (t *Tx) EnsureStats(userID string) error { return ensureStats(t.tx, userID) }

func ensureStats(q querier, userID string) error {
	_, err := q.Exec(
		`INSERT OR IGNORE INTO stats (user_id, level) VALUES (?, 1)`, userID,
	)
	return err
}

// GetStats retrieves the stats document for a user.
// Returns nil if no row exists yet.
func (d *DB) GetStats(userID string) (*domain.StatsDoc, error) { return getStats(d.db, userID) }

// GetStats is the transactional variant used inside the award sequence.
func (t *Tx) GetStats(userID string) (*domain.StatsDoc, error) { return getStats(t.tx, userID) }

func getStats(q querier, userID string) (*domain.StatsDoc, error) {
	row := q.QueryRow(`SELECT `+statsColumns+` FROM stats WHERE user_id = ?`, userID)
	return scanStats(row)
}

func scanStats(s scanner) (*domain.StatsDoc, error) {
	var doc domain.StatsDoc
	var emotions string
	var lastMoment, lastReflection sql.NullInt64

	err := s.Scan(&doc.UserID, &doc.AllTimeXP, &doc.WeeklyXP, &doc.WeeklyKey,
		&doc.Level, &doc.LevelName,
		&doc.MomentsCount, &doc.ReflectionsCount, &doc.StreakDays,
		&doc.BestStreakDays, &doc.JourneyDay, &doc.DepthMoments,
		&emotions, &lastMoment, &lastReflection,
		&doc.ActiveBadgeID, &doc.PatternsViewed)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	doc.EmotionCounts = map[string]int{}
	if emotions != "" {
		if err := json.Unmarshal([]byte(emotions), &doc.EmotionCounts); err != nil {
			return nil, fmt.Errorf("decode emotion counts: %w", err)
		}
	}
	doc.LastMomentAt = timeFromNullable(lastMoment)
	doc.LastReflectionAt = timeFromNullable(lastReflection)
	return &doc, nil
}

// UpdateLedgerFields merge-writes the ledger-owned stats columns and
// nothing else. Reconciliation-owned counters are never touched here.
func (t *Tx) UpdateLedgerFields(userID string, allTimeXP, weeklyXP int64, weekKey string, level int, levelName string) error {
	_, err := t.tx.Exec(
		`UPDATE stats SET all_time_xp = ?, weekly_xp = ?, weekly_key = ?, level = ?, level_name = ?
		 WHERE user_id = ?`,
		allTimeXP, weeklyXP, weekKey, level, levelName, userID,
	)
	return err
}

// UpdateReconcileFields merge-writes the reconciliation-owned stats
// columns and nothing else. XP, week key, and level stay ledger-owned.
func (d *DB) UpdateReconcileFields(userID string, u domain.StatsUpdate) error {
	emotions, err := json.Marshal(u.EmotionCounts)
	if err != nil {
		return fmt.Errorf("encode emotion counts: %w", err)
	}
	_, err = d.db.Exec(
		`UPDATE stats SET moments_count = ?, reflections_count = ?, streak_days = ?,
			best_streak_days = ?, journey_day = ?, depth_moments = ?, emotion_counts = ?,
			last_moment_at = ?, last_reflection_at = ?
		 WHERE user_id = ?`,
		u.MomentsCount, u.ReflectionsCount, u.StreakDays,
		u.BestStreakDays, u.JourneyDay, u.DepthMoments, string(emotions),
		nullableUnix(u.LastMomentAt), nullableUnix(u.LastReflectionAt),
		userID,
	)
	return err
}

// ResetWeekly merge-writes the weekly window fields only.
func (d *DB) ResetWeekly(userID, weekKey string) error {
	_, err := d.db.Exec(
		`UPDATE stats SET weekly_key = ?, weekly_xp = 0 WHERE user_id = ?`,
		weekKey, userID,
	)
	return err
}

// IncrementPatternsViewed bumps the externally-owned patterns counter.
func (d *DB) IncrementPatternsViewed(userID string) error {
	_, err := d.db.Exec(
		`UPDATE stats SET patterns_viewed = patterns_viewed + 1 WHERE user_id = ?`, userID,
	)
	return err
}

// SetActiveBadge records the badge the user chose to display.
func (d *DB) SetActiveBadge(userID, badgeID string) error {
	_, err := d.db.Exec(
		`UPDATE stats SET active_badge_id = ? WHERE user_id = ?`, badgeID, userID,
	)
	return err
}

// ─── XP Events ──────────────────────────────────────────────────────────────

// XPEventExists checks whether an idempotency key has been applied.
func (t *Tx) XPEventExists(key string) (bool, error) {
	var count int
	err := t.tx.QueryRow(`SELECT COUNT(*) FROM xp_events WHERE key = ?`, key).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertXPEvent appends an XP event. The insert is the durable
// idempotency marker; a duplicate key returns ErrDuplicateXPEvent.
func (t *Tx) InsertXPEvent(ev domain.XPEvent) error {
	meta := "{}"
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(b)
	}

	result, err := t.tx.Exec(
		`INSERT OR IGNORE INTO xp_events (key, user_id, amount, week_key, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Key, ev.UserID, ev.Amount, ev.WeekKey, meta, ev.CreatedAt.Unix(),
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrDuplicateXPEvent
	}
	return nil
}

// ListXPEvents returns a user's most recent XP events, newest first.
func (d *DB) ListXPEvents(userID string, limit int) ([]domain.XPEvent, error) {
	rows, err := d.db.Query(
		`SELECT key, user_id, amount, week_key, metadata, created_at
		 FROM xp_events WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.XPEvent
	for rows.Next() {
		var ev domain.XPEvent
		var meta string
		var createdAt int64
		if err := rows.Scan(&ev.Key, &ev.UserID, &ev.Amount, &ev.WeekKey, &meta, &createdAt); err != nil {
			return nil, err
		}
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		ev.CreatedAt = time.Unix(createdAt, 0).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// GetBadge retrieves the stored state for one user badge.
// Returns nil if the badge has never been evaluated.
func (d *DB) GetBadge(userID, badgeID string) (*domain.BadgeState, error) {
	row := d.db.QueryRow(
		`SELECT badge_id, earned, earned_at, progress_current, progress_target
		 FROM badges WHERE user_id = ? AND badge_id = ?`, userID, badgeID,
	)
	return scanBadge(row)
}

// UpsertBadge writes the evaluated state for one user badge.
func (d *DB) UpsertBadge(userID string, st domain.BadgeState) error {
	_, err := d.db.Exec(
		`INSERT INTO badges (user_id, badge_id, earned, earned_at, progress_current, progress_target)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, badge_id) DO UPDATE SET
			earned=excluded.earned,
			earned_at=excluded.earned_at,
			progress_current=excluded.progress_current,
			progress_target=excluded.progress_target`,
		userID, st.BadgeID, st.Earned, nullableUnix(st.EarnedAt),
		st.ProgressCurrent, st.ProgressTarget,
	)
	return err
}

// ListBadges returns all evaluated badge states for a user.
func (d *DB) ListBadges(userID string) ([]domain.BadgeState, error) {
	rows, err := d.db.Query(
		`SELECT badge_id, earned, earned_at, progress_current, progress_target
		 FROM badges WHERE user_id = ? ORDER BY badge_id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []domain.BadgeState
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}

// EarnedBadgeCount returns how many badges the user has earned.
func (d *DB) EarnedBadgeCount(userID string) (int, error) {
	var count int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM badges WHERE user_id = ? AND earned = 1`, userID,
	).Scan(&count)
	return count, err
}

func scanBadge(s scanner) (*domain.BadgeState, error) {
	var b domain.BadgeState
	var earnedAt sql.NullInt64
	err := s.Scan(&b.BadgeID, &b.Earned, &earnedAt, &b.ProgressCurrent, &b.ProgressTarget)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.EarnedAt = timeFromNullable(earnedAt)
	return &b, nil
}

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification creates a new notification.
func (d *DB) InsertNotification(n domain.Notification) (int64, error) {
	result, err := d.db.Exec(
		`INSERT INTO notifications (user_id, type, title, body, created_at, shown)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, string(n.Type), n.Title, n.Body, n.CreatedAt.Unix(), n.Shown,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// NotificationCountSince returns how many notifications were created for
// the user at or after the given time.
func (d *DB) NotificationCountSince(userID string, since time.Time) (int, error) {
	var count int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND created_at >= ?`,
		userID, since.Unix(),
	).Scan(&count)
	return count, err
}

// ListPendingNotifications returns unshown notifications, newest first.
func (d *DB) ListPendingNotifications(userID string, limit int) ([]domain.Notification, error) {
	rows, err := d.db.Query(
		`SELECT id, user_id, type, title, body, created_at, shown
		 FROM notifications WHERE user_id = ? AND shown = 0
		 ORDER BY created_at DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &createdAt, &n.Shown); err != nil {
			return nil, err
		}
		n.CreatedAt = time.Unix(createdAt, 0).UTC()
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// MarkNotificationShown marks a notification as shown.
func (d *DB) MarkNotificationShown(id int64) error {
	_, err := d.db.Exec(`UPDATE notifications SET shown = 1 WHERE id = ?`, id)
	return err
}
