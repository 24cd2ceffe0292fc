// Package sqlite provides SQLite-based persistent storage for Lumen.
// Uses WAL mode for concurrent reads and crash-safe writes. It stands in
// for the managed document store: keyed records, transactional
// conditional read-then-write, and field-level merge writes realized as
// column-scoped UPDATE statements.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// XP ledger — append-only. The primary key on key IS the
		// idempotency guard: a second insert with the same key fails.
		`CREATE TABLE IF NOT EXISTS xp_events (
			key        TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			amount     INTEGER NOT NULL,
			week_key   TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_events_user ON xp_events(user_id, created_at)`,

		// Per-user stats document. Column ownership is partitioned:
		// the ledger writes all_time_xp/weekly_xp/weekly_key/level/
		// level_name, reconciliation writes the counter columns.
		`CREATE TABLE IF NOT EXISTS stats (
			user_id            TEXT PRIMARY KEY,
			all_time_xp        INTEGER NOT NULL DEFAULT 0,
			weekly_xp          INTEGER NOT NULL DEFAULT 0,
			weekly_key         TEXT NOT NULL DEFAULT '',
			level              INTEGER NOT NULL DEFAULT 1,
			level_name         TEXT NOT NULL DEFAULT '',
			moments_count      INTEGER NOT NULL DEFAULT 0,
			reflections_count  INTEGER NOT NULL DEFAULT 0,
			streak_days        INTEGER NOT NULL DEFAULT 0,
			best_streak_days   INTEGER NOT NULL DEFAULT 0,
			journey_day        INTEGER NOT NULL DEFAULT 0,
			depth_moments      INTEGER NOT NULL DEFAULT 0,
			emotion_counts     TEXT NOT NULL DEFAULT '{}',
			last_moment_at     INTEGER,
			last_reflection_at INTEGER,
			active_badge_id    TEXT NOT NULL DEFAULT '',
			patterns_viewed    INTEGER NOT NULL DEFAULT 0
		)`,

		// Per-user badge state. Earned is monotonic — enforced by the
		// badge engine, which ORs the computed value with the stored row.
		`CREATE TABLE IF NOT EXISTS badges (
			user_id          TEXT NOT NULL,
			badge_id         TEXT NOT NULL,
			earned           BOOLEAN NOT NULL DEFAULT 0,
			earned_at        INTEGER,
			progress_current INTEGER NOT NULL DEFAULT 0,
			progress_target  INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, badge_id)
		)`,

		// Raw activity: moments written by the capture client.
		`CREATE TABLE IF NOT EXISTS moments (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			emotion    TEXT NOT NULL,
			tags       TEXT NOT NULL DEFAULT '[]',
			note       TEXT NOT NULL DEFAULT '',
			date_key   TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_moments_user_day ON moments(user_id, date_key)`,

		// Raw activity: one reflection entry per user per calendar day.
		`CREATE TABLE IF NOT EXISTS reflections (
			user_id    TEXT NOT NULL,
			date_key   TEXT NOT NULL,
			gratitude  TEXT NOT NULL DEFAULT '',
			highlight  TEXT NOT NULL DEFAULT '',
			intention  TEXT NOT NULL DEFAULT '',
			completed  BOOLEAN NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, date_key)
		)`,

		// Notification log (policy: max 1/day, quiet hours)
		`CREATE TABLE IF NOT EXISTS notifications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			shown      BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user_created ON notifications(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the same query
// helpers serve plain reads and the ledger's transactional sequence.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timeFromNullable(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(n.Int64, 0).UTC()
}

// IsBusy reports whether err is a SQLite lock/busy failure, i.e. a
// transient conflict with a concurrent writer that warrants a retry.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
