package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumen-app/lumen/internal/domain"
)

// ─── Moments ────────────────────────────────────────────────────────────────

// InsertMoment appends a raw moment record.
func (d *DB) InsertMoment(m domain.Moment) error {
	tags := "[]"
	if len(m.Tags) > 0 {
		b, err := json.Marshal(m.Tags)
		if err != nil {
			return fmt.Errorf("encode tags: %w", err)
		}
		tags = string(b)
	}

	_, err := d.db.Exec(
		`INSERT INTO moments (id, user_id, emotion, tags, note, date_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Emotion, tags, m.Note, m.DateKey, m.CreatedAt.Unix(),
	)
	return err
}

// ListMoments returns all moments for a user, newest first.
func (d *DB) ListMoments(userID string) ([]domain.Moment, error) {
	rows, err := d.db.Query(
		`SELECT id, user_id, emotion, tags, note, date_key, created_at
		 FROM moments WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var moments []domain.Moment
	for rows.Next() {
		m, err := scanMoment(rows)
		if err != nil {
			return nil, err
		}
		moments = append(moments, *m)
	}
	return moments, rows.Err()
}

// CountMomentsOnDay returns how many moments a user logged on a calendar day.
func (d *DB) CountMomentsOnDay(userID, dateKey string) (int, error) {
	var count int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM moments WHERE user_id = ? AND date_key = ?`,
		userID, dateKey,
	).Scan(&count)
	return count, err
}

func scanMoment(s scanner) (*domain.Moment, error) {
	var m domain.Moment
	var tags string
	var createdAt int64
	err := s.Scan(&m.ID, &m.UserID, &m.Emotion, &tags, &m.Note, &m.DateKey, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tags != "" && tags != "[]" {
		if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &m, nil
}

// ─── Reflections ────────────────────────────────────────────────────────────

// GetReflection retrieves the reflection entry for one calendar day.
// Returns nil if the user has not started that day's reflection.
func (d *DB) GetReflection(userID, dateKey string) (*domain.ReflectionEntry, error) {
	row := d.db.QueryRow(
		`SELECT user_id, date_key, gratitude, highlight, intention, completed, updated_at
		 FROM reflections WHERE user_id = ? AND date_key = ?`, userID, dateKey,
	)
	return scanReflection(row)
}

// UpsertReflection writes a day's reflection entry.
func (d *DB) UpsertReflection(r domain.ReflectionEntry) error {
	_, err := d.db.Exec(
		`INSERT INTO reflections (user_id, date_key, gratitude, highlight, intention, completed, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, date_key) DO UPDATE SET
			gratitude=excluded.gratitude,
			highlight=excluded.highlight,
			intention=excluded.intention,
			completed=excluded.completed,
			updated_at=excluded.updated_at`,
		r.UserID, r.DateKey, r.Gratitude, r.Highlight, r.Intention,
		r.Completed, r.UpdatedAt.Unix(),
	)
	return err
}

// ListReflections returns all reflection entries for a user, newest day first.
func (d *DB) ListReflections(userID string) ([]domain.ReflectionEntry, error) {
	rows, err := d.db.Query(
		`SELECT user_id, date_key, gratitude, highlight, intention, completed, updated_at
		 FROM reflections WHERE user_id = ? ORDER BY date_key DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ReflectionEntry
	for rows.Next() {
		r, err := scanReflection(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *r)
	}
	return entries, rows.Err()
}

// CompletedReflectionDates returns the distinct date keys with a
// completed reflection, newest first.
func (d *DB) CompletedReflectionDates(userID string) ([]string, error) {
	rows, err := d.db.Query(
		`SELECT DISTINCT date_key FROM reflections
		 WHERE user_id = ? AND completed = 1 ORDER BY date_key DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		dates = append(dates, key)
	}
	return dates, rows.Err()
}

func scanReflection(s scanner) (*domain.ReflectionEntry, error) {
	var r domain.ReflectionEntry
	var updatedAt int64
	err := s.Scan(&r.UserID, &r.DateKey, &r.Gratitude, &r.Highlight, &r.Intention,
		&r.Completed, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &r, nil
}
