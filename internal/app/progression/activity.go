package progression

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-app/lumen/internal/domain"
	"github.com/lumen-app/lumen/internal/infra/sqlite"
)

// Recorder is the thin ingestion surface the capture client writes
// through. It owns none of the derived state — it appends raw activity
// records that reconciliation later counts.
type Recorder struct {
	db  *sqlite.DB
	now func() time.Time
}

// NewRecorder creates an activity recorder.
func NewRecorder(db *sqlite.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// LogMoment appends a moment record and returns it with its assigned ID
// and day key.
func (rec *Recorder) LogMoment(userID, emotion string, tags []string, note string) (domain.Moment, error) {
	return rec.LogMomentAt(userID, emotion, tags, note, rec.now())
}

// LogMomentAt is LogMoment with an explicit timestamp.
func (rec *Recorder) LogMomentAt(userID, emotion string, tags []string, note string, at time.Time) (domain.Moment, error) {
	if userID == "" {
		return domain.Moment{}, fmt.Errorf("user id required")
	}
	if emotion == "" {
		return domain.Moment{}, fmt.Errorf("emotion required")
	}

	m := domain.Moment{
		ID:        uuid.NewString(),
		UserID:    userID,
		Emotion:   emotion,
		Tags:      tags,
		Note:      note,
		DateKey:   DateKey(at),
		CreatedAt: at,
	}
	if err := rec.db.InsertMoment(m); err != nil {
		return domain.Moment{}, fmt.Errorf("insert moment: %w", err)
	}
	return m, nil
}

// SaveReflectionAnswer writes one answer slot of the day's reflection.
// Completed flips to true exactly when all three slots are non-empty;
// it is recomputed on every write, so clearing a slot before completion
// keeps the entry open.
func (rec *Recorder) SaveReflectionAnswer(userID, dateKey string, slot domain.ReflectionSlot, text string) (domain.ReflectionEntry, error) {
	if _, err := ParseDateKey(dateKey); err != nil {
		return domain.ReflectionEntry{}, err
	}

	entry, err := rec.db.GetReflection(userID, dateKey)
	if err != nil {
		return domain.ReflectionEntry{}, fmt.Errorf("read reflection: %w", err)
	}
	if entry == nil {
		entry = &domain.ReflectionEntry{UserID: userID, DateKey: dateKey}
	}

	switch slot {
	case domain.SlotGratitude:
		entry.Gratitude = text
	case domain.SlotHighlight:
		entry.Highlight = text
	case domain.SlotIntention:
		entry.Intention = text
	default:
		return domain.ReflectionEntry{}, domain.ErrUnknownSlot
	}

	entry.Completed = entry.AllAnswered()
	entry.UpdatedAt = rec.now()

	if err := rec.db.UpsertReflection(*entry); err != nil {
		return domain.ReflectionEntry{}, fmt.Errorf("write reflection: %w", err)
	}
	return *entry, nil
}

// Reflection returns the day's reflection entry, or nil if not started.
func (rec *Recorder) Reflection(userID, dateKey string) (*domain.ReflectionEntry, error) {
	if _, err := ParseDateKey(dateKey); err != nil {
		return nil, err
	}
	return rec.db.GetReflection(userID, dateKey)
}

// Moments returns all of the user's moments, newest first.
func (rec *Recorder) Moments(userID string) ([]domain.Moment, error) {
	return rec.db.ListMoments(userID)
}

// MarkPatternsViewed bumps the externally-owned patterns counter that
// feeds the patterns_viewed badge criteria.
func (rec *Recorder) MarkPatternsViewed(userID string) error {
	if err := rec.db.EnsureStats(userID); err != nil {
		return err
	}
	return rec.db.IncrementPatternsViewed(userID)
}
