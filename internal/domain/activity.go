package domain

import "time"

// ─── Raw Activity Records ───────────────────────────────────────────────────
// Moments and reflections are written by the capture client. The
// progression engine treats them as source-of-truth inputs: it counts,
// walks, and aggregates them, but never rewrites history.

// Moment is a single logged feeling/observation.
type Moment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Emotion   string    `json:"emotion"`
	Tags      []string  `json:"tags,omitempty"`
	Note      string    `json:"note,omitempty"`
	DateKey   string    `json:"date_key"` // "2006-01-02" in UTC, derived from CreatedAt
	CreatedAt time.Time `json:"created_at"`
}

// HasDepth reports whether the moment carries at least one tag or a
// non-empty note. Depth moments feed the tags_added badge criteria.
func (m Moment) HasDepth() bool {
	return len(m.Tags) > 0 || m.Note != ""
}

// ReflectionEntry is the daily reflection record, keyed by user and
// calendar day. Completed becomes true exactly when all three answer
// slots are non-empty, and the record is mutated through the day until
// then.
type ReflectionEntry struct {
	UserID    string    `json:"user_id"`
	DateKey   string    `json:"date_key"`
	Gratitude string    `json:"gratitude,omitempty"`
	Highlight string    `json:"highlight,omitempty"`
	Intention string    `json:"intention,omitempty"`
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllAnswered reports whether every answer slot is filled in.
func (r ReflectionEntry) AllAnswered() bool {
	return r.Gratitude != "" && r.Highlight != "" && r.Intention != ""
}

// ReflectionSlot names one of the three daily answer slots.
type ReflectionSlot string

const (
	SlotGratitude ReflectionSlot = "gratitude"
	SlotHighlight ReflectionSlot = "highlight"
	SlotIntention ReflectionSlot = "intention"
)
