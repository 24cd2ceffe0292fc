package progression

import (
	"fmt"
	"log"
	"time"

	"github.com/lumen-app/lumen/internal/domain"
	"github.com/lumen-app/lumen/internal/infra/metrics"
	"github.com/lumen-app/lumen/internal/infra/sqlite"
)

// maxTxAttempts bounds the retry loop around the award transaction.
const maxTxAttempts = 5

// Ledger applies idempotent XP grants. Each unique key is applied at
// most once, for the lifetime of the data: the written XP event is the
// durable idempotency marker.
type Ledger struct {
	db          *sqlite.DB
	notifier    *Notifier
	maxAttempts int
	now         func() time.Time
}

// NewLedger creates an XP ledger without notifications.
func NewLedger(db *sqlite.DB) *Ledger {
	return NewLedgerWithNotifier(db, nil)
}

// NewLedgerWithNotifier creates an XP ledger that queues a level-up
// notification whenever a grant raises the level.
func NewLedgerWithNotifier(db *sqlite.DB, notifier *Notifier) *Ledger {
	return &Ledger{db: db, notifier: notifier, maxAttempts: maxTxAttempts, now: time.Now}
}

// AwardXPOnce grants amount XP to the user under the idempotency key.
//
// Invalid input (empty user, empty key, non-positive amount) is a no-op
// returning a not-awarded result, never an error. A key that has already
// been applied also returns not-awarded. On a write conflict the whole
// sequence is retried from scratch a bounded number of times; exhaustion
// surfaces ErrTxConflict, which the caller may safely retry — the
// operation is idempotent end to end.
func (l *Ledger) AwardXPOnce(userID, key string, amount int64, metadata map[string]string) (domain.AwardResult, error) {
	return l.AwardXPOnceAt(userID, key, amount, metadata, l.now())
}

// AwardXPOnceAt is AwardXPOnce with an explicit clock, for callers that
// need deterministic week boundaries (and for tests).
func (l *Ledger) AwardXPOnceAt(userID, key string, amount int64, metadata map[string]string, now time.Time) (domain.AwardResult, error) {
	if userID == "" || key == "" || amount <= 0 {
		return domain.AwardResult{Awarded: false}, nil
	}

	var result domain.AwardResult
	var lastErr error

	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		if attempt > 0 {
			metrics.TxRetries.Inc()
		}

		res, err := l.tryAward(userID, key, amount, metadata, now)
		if err == nil {
			result = res
			lastErr = nil
			break
		}
		if !sqlite.IsBusy(err) {
			return domain.AwardResult{}, err
		}
		lastErr = err
	}
	if lastErr != nil {
		return domain.AwardResult{}, fmt.Errorf("award %q: %w", key, domain.ErrTxConflict)
	}

	if result.Awarded {
		metrics.XPAwards.Inc()
		metrics.XPPoints.Add(float64(amount))
		if result.LeveledUp {
			metrics.LevelUps.Inc()
			if l.notifier != nil {
				l.notifier.LevelUp(userID, result.Level)
			}
		}
	} else {
		metrics.XPDuplicates.Inc()
	}
	return result, nil
}

// tryAward runs one atomic check-and-apply sequence.
func (l *Ledger) tryAward(userID, key string, amount int64, metadata map[string]string, now time.Time) (domain.AwardResult, error) {
	weekKey := WeekKey(now)
	var result domain.AwardResult

	err := l.db.WithTx(func(tx *sqlite.Tx) error {
		// 1. The event's existence is the sole idempotency guard.
		applied, err := tx.XPEventExists(key)
		if err != nil {
			return fmt.Errorf("check event: %w", err)
		}
		if applied {
			result = domain.AwardResult{Awarded: false}
			return nil
		}

		// 2. Lazily initialize the stats document.
		if err := tx.EnsureStats(userID); err != nil {
			return fmt.Errorf("ensure stats: %w", err)
		}
		stats, err := tx.GetStats(userID)
		if err != nil {
			return fmt.Errorf("read stats: %w", err)
		}

		// 3. A stale week key means the weekly counter restarts at zero.
		weekly := stats.WeeklyXP
		if stats.WeeklyKey != weekKey {
			weekly = 0
		}

		// 4. Derive the new counters and level.
		newAllTime := stats.AllTimeXP + amount
		newWeekly := weekly + amount
		newLevel := ComputeLevel(newAllTime)

		// 5. The event write is the durable idempotency marker.
		err = tx.InsertXPEvent(domain.XPEvent{
			Key:       key,
			UserID:    userID,
			Amount:    amount,
			WeekKey:   weekKey,
			Metadata:  metadata,
			CreatedAt: now,
		})
		if err == domain.ErrDuplicateXPEvent {
			// Lost a race to another writer between steps 1 and 5.
			result = domain.AwardResult{Awarded: false}
			return nil
		}
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		// 6. Merge-write only the ledger-owned fields.
		err = tx.UpdateLedgerFields(userID, newAllTime, newWeekly, weekKey,
			newLevel, ComputeLevelName(newLevel))
		if err != nil {
			return fmt.Errorf("update stats: %w", err)
		}

		result = domain.AwardResult{
			Awarded:   true,
			Level:     newLevel,
			LeveledUp: newLevel > stats.Level,
		}
		return nil
	})
	if err != nil {
		return domain.AwardResult{}, err
	}

	if result.Awarded && result.LeveledUp {
		log.Printf("[ledger] user %s reached level %d (%s)", userID, result.Level, ComputeLevelName(result.Level))
	}
	return result, nil
}

// EnsureStatsDoc lazily creates the user's stats document.
// Safe to call on every session start.
func (l *Ledger) EnsureStatsDoc(userID string) error {
	if userID == "" {
		return nil
	}
	return l.db.EnsureStats(userID)
}

// Stats returns the user's current stats document, initializing it if absent.
func (l *Ledger) Stats(userID string) (*domain.StatsDoc, error) {
	if err := l.db.EnsureStats(userID); err != nil {
		return nil, err
	}
	return l.db.GetStats(userID)
}

// History returns a user's most recent XP events.
func (l *Ledger) History(userID string, limit int) ([]domain.XPEvent, error) {
	return l.db.ListXPEvents(userID, limit)
}
