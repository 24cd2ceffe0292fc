package progression

import (
	"fmt"
	"log"

	"github.com/lumen-app/lumen/internal/infra/metrics"
	"github.com/lumen-app/lumen/internal/infra/sqlite"
)

// Daily quest XP amounts.
const (
	momentQuestXP     = 10
	reflectionQuestXP = 15
)

// QuestEngine detects day-scoped completion conditions and routes the
// grants through the XP ledger. It keeps no state of its own: the
// ledger's idempotency keys, scoped to (action, dateKey), make repeated
// invocations per day safe.
type QuestEngine struct {
	db     *sqlite.DB
	ledger *Ledger
}

// NewQuestEngine creates a daily quest engine.
func NewQuestEngine(db *sqlite.DB, ledger *Ledger) *QuestEngine {
	return &QuestEngine{db: db, ledger: ledger}
}

// ReconcileDailyQuests checks the day's quest conditions and grants XP
// for each one met. Returns the ledger keys granted by this invocation.
func (q *QuestEngine) ReconcileDailyQuests(userID, dateKey string) ([]string, error) {
	if _, err := ParseDateKey(dateKey); err != nil {
		return nil, err
	}

	var granted []string

	momentCount, err := q.db.CountMomentsOnDay(userID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("count moments: %w", err)
	}
	if momentCount > 0 {
		key := "MOMENT_COMPLETED_" + dateKey
		res, err := q.ledger.AwardXPOnce(userID, key, momentQuestXP,
			map[string]string{"source": "daily_quest", "quest": "moment"})
		if err != nil {
			// Fail-soft: the reflection quest is independent.
			log.Printf("[quests] moment grant failed for %s: %v", userID, err)
		} else if res.Awarded {
			metrics.QuestGrants.WithLabelValues("moment").Inc()
			granted = append(granted, key)
		}
	}

	reflection, err := q.db.GetReflection(userID, dateKey)
	if err != nil {
		return granted, fmt.Errorf("read reflection: %w", err)
	}
	if reflection != nil && reflection.Completed {
		key := "REFLECTION_COMPLETED_" + dateKey
		res, err := q.ledger.AwardXPOnce(userID, key, reflectionQuestXP,
			map[string]string{"source": "daily_quest", "quest": "reflection"})
		if err != nil {
			log.Printf("[quests] reflection grant failed for %s: %v", userID, err)
		} else if res.Awarded {
			metrics.QuestGrants.WithLabelValues("reflection").Inc()
			granted = append(granted, key)
		}
	}

	return granted, nil
}

// DailyStatus reports which of the day's quest conditions are currently met.
func (q *QuestEngine) DailyStatus(userID, dateKey string) (momentDone, reflectionDone bool, err error) {
	if _, err := ParseDateKey(dateKey); err != nil {
		return false, false, err
	}

	count, err := q.db.CountMomentsOnDay(userID, dateKey)
	if err != nil {
		return false, false, err
	}
	reflection, err := q.db.GetReflection(userID, dateKey)
	if err != nil {
		return false, false, err
	}
	return count > 0, reflection != nil && reflection.Completed, nil
}
