package progression

import (
	"log"
	"time"

	"github.com/lumen-app/lumen/internal/domain"
	"github.com/lumen-app/lumen/internal/infra/sqlite"
)

// Service bundles the progression engine's parts behind one handle and
// provides the session-start entry point.
type Service struct {
	Ledger     *Ledger
	Reconciler *Reconciler
	Badges     *BadgeEngine
	Quests     *QuestEngine
	Recorder   *Recorder
	Notifier   *Notifier
	now        func() time.Time
}

// NewService wires the full engine over one database with the default
// notification policy.
func NewService(db *sqlite.DB) *Service {
	return NewServiceWithPolicy(db, domain.DefaultNotificationPolicy())
}

// NewServiceWithPolicy wires the full engine with a configured
// notification policy.
func NewServiceWithPolicy(db *sqlite.DB, policy domain.NotificationPolicy) *Service {
	notifier := NewNotifierWithPolicy(db, policy)
	ledger := NewLedgerWithNotifier(db, notifier)
	return &Service{
		Ledger:     ledger,
		Reconciler: NewReconciler(db),
		Badges:     NewBadgeEngine(db, ledger, notifier),
		Quests:     NewQuestEngine(db, ledger),
		Recorder:   NewRecorder(db),
		Notifier:   notifier,
		now:        time.Now,
	}
}

// ReconcileAll runs the full session-start pass: weekly reset, stats
// recompute, badge evaluation, and today's daily quests, in that order.
// Each phase is fail-soft — a failure is logged and the remaining
// phases still run, since a partial pass beats none. Returns the stats
// update when the recompute succeeded.
func (s *Service) ReconcileAll(userID string) (*domain.StatsUpdate, error) {
	if err := s.Ledger.EnsureStatsDoc(userID); err != nil {
		return nil, err
	}

	if err := s.Reconciler.ReconcileWeeklyReset(userID); err != nil {
		log.Printf("[reconcile] weekly reset failed for %s: %v", userID, err)
	}

	update, err := s.Reconciler.ReconcileStatsFromData(userID)
	if err != nil {
		log.Printf("[reconcile] stats recompute failed for %s: %v", userID, err)
	}

	if _, err := s.Badges.ReconcileBadges(userID); err != nil {
		log.Printf("[reconcile] badge pass failed for %s: %v", userID, err)
	}

	if _, err := s.Quests.ReconcileDailyQuests(userID, DateKey(s.now())); err != nil {
		log.Printf("[reconcile] daily quests failed for %s: %v", userID, err)
	}

	return update, nil
}
