package progression

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/lumen-app/lumen/internal/domain"
	"github.com/lumen-app/lumen/internal/infra/sqlite"
)

// Notifier queues progression notifications for the client, under a
// deliberately restrained policy: a hard daily cap and quiet hours.
// Notification failures never propagate — a missed toast must not fail
// a ledger or badge pass.
type Notifier struct {
	db     *sqlite.DB
	policy domain.NotificationPolicy
	now    func() time.Time
}

// NewNotifier creates a notifier with the default policy.
func NewNotifier(db *sqlite.DB) *Notifier {
	return &Notifier{db: db, policy: domain.DefaultNotificationPolicy(), now: time.Now}
}

// NewNotifierWithPolicy creates a notifier with a custom policy.
func NewNotifierWithPolicy(db *sqlite.DB, policy domain.NotificationPolicy) *Notifier {
	return &Notifier{db: db, policy: policy, now: time.Now}
}

// LevelUp queues a level-up notification.
func (n *Notifier) LevelUp(userID string, level int) {
	n.create(domain.Notification{
		UserID: userID,
		Type:   domain.NotifyLevelUp,
		Title:  fmt.Sprintf("Level %d — %s", level, ComputeLevelName(level)),
		Body:   "Your practice is growing. Keep going.",
	})
}

// BadgeEarned queues a badge-unlock notification.
func (n *Notifier) BadgeEarned(userID string, def domain.BadgeDef) {
	n.create(domain.Notification{
		UserID: userID,
		Type:   domain.NotifyBadgeEarned,
		Title:  fmt.Sprintf("%s %s earned", def.Icon, def.Name),
		Body:   fmt.Sprintf("You earned the %s badge.", def.Name),
	})
}

// Pending returns unshown notifications for the user.
func (n *Notifier) Pending(userID string, limit int) ([]domain.Notification, error) {
	return n.db.ListPendingNotifications(userID, limit)
}

// MarkShown marks a notification as shown.
func (n *Notifier) MarkShown(id int64) error {
	return n.db.MarkNotificationShown(id)
}

// create queues the notification if policy allows it; suppression and
// storage errors are logged, never returned.
func (n *Notifier) create(notif domain.Notification) {
	now := n.now()

	// The cap resets at the UTC day boundary, same calendar as DateKey.
	day := now.UTC()
	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	todayCount, err := n.db.NotificationCountSince(notif.UserID, startOfDay)
	if err != nil {
		log.Printf("[notify] count failed for %s: %v", notif.UserID, err)
		return
	}
	if todayCount >= n.policy.MaxPerDay {
		return // Suppressed — daily limit reached
	}
	if n.isQuietHour(now) {
		return // Suppressed — quiet hours
	}

	notif.CreatedAt = now
	notif.Shown = false
	if _, err := n.db.InsertNotification(notif); err != nil {
		log.Printf("[notify] insert failed for %s: %v", notif.UserID, err)
	}
}

// isQuietHour returns true if the given time falls within quiet hours.
func (n *Notifier) isQuietHour(t time.Time) bool {
	startHour, startMin := parseHHMM(n.policy.QuietStart)
	endHour, endMin := parseHHMM(n.policy.QuietEnd)

	timeMinutes := t.Hour()*60 + t.Minute()
	startMinutes := startHour*60 + startMin
	endMinutes := endHour*60 + endMin

	if startMinutes > endMinutes {
		// Wraps midnight: e.g., 22:00 – 08:00
		return timeMinutes >= startMinutes || timeMinutes < endMinutes
	}
	return timeMinutes >= startMinutes && timeMinutes < endMinutes
}

// parseHHMM parses "HH:MM" into hour and minute.
func parseHHMM(s string) (int, int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h, m
}
