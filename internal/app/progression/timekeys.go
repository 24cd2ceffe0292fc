package progression

import (
	"fmt"
	"time"

	"github.com/lumen-app/lumen/internal/domain"
)

// Time-window keys partition activity into reset boundaries. Stored keys
// are compared by string equality to decide daily and weekly resets, so
// both derivations are fixed: changing either would silently shift reset
// boundaries for every existing user.

const dateKeyLayout = "2006-01-02"

// DateKey returns the UTC calendar-day key for a timestamp, "2006-01-02".
func DateKey(ts time.Time) string {
	return ts.UTC().Format(dateKeyLayout)
}

// WeekKey returns the ISO-8601 week key for a timestamp, "YYYY-Www".
//
// The date is shifted to the Thursday of its week (Monday-start,
// Sunday counted as day 7), and weeks are numbered from January 1 of
// that Thursday's year. The Thursday shift makes week 1 the week that
// contains the year's first Thursday, which also settles the year-edge
// cases: Dec 29–31 may land in next year's W01 and Jan 1–3 in the
// previous year's W52/W53.
func WeekKey(ts time.Time) string {
	u := ts.UTC()
	d := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)

	isoWeekday := int(d.Weekday())
	if isoWeekday == 0 {
		isoWeekday = 7
	}
	thursday := d.AddDate(0, 0, 4-isoWeekday)

	yearStart := time.Date(thursday.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	daysSinceYearStart := int(thursday.Sub(yearStart) / (24 * time.Hour))
	week := daysSinceYearStart/7 + 1

	return fmt.Sprintf("%d-W%02d", thursday.Year(), week)
}

// ParseDateKey converts a "2006-01-02" key back to a UTC midnight time.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(dateKeyLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, domain.ErrBadDateKey
	}
	return t, nil
}
