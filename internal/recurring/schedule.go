// Package recurring generates concrete transactions from recurring templates.
package recurring

import (
	"time"

	"github.com/carson-networks/budget-ledger/internal/ledger"
)

// IsDue reports whether t is a template whose next occurrence is on or before today.
// Both are compared as calendar dates, each read in its own location.
func IsDue(t ledger.Transaction, today time.Time) bool {
	if !t.IsRecurring() {
		return false
	}
	return !calendarDate(t.Schedule.NextOccurrence).After(calendarDate(today))
}

// calendarDate keeps the year, month and day of t and drops its location.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SamePeriod reports whether the calendar dates of a and b fall in the same period of
// interval. Weeks start on Monday.
func SamePeriod(interval ledger.Interval, a, b time.Time) bool {
	a, b = calendarDate(a), calendarDate(b)
	switch interval {
	case ledger.Daily:
		return a.Equal(b)
	case ledger.Weekly:
		return weekStart(a).Equal(weekStart(b))
	case ledger.Monthly:
		return a.Year() == b.Year() && a.Month() == b.Month()
	case ledger.Yearly:
		return a.Year() == b.Year()
	default:
		return false
	}
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// FindDuplicate looks for a transaction that already covers this period of template:
// same payee, amount, category, account and type, dated in the same period as today.
// The template is a real transaction and takes part in the scan.
func FindDuplicate(template ledger.Transaction, existing []ledger.Transaction, today time.Time) (ledger.Transaction, bool) {
	if template.Schedule == nil {
		return ledger.Transaction{}, false
	}
	for _, t := range existing {
		if t.Payee == template.Payee &&
			t.Amount.Equal(template.Amount) &&
			t.CategoryID == template.CategoryID &&
			t.AccountID == template.AccountID &&
			t.Type == template.Type &&
			SamePeriod(template.Schedule.Interval, today, t.Date) {
			return t, true
		}
	}
	return ledger.Transaction{}, false
}

// Advance returns base moved forward by one interval. Months and years clamp to the
// last day of the target month, so Jan 31 becomes Feb 28 or 29 and Feb 29 becomes Feb 28.
func Advance(base time.Time, interval ledger.Interval) time.Time {
	switch interval {
	case ledger.Daily:
		return base.AddDate(0, 0, 1)
	case ledger.Weekly:
		return base.AddDate(0, 0, 7)
	case ledger.Monthly:
		return addMonths(base, 1)
	case ledger.Yearly:
		return addMonths(base, 12)
	default:
		return base
	}
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
