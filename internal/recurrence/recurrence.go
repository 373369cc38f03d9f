// Package recurrence computes concrete occurrence dates from repeating
// schedule rules. It is purely computational; persisting generated
// occurrences (and keeping generation idempotent) is the engine's job.
package recurrence

import (
	"time"

	"github.com/chiehyu/grouptask/internal/model"
)

// DateOf truncates t to a calendar date at UTC midnight. All rule math
// operates on dates produced by this function.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Next returns the nearest date strictly after `after` that matches the
// rule. The second return is false when the rule kind is unknown or the
// rule can never fire (e.g. 每月0日).
//
// Short months are skipped, never clamped: a monthly rule for day 31
// anchored in January fires next on March 31, not February 28. Yearly
// rules targeting Feb 29 fire only in leap years.
func Next(rule model.RecurrenceRule, after time.Time) (time.Time, bool) {
	after = DateOf(after)

	switch rule.Kind {
	case model.RecurWeekly:
		ahead := (int(rule.Weekday) - int(after.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return after.AddDate(0, 0, ahead), true

	case model.RecurMonthly:
		if rule.Day < 1 || rule.Day > 31 {
			return time.Time{}, false
		}
		year, month := after.Year(), after.Month()
		for range 48 {
			candidate := time.Date(year, month, rule.Day, 0, 0, 0, 0, time.UTC)
			// Overflow past the end of a short month normalizes into the
			// next month; that month is skipped.
			if candidate.Day() == rule.Day && candidate.After(after) {
				return candidate, true
			}
			month++
			if month > time.December {
				month = time.January
				year++
			}
		}
		return time.Time{}, false

	case model.RecurYearly:
		if rule.Day < 1 || rule.Day > 31 || rule.Month < time.January || rule.Month > time.December {
			return time.Time{}, false
		}
		for year := after.Year(); year <= after.Year()+8; year++ {
			candidate := time.Date(year, rule.Month, rule.Day, 0, 0, 0, 0, time.UTC)
			if candidate.Month() == rule.Month && candidate.Day() == rule.Day && candidate.After(after) {
				return candidate, true
			}
		}
		return time.Time{}, false
	}

	return time.Time{}, false
}

// DueOn reports whether the rule fires exactly on the given date, i.e.
// the rule's next occurrence computed from the previous day equals it.
func DueOn(rule model.RecurrenceRule, date time.Time) bool {
	date = DateOf(date)
	next, ok := Next(rule, date.AddDate(0, 0, -1))
	return ok && next.Equal(date)
}
