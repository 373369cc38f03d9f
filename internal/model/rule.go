package model

import (
	"fmt"
	"time"
)

// Recurrence rule kinds.
const (
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
	RecurYearly  = "yearly"
)

// RecurrenceRule defines a repeating schedule owned by a single task.
// Exactly one parameter set is meaningful per kind: Weekday for weekly,
// Day for monthly, Month+Day for yearly.
type RecurrenceRule struct {
	Kind      string       `json:"kind"`
	Weekday   time.Weekday `json:"weekday,omitempty"`
	Month     time.Month   `json:"month,omitempty"`
	Day       int          `json:"day,omitempty"`
	Cancelled bool         `json:"cancelled,omitempty"`
}

var weekdayNames = [...]string{"日", "一", "二", "三", "四", "五", "六"}

// Describe renders the rule the way users wrote it, e.g. 每週三 or 每月15日.
func (r *RecurrenceRule) Describe() string {
	switch r.Kind {
	case RecurWeekly:
		return "每週" + weekdayNames[int(r.Weekday)%7]
	case RecurMonthly:
		return fmt.Sprintf("每月%d日", r.Day)
	case RecurYearly:
		return fmt.Sprintf("每年%d月%d日", int(r.Month), r.Day)
	}
	return r.Kind
}
