package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Task status constants.
const (
	TaskStatusOpen = "open"
	TaskStatusDone = "done"
)

// Task priority constants.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// ValidPriority reports whether p is one of the three known priorities.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// Task is one actionable item tracked inside a chat group.
type Task struct {
	ID          int64           `json:"id" db:"id"`
	GroupID     string          `json:"group_id" db:"group_id"`
	MemberID    int64           `json:"member_id" db:"member_id"`
	Content     string          `json:"content" db:"content"`
	Priority    string          `json:"priority" db:"priority"`
	DueDate     *time.Time      `json:"due_date,omitempty" db:"due_date"`
	Status      string          `json:"status" db:"status"`
	Recurrence  *RecurrenceRule `json:"recurrence,omitempty" db:"-"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`

	// MemberName is populated by queries that join with members.
	MemberName string `json:"member_name,omitempty" db:"-"`
}

// IsRecurring reports whether the task carries a non-cancelled rule.
func (t *Task) IsRecurring() bool {
	return t.Recurrence != nil && !t.Recurrence.Cancelled
}

// Ref renders the task's user-facing identifier, e.g. "T-12".
func (t *Task) Ref() string {
	return FormatTaskID(t.ID)
}

// FormatTaskID renders a numeric task id as the T-<n> token users type.
func FormatTaskID(id int64) string {
	return fmt.Sprintf("T-%d", id)
}

var taskIDPattern = regexp.MustCompile(`^[Tt]-(\d+)$`)

// ParseTaskID parses a T-<n> token. Returns false if the token does not
// match the identifier format.
func ParseTaskID(token string) (int64, bool) {
	m := taskIDPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
