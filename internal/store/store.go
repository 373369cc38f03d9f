package store

import (
	"context"
	"errors"
	"time"

	"github.com/chiehyu/grouptask/internal/model"
)

// ErrNotFound is wrapped by lookups and single-row writes that matched
// nothing. Callers branch with errors.Is.
var ErrNotFound = errors.New("not found")

// TaskFilter controls filtering for task listings. GroupID is always
// required; tasks never cross group scopes.
type TaskFilter struct {
	GroupID  string
	MemberID *int64
	Status   *string // "open", "done", or nil (all)
}

// UpdateFields carries the task fields an update actually provides.
// Nil means "leave unchanged". The store applies all provided fields in
// one statement so concurrent updates cannot interleave per-field.
type UpdateFields struct {
	Content  *string
	Priority *string
	DueDate  *time.Time
}

// Store is the persistence surface for members, tasks, and the
// occurrence ledger that keeps recurrence generation idempotent.
type Store interface {
	// === Members ===

	EnsureMember(ctx context.Context, name, groupID string) (*model.Member, error)
	GetMemberByName(ctx context.Context, name, groupID string) (*model.Member, error)
	LinkMemberLineID(ctx context.Context, name, groupID, lineUserID string) error

	// === Tasks ===

	CreateTask(ctx context.Context, task *model.Task) error
	CreateTasks(ctx context.Context, tasks []*model.Task) error
	GetTaskByID(ctx context.Context, id int64) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	CompleteTask(ctx context.Context, id int64, at time.Time) (changed bool, err error)
	UpdateTaskFields(ctx context.Context, id int64, fields UpdateFields) error
	DeleteTask(ctx context.Context, id int64) error
	CancelRecurrence(ctx context.Context, id int64) error

	// === Recurrence ===

	GetActiveRuleTasks(ctx context.Context) ([]model.Task, error)
	CreateOccurrence(ctx context.Context, ruleTask *model.Task, date time.Time) (created *model.Task, err error)
}
