// Package engine applies validated commands against the task store.
// It owns every state transition and invariant; transports parse, the
// store persists, and this package decides.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chiehyu/grouptask/internal/command"
	"github.com/chiehyu/grouptask/internal/model"
	"github.com/chiehyu/grouptask/internal/recurrence"
	"github.com/chiehyu/grouptask/internal/store"
)

// Typed failures returned to the formatter. Resolution errors carry the
// offending token via fmt wrapping; branch with errors.Is.
var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrNotRecurring    = errors.New("task is not recurring")
	ErrInvalidPriority = errors.New("invalid priority")
)

// Engine is the task lifecycle engine. One instance serves all groups;
// every operation is scoped by the acting group id.
type Engine struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

// New creates an Engine over the given store.
func New(s store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store: s,
		log:   logger,
		now:   time.Now,
	}
}

// CompleteResult reports a completion. AlreadyDone marks the idempotent
// case: the task was done before this call, which is still a success.
type CompleteResult struct {
	Task        *model.Task
	AlreadyDone bool
}

// RecurringResult reports a created recurring task and its first
// upcoming occurrence date.
type RecurringResult struct {
	Task *model.Task
	Next time.Time
}

// Create adds one task for the mentioned member, registering the member
// in the group on first mention.
func (e *Engine) Create(ctx context.Context, groupID string, cmd command.Create) (*model.Task, error) {
	member, err := e.store.EnsureMember(ctx, cmd.Mention, groupID)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		GroupID:  groupID,
		MemberID: member.ID,
		Content:  cmd.Content,
		Priority: cmd.Priority,
		DueDate:  cmd.DueDate,
		Status:   model.TaskStatusOpen,
	}
	if err := e.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	task.MemberName = member.Name

	e.log.Info("task created", "group", groupID, "task", task.Ref(), "member", member.Name)
	return task, nil
}

// BatchCreate adds several tasks for one member. The store persists the
// whole batch in one transaction; a failure leaves nothing behind.
func (e *Engine) BatchCreate(ctx context.Context, groupID string, cmd command.BatchCreate) ([]model.Task, error) {
	member, err := e.store.EnsureMember(ctx, cmd.Mention, groupID)
	if err != nil {
		return nil, err
	}

	tasks := make([]*model.Task, 0, len(cmd.Lines))
	for _, line := range cmd.Lines {
		tasks = append(tasks, &model.Task{
			GroupID:  groupID,
			MemberID: member.ID,
			Content:  line.Content,
			Priority: line.Priority,
			DueDate:  line.DueDate,
			Status:   model.TaskStatusOpen,
		})
	}
	if err := e.store.CreateTasks(ctx, tasks); err != nil {
		return nil, err
	}

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		t.MemberName = member.Name
		out = append(out, *t)
	}

	e.log.Info("batch created", "group", groupID, "member", member.Name, "count", len(out))
	return out, nil
}

// CreateRecurring adds the rule-bearing task. Occurrences are produced
// by the generation trigger, never at creation time, so the first one
// lands on the rule's next date strictly after today.
func (e *Engine) CreateRecurring(ctx context.Context, groupID string, cmd command.CreateRecurring) (*RecurringResult, error) {
	member, err := e.store.EnsureMember(ctx, cmd.Mention, groupID)
	if err != nil {
		return nil, err
	}

	rule := cmd.Rule
	next, ok := recurrence.Next(rule, e.now())
	if !ok {
		return nil, fmt.Errorf("rule %s can never fire", rule.Describe())
	}

	task := &model.Task{
		GroupID:    groupID,
		MemberID:   member.ID,
		Content:    cmd.Content,
		Priority:   cmd.Priority,
		Status:     model.TaskStatusOpen,
		Recurrence: &rule,
	}
	if err := e.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	task.MemberName = member.Name

	e.log.Info("recurring task created",
		"group", groupID, "task", task.Ref(), "rule", rule.Describe(), "next", next.Format(time.DateOnly))
	return &RecurringResult{Task: task, Next: next}, nil
}

// CancelRecurring marks a task's rule cancelled. Cancelling an already
// cancelled rule is a no-op success.
func (e *Engine) CancelRecurring(ctx context.Context, groupID string, taskID int64) (*model.Task, error) {
	task, err := e.getScoped(ctx, groupID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Recurrence == nil {
		return nil, fmt.Errorf("%s: %w", task.Ref(), ErrNotRecurring)
	}
	if task.Recurrence.Cancelled {
		return task, nil
	}

	if err := e.store.CancelRecurrence(ctx, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", model.FormatTaskID(taskID), ErrTaskNotFound)
		}
		return nil, err
	}
	task.Recurrence.Cancelled = true

	e.log.Info("recurrence cancelled", "group", groupID, "task", task.Ref())
	return task, nil
}

// Complete transitions a task to done. Completing a done task returns
// the unchanged record with AlreadyDone set; done is terminal and there
// is no path back to open.
func (e *Engine) Complete(ctx context.Context, groupID string, taskID int64) (*CompleteResult, error) {
	if _, err := e.getScoped(ctx, groupID, taskID); err != nil {
		return nil, err
	}

	changed, err := e.store.CompleteTask(ctx, taskID, e.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", model.FormatTaskID(taskID), ErrTaskNotFound)
		}
		return nil, err
	}

	task, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if changed {
		e.log.Info("task completed", "group", groupID, "task", task.Ref())
	}
	return &CompleteResult{Task: task, AlreadyDone: !changed}, nil
}

// Update mutates only the provided fields. Priority is re-validated
// here because the engine is also driven by non-chat callers.
func (e *Engine) Update(ctx context.Context, groupID string, cmd command.Update) (*model.Task, error) {
	if cmd.Priority != nil && !model.ValidPriority(*cmd.Priority) {
		return nil, fmt.Errorf("%q: %w", *cmd.Priority, ErrInvalidPriority)
	}

	if _, err := e.getScoped(ctx, groupID, cmd.TaskID); err != nil {
		return nil, err
	}

	fields := store.UpdateFields{
		Content:  cmd.Content,
		Priority: cmd.Priority,
		DueDate:  cmd.DueDate,
	}
	if err := e.store.UpdateTaskFields(ctx, cmd.TaskID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", model.FormatTaskID(cmd.TaskID), ErrTaskNotFound)
		}
		return nil, err
	}

	task, err := e.store.GetTaskByID(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	e.log.Info("task updated", "group", groupID, "task", task.Ref())
	return task, nil
}

// Delete removes a task permanently, from any state.
func (e *Engine) Delete(ctx context.Context, groupID string, taskID int64) (*model.Task, error) {
	task, err := e.getScoped(ctx, groupID, taskID)
	if err != nil {
		return nil, err
	}

	if err := e.store.DeleteTask(ctx, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", model.FormatTaskID(taskID), ErrTaskNotFound)
		}
		return nil, err
	}

	e.log.Info("task deleted", "group", groupID, "task", task.Ref())
	return task, nil
}

// List returns the group's tasks in the documented order, optionally
// narrowed to one member. The member filter resolves strictly: an
// unknown name is an error, never an empty listing.
func (e *Engine) List(ctx context.Context, groupID, mention string) ([]model.Task, error) {
	filter := store.TaskFilter{GroupID: groupID}
	if mention != "" {
		member, err := e.store.GetMemberByName(ctx, mention, groupID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%s: %w", mention, ErrMemberNotFound)
			}
			return nil, err
		}
		filter.MemberID = &member.ID
	}
	return e.store.GetTasks(ctx, filter)
}

// Detail returns one task's full record.
func (e *Engine) Detail(ctx context.Context, groupID string, taskID int64) (*model.Task, error) {
	return e.getScoped(ctx, groupID, taskID)
}

// GenerateOccurrences scans all non-cancelled rules across every group
// and creates one OPEN task per rule due on the given date. The
// occurrence ledger makes repeated or concurrent runs for the same date
// produce each occurrence exactly once.
func (e *Engine) GenerateOccurrences(ctx context.Context, today time.Time) ([]model.Task, error) {
	today = recurrence.DateOf(today)

	rules, err := e.store.GetActiveRuleTasks(ctx)
	if err != nil {
		return nil, err
	}

	var created []model.Task
	for _, ruleTask := range rules {
		if !recurrence.DueOn(*ruleTask.Recurrence, today) {
			continue
		}
		task, err := e.store.CreateOccurrence(ctx, &ruleTask, today)
		if err != nil {
			return created, fmt.Errorf("generating occurrence for %s: %w", ruleTask.Ref(), err)
		}
		if task == nil {
			// Already generated for this date.
			continue
		}
		created = append(created, *task)
	}

	e.log.Info("occurrence generation finished",
		"date", today.Format(time.DateOnly), "rules", len(rules), "created", len(created))
	return created, nil
}

// getScoped loads a task and enforces group isolation: a task outside
// the acting group is indistinguishable from a missing one.
func (e *Engine) getScoped(ctx context.Context, groupID string, taskID int64) (*model.Task, error) {
	task, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", model.FormatTaskID(taskID), ErrTaskNotFound)
		}
		return nil, err
	}
	if task.GroupID != groupID {
		return nil, fmt.Errorf("%s: %w", model.FormatTaskID(taskID), ErrTaskNotFound)
	}
	return task, nil
}
