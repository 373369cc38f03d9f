package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chiehyu/grouptask/internal/model"
)

const taskSelect = `
	SELECT tasks.*, members.name AS member_name
	FROM tasks
	JOIN members ON members.id = tasks.member_id`

// taskOrder is the one deterministic listing order: open before done,
// then due date ascending with undated tasks last, then priority high
// to low, then creation order.
const taskOrder = `
	ORDER BY
		CASE tasks.status WHEN 'open' THEN 0 ELSE 1 END,
		tasks.due_date IS NULL,
		tasks.due_date ASC,
		CASE tasks.priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END,
		tasks.id ASC`

// CreateTask inserts a new task and fills its assigned ID and CreatedAt.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	return s.insertTask(ctx, s.db, task)
}

// CreateTasks inserts a batch of tasks in one transaction. Either every
// task persists or none does.
func (s *SQLiteStore) CreateTasks(ctx context.Context, tasks []*model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, task := range tasks {
		if err := s.insertTask(ctx, tx, task); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *SQLiteStore) insertTask(ctx context.Context, db execer, task *model.Task) error {
	if strings.TrimSpace(task.Content) == "" {
		return fmt.Errorf("task content must not be empty")
	}
	if task.Status == "" {
		task.Status = model.TaskStatusOpen
	}
	if !model.ValidPriority(task.Priority) {
		task.Priority = model.PriorityNormal
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	kind, weekday, month, day, cancelled := recurColumns(task.Recurrence)
	result, err := db.ExecContext(ctx, `
		INSERT INTO tasks (
			group_id, member_id, content, priority, due_date, status,
			recur_kind, recur_weekday, recur_month, recur_day, recur_cancelled,
			created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.GroupID, task.MemberID, task.Content, task.Priority, task.DueDate, task.Status,
		kind, weekday, month, day, cancelled,
		task.CreatedAt, task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading task id: %w", err)
	}
	task.ID = id
	return nil
}

// GetTaskByID retrieves a single task by ID, including its member name.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id int64) (*model.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, taskSelect+" WHERE tasks.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}
	task := row.toTask()
	return &task, nil
}

// GetTasks retrieves tasks matching the filter in the documented order.
func (s *SQLiteStore) GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	conditions := []string{"tasks.group_id = ?"}
	args := []interface{}{filter.GroupID}

	if filter.MemberID != nil {
		conditions = append(conditions, "tasks.member_id = ?")
		args = append(args, *filter.MemberID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "tasks.status = ?")
		args = append(args, *filter.Status)
	}

	query := taskSelect + " WHERE " + strings.Join(conditions, " AND ") + taskOrder

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

// CompleteTask transitions a task open → done with a compare-and-set so
// two racing completions update the row exactly once. Returns changed
// false (without error) when the task exists but was already done.
func (s *SQLiteStore) CompleteTask(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, completed_at = ? WHERE id = ? AND status = ?",
		model.TaskStatusDone, at.UTC(), id, model.TaskStatusOpen,
	)
	if err != nil {
		return false, fmt.Errorf("completing task %d: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return true, nil
	}

	// Distinguish "already done" from "no such task".
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM tasks WHERE id = ?", id); err != nil {
		return false, fmt.Errorf("checking task %d: %w", id, err)
	}
	if count == 0 {
		return false, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return false, nil
}

// UpdateTaskFields applies only the provided fields in a single statement.
func (s *SQLiteStore) UpdateTaskFields(ctx context.Context, id int64, fields UpdateFields) error {
	var sets []string
	var args []interface{}

	if fields.Content != nil {
		if strings.TrimSpace(*fields.Content) == "" {
			return fmt.Errorf("task content must not be empty")
		}
		sets = append(sets, "content = ?")
		args = append(args, *fields.Content)
	}
	if fields.Priority != nil {
		if !model.ValidPriority(*fields.Priority) {
			return fmt.Errorf("unknown priority %q", *fields.Priority)
		}
		sets = append(sets, "priority = ?")
		args = append(args, *fields.Priority)
	}
	if fields.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, fields.DueDate.UTC())
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating task %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteTask removes a task by ID. The occurrence ledger rows cascade.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

// CancelRecurrence marks a rule cancelled. The caller has already
// verified the task exists and carries a rule.
func (s *SQLiteStore) CancelRecurrence(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET recur_cancelled = 1 WHERE id = ? AND recur_kind IS NOT NULL", id)
	if err != nil {
		return fmt.Errorf("cancelling recurrence for task %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetActiveRuleTasks returns every rule-bearing task whose rule has not
// been cancelled, across all group scopes.
func (s *SQLiteStore) GetActiveRuleTasks(ctx context.Context) ([]model.Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows,
		taskSelect+" WHERE tasks.recur_kind IS NOT NULL AND tasks.recur_cancelled = 0"+taskOrder)
	if err != nil {
		return nil, fmt.Errorf("querying rule tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

// CreateOccurrence records (rule, date) in the ledger and creates the
// occurrence task in the same transaction. The ledger's unique
// constraint is the idempotence guarantee: if the pair already exists
// (a duplicate trigger run, or two runs racing) no task is created and
// nil is returned.
func (s *SQLiteStore) CreateOccurrence(ctx context.Context, ruleTask *model.Task, date time.Time) (*model.Task, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	occurDate := date.UTC().Format(time.DateOnly)
	result, err := tx.ExecContext(ctx, `
		INSERT INTO occurrences (id, rule_task_id, occur_date)
		VALUES (?, ?, ?)
		ON CONFLICT(rule_task_id, occur_date) DO NOTHING`,
		uuid.New().String(), ruleTask.ID, occurDate,
	)
	if err != nil {
		return nil, fmt.Errorf("recording occurrence: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, nil
	}

	due := date.UTC()
	task := &model.Task{
		GroupID:  ruleTask.GroupID,
		MemberID: ruleTask.MemberID,
		Content:  ruleTask.Content,
		Priority: ruleTask.Priority,
		DueDate:  &due,
		Status:   model.TaskStatusOpen,
	}
	if err := s.insertTask(ctx, tx, task); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE occurrences SET task_id = ? WHERE rule_task_id = ? AND occur_date = ?",
		task.ID, ruleTask.ID, occurDate,
	); err != nil {
		return nil, fmt.Errorf("linking occurrence task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing occurrence: %w", err)
	}

	task.MemberName = ruleTask.MemberName
	return task, nil
}

var _ Store = (*SQLiteStore)(nil)
var _ execer = (*sqlx.Tx)(nil)
