package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/chiehyu/grouptask/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Queue writers instead of surfacing SQLITE_BUSY to racing requests.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// taskRow is the scan target for tasks joined with their member name.
type taskRow struct {
	ID             int64      `db:"id"`
	GroupID        string     `db:"group_id"`
	MemberID       int64      `db:"member_id"`
	Content        string     `db:"content"`
	Priority       string     `db:"priority"`
	DueDate        *time.Time `db:"due_date"`
	Status         string     `db:"status"`
	RecurKind      *string    `db:"recur_kind"`
	RecurWeekday   *int       `db:"recur_weekday"`
	RecurMonth     *int       `db:"recur_month"`
	RecurDay       *int       `db:"recur_day"`
	RecurCancelled int        `db:"recur_cancelled"`
	CreatedAt      time.Time  `db:"created_at"`
	CompletedAt    *time.Time `db:"completed_at"`
	MemberName     string     `db:"member_name"`
}

func (r taskRow) toTask() model.Task {
	t := model.Task{
		ID:          r.ID,
		GroupID:     r.GroupID,
		MemberID:    r.MemberID,
		Content:     r.Content,
		Priority:    r.Priority,
		DueDate:     r.DueDate,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
		MemberName:  r.MemberName,
	}
	if r.RecurKind != nil {
		rule := &model.RecurrenceRule{
			Kind:      *r.RecurKind,
			Cancelled: r.RecurCancelled != 0,
		}
		if r.RecurWeekday != nil {
			rule.Weekday = time.Weekday(*r.RecurWeekday)
		}
		if r.RecurMonth != nil {
			rule.Month = time.Month(*r.RecurMonth)
		}
		if r.RecurDay != nil {
			rule.Day = *r.RecurDay
		}
		t.Recurrence = rule
	}
	return t
}

// recurColumns flattens an optional rule into its column values.
func recurColumns(rule *model.RecurrenceRule) (kind *string, weekday, month, day *int, cancelled int) {
	if rule == nil {
		return nil, nil, nil, nil, 0
	}
	k := rule.Kind
	w, m, d := int(rule.Weekday), int(rule.Month), rule.Day
	if rule.Cancelled {
		cancelled = 1
	}
	return &k, &w, &m, &d, cancelled
}
