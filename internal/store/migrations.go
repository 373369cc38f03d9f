package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS members (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	group_id     TEXT NOT NULL,
	line_user_id TEXT,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(name, group_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id        TEXT NOT NULL,
	member_id       INTEGER NOT NULL REFERENCES members(id),
	content         TEXT NOT NULL,
	priority        TEXT NOT NULL DEFAULT 'normal' CHECK(priority IN ('low', 'normal', 'high')),
	due_date        DATETIME,
	status          TEXT NOT NULL DEFAULT 'open' CHECK(status IN ('open', 'done')),
	recur_kind      TEXT CHECK(recur_kind IN ('weekly', 'monthly', 'yearly')),
	recur_weekday   INTEGER,
	recur_month     INTEGER,
	recur_day       INTEGER,
	recur_cancelled INTEGER NOT NULL DEFAULT 0 CHECK(recur_cancelled IN (0, 1)),
	created_at      DATETIME NOT NULL,
	completed_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_members_group ON members(group_id);
CREATE INDEX IF NOT EXISTS idx_tasks_group ON tasks(group_id);
CREATE INDEX IF NOT EXISTS idx_tasks_member ON tasks(member_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_recur ON tasks(recur_kind, recur_cancelled);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS occurrences (
	id           TEXT PRIMARY KEY,
	rule_task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	occur_date   TEXT NOT NULL,
	task_id      INTEGER,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(rule_task_id, occur_date)
);

CREATE INDEX IF NOT EXISTS idx_occurrences_rule ON occurrences(rule_task_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
