// Package command turns raw chat messages into typed commands. Anything
// that reaches the lifecycle engine has already passed every field
// validation here; malformed input is rejected with a ParseError.
package command

import (
	"fmt"
	"time"

	"github.com/chiehyu/grouptask/internal/model"
)

// Marker is the leading character that makes a message a command.
const Marker = "#"

// Command keywords (the stable human-facing surface).
const (
	KeywordCreate          = "新增"
	KeywordBatchCreate     = "批量新增"
	KeywordCreateRecurring = "定期"
	KeywordCancelRecurring = "取消定期"
	KeywordComplete        = "完成"
	KeywordList            = "列表"
	KeywordUpdate          = "修改"
	KeywordDelete          = "刪除"
	KeywordDetail          = "詳情"
	KeywordDivination      = "擲筊"
	KeywordLottery         = "抽籤"
	KeywordHelp            = "幫助"
)

// Command is the closed set of parsed chat commands.
type Command interface {
	isCommand()
}

// Create adds one task for the mentioned member.
type Create struct {
	Mention  string
	Content  string
	Priority string
	DueDate  *time.Time
}

// BatchLine is one sub-task line of a batch create.
type BatchLine struct {
	Content  string
	Priority string
	DueDate  *time.Time
}

// BatchCreate adds several tasks for one member, all-or-nothing.
type BatchCreate struct {
	Mention string
	Lines   []BatchLine
}

// CreateRecurring adds a rule-bearing task for the mentioned member.
type CreateRecurring struct {
	Mention  string
	Content  string
	Priority string
	Rule     model.RecurrenceRule
}

// CancelRecurring stops a recurring task from producing occurrences.
type CancelRecurring struct {
	TaskID int64
}

// Complete marks a task done.
type Complete struct {
	TaskID int64
}

// List shows the group's tasks, optionally one member's.
type List struct {
	Mention string // empty = whole group
}

// Update mutates only the provided fields of a task.
type Update struct {
	TaskID   int64
	Content  *string
	Priority *string
	DueDate  *time.Time
}

// Delete removes a task permanently.
type Delete struct {
	TaskID int64
}

// Detail shows one task's full record.
type Detail struct {
	TaskID int64
}

// Divination answers a yes/no question with a jiaobei draw.
type Divination struct {
	Question string
}

// Lottery picks one option at random.
type Lottery struct {
	Options []string
}

// Help shows the command reference.
type Help struct{}

func (Create) isCommand()          {}
func (BatchCreate) isCommand()     {}
func (CreateRecurring) isCommand() {}
func (CancelRecurring) isCommand() {}
func (Complete) isCommand()        {}
func (List) isCommand()            {}
func (Update) isCommand()          {}
func (Delete) isCommand()          {}
func (Detail) isCommand()          {}
func (Divination) isCommand()      {}
func (Lottery) isCommand()         {}
func (Help) isCommand()            {}

// ParseErrorKind identifies what was wrong with the input.
type ParseErrorKind string

const (
	UnknownCommand              ParseErrorKind = "unknown_command"
	MissingArgument             ParseErrorKind = "missing_argument"
	InvalidPriorityToken        ParseErrorKind = "invalid_priority_token"
	InvalidDateFormat           ParseErrorKind = "invalid_date_format"
	InvalidRecurrenceExpression ParseErrorKind = "invalid_recurrence_expression"
	MissingMention              ParseErrorKind = "missing_mention"
	MissingTaskID               ParseErrorKind = "missing_task_id"
)

// ParseError is returned for any input that fails validation. Token holds
// the offending fragment when there is one.
type ParseError struct {
	Kind  ParseErrorKind
	Token string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("parse: %s (%q)", e.Kind, e.Token)
	}
	return fmt.Sprintf("parse: %s", e.Kind)
}

func parseErr(kind ParseErrorKind, token string) *ParseError {
	return &ParseError{Kind: kind, Token: token}
}
