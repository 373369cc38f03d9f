package command

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chiehyu/grouptask/internal/model"
)

var (
	datePattern    = regexp.MustCompile(`^\d{4}/\d{1,2}/\d{1,2}$`)
	weeklyPattern  = regexp.MustCompile(`^每週([日一二三四五六])$`)
	monthlyPattern = regexp.MustCompile(`^每月(\d{1,2})日$`)
	yearlyPattern  = regexp.MustCompile(`^每年(\d{1,2})月(\d{1,2})日$`)
)

// priorityTokens is the closed set of priority markers.
var priorityTokens = map[string]string{
	"!高": model.PriorityHigh,
	"!中": model.PriorityNormal,
	"!低": model.PriorityLow,
}

var weekdayByName = map[string]time.Weekday{
	"日": time.Sunday,
	"一": time.Monday,
	"二": time.Tuesday,
	"三": time.Wednesday,
	"四": time.Thursday,
	"五": time.Friday,
	"六": time.Saturday,
}

// IsCommand reports whether the message carries the command marker.
// Non-command chatter is simply not ours to handle.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), Marker)
}

// Parse turns one raw message into a typed Command. The message must
// carry the marker; call IsCommand first to filter ordinary chatter.
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, Marker) {
		return nil, parseErr(UnknownCommand, text)
	}

	lines := strings.Split(text, "\n")
	header := strings.Fields(strings.TrimPrefix(strings.TrimSpace(lines[0]), Marker))
	if len(header) == 0 {
		return nil, parseErr(UnknownCommand, lines[0])
	}
	keyword := header[0]
	args := header[1:]

	switch keyword {
	case KeywordCreate:
		return parseCreate(args)
	case KeywordBatchCreate:
		return parseBatchCreate(args, lines[1:])
	case KeywordCreateRecurring:
		return parseCreateRecurring(args)
	case KeywordCancelRecurring:
		id, err := requireTaskID(args)
		if err != nil {
			return nil, err
		}
		return CancelRecurring{TaskID: id}, nil
	case KeywordComplete:
		id, err := requireTaskID(args)
		if err != nil {
			return nil, err
		}
		return Complete{TaskID: id}, nil
	case KeywordList:
		return parseList(args)
	case KeywordUpdate:
		return parseUpdate(args)
	case KeywordDelete:
		id, err := requireTaskID(args)
		if err != nil {
			return nil, err
		}
		return Delete{TaskID: id}, nil
	case KeywordDetail:
		id, err := requireTaskID(args)
		if err != nil {
			return nil, err
		}
		return Detail{TaskID: id}, nil
	case KeywordDivination:
		if len(args) == 0 {
			return nil, parseErr(MissingArgument, keyword)
		}
		return Divination{Question: strings.Join(args, " ")}, nil
	case KeywordLottery:
		if len(args) == 0 {
			return nil, parseErr(MissingArgument, keyword)
		}
		return Lottery{Options: args}, nil
	case KeywordHelp:
		return Help{}, nil
	}

	return nil, parseErr(UnknownCommand, Marker+keyword)
}

func parseCreate(args []string) (Command, error) {
	mention, rest, err := requireMention(args)
	if err != nil {
		return nil, err
	}
	priority, content, due, err := parseTaskFields(rest)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, parseErr(MissingArgument, "")
	}
	return Create{Mention: mention, Content: content, Priority: priority, DueDate: due}, nil
}

func parseBatchCreate(args []string, body []string) (Command, error) {
	mention, rest, err := requireMention(args)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		// Sub-tasks go on their own lines, nothing else belongs on the header.
		return nil, parseErr(MissingArgument, strings.Join(rest, " "))
	}

	var cmd BatchCreate
	cmd.Mention = mention
	for _, line := range body {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		priority, content, due, err := parseTaskFields(strings.Fields(line))
		if err != nil {
			// Fail-closed: one bad line rejects the whole batch.
			return nil, err
		}
		if content == "" {
			return nil, parseErr(MissingArgument, line)
		}
		cmd.Lines = append(cmd.Lines, BatchLine{Content: content, Priority: priority, DueDate: due})
	}
	if len(cmd.Lines) == 0 {
		return nil, parseErr(MissingArgument, "")
	}
	return cmd, nil
}

func parseCreateRecurring(args []string) (Command, error) {
	mention, rest, err := requireMention(args)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, parseErr(MissingArgument, "")
	}

	// The recurrence expression closes the command.
	exprToken := rest[len(rest)-1]
	rule, err := parseRecurrence(exprToken)
	if err != nil {
		return nil, err
	}
	rest = rest[:len(rest)-1]

	priority, content, due, err := parseTaskFields(rest)
	if err != nil {
		return nil, err
	}
	if due != nil {
		// A fixed date contradicts a repeating schedule.
		return nil, parseErr(InvalidRecurrenceExpression, exprToken)
	}
	if content == "" {
		return nil, parseErr(MissingArgument, "")
	}
	return CreateRecurring{Mention: mention, Content: content, Priority: priority, Rule: rule}, nil
}

func parseList(args []string) (Command, error) {
	switch len(args) {
	case 0:
		return List{}, nil
	case 1:
		name, ok := mentionName(args[0])
		if !ok {
			return nil, parseErr(MissingMention, args[0])
		}
		return List{Mention: name}, nil
	}
	return nil, parseErr(MissingArgument, strings.Join(args[1:], " "))
}

func parseUpdate(args []string) (Command, error) {
	if len(args) == 0 {
		return nil, parseErr(MissingTaskID, "")
	}
	id, ok := model.ParseTaskID(args[0])
	if !ok {
		return nil, parseErr(MissingTaskID, args[0])
	}

	priority, content, due, err := parseTaskFields(args[1:])
	if err != nil {
		return nil, err
	}

	cmd := Update{TaskID: id, DueDate: due}
	if content != "" {
		cmd.Content = &content
	}
	if priority != model.PriorityNormal || containsPriorityToken(args[1:]) {
		cmd.Priority = &priority
	}
	if cmd.Content == nil && cmd.Priority == nil && cmd.DueDate == nil {
		return nil, parseErr(MissingArgument, "")
	}
	return cmd, nil
}

// parseTaskFields consumes an optional priority token, an optional
// trailing date token, and treats everything else as content.
func parseTaskFields(tokens []string) (priority, content string, due *time.Time, err error) {
	priority = model.PriorityNormal

	if len(tokens) > 0 {
		if d, ok, derr := parseDateToken(tokens[len(tokens)-1]); derr != nil {
			return "", "", nil, derr
		} else if ok {
			due = &d
			tokens = tokens[:len(tokens)-1]
		}
	}

	var rest []string
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "!") {
			p, ok := priorityTokens[tok]
			if !ok {
				return "", "", nil, parseErr(InvalidPriorityToken, tok)
			}
			priority = p
			continue
		}
		rest = append(rest, tok)
	}

	return priority, strings.Join(rest, " "), due, nil
}

// parseDateToken recognizes a YYYY/M/D token. A token in date shape that
// is not a real calendar date (e.g. 2025/2/30) is an error, never content.
func parseDateToken(tok string) (time.Time, bool, error) {
	if !datePattern.MatchString(tok) {
		return time.Time{}, false, nil
	}
	d, err := time.ParseInLocation("2006/1/2", tok, time.UTC)
	if err != nil {
		return time.Time{}, false, parseErr(InvalidDateFormat, tok)
	}
	return d, true, nil
}

func parseRecurrence(tok string) (model.RecurrenceRule, error) {
	if m := weeklyPattern.FindStringSubmatch(tok); m != nil {
		return model.RecurrenceRule{Kind: model.RecurWeekly, Weekday: weekdayByName[m[1]]}, nil
	}
	if m := monthlyPattern.FindStringSubmatch(tok); m != nil {
		day, _ := strconv.Atoi(m[1])
		if day < 1 || day > 31 {
			return model.RecurrenceRule{}, parseErr(InvalidRecurrenceExpression, tok)
		}
		return model.RecurrenceRule{Kind: model.RecurMonthly, Day: day}, nil
	}
	if m := yearlyPattern.FindStringSubmatch(tok); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 || day < 1 || day > maxDayOfMonth(time.Month(month)) {
			return model.RecurrenceRule{}, parseErr(InvalidRecurrenceExpression, tok)
		}
		return model.RecurrenceRule{Kind: model.RecurYearly, Month: time.Month(month), Day: day}, nil
	}
	return model.RecurrenceRule{}, parseErr(InvalidRecurrenceExpression, tok)
}

// maxDayOfMonth allows 29 for February; non-leap years are handled by the
// recurrence engine's skip rule, not rejected at parse time.
func maxDayOfMonth(m time.Month) int {
	switch m {
	case time.February:
		return 29
	case time.April, time.June, time.September, time.November:
		return 30
	}
	return 31
}

func requireMention(args []string) (name string, rest []string, err error) {
	if len(args) == 0 {
		return "", nil, parseErr(MissingMention, "")
	}
	name, ok := mentionName(args[0])
	if !ok {
		return "", nil, parseErr(MissingMention, args[0])
	}
	return name, args[1:], nil
}

func mentionName(tok string) (string, bool) {
	if !strings.HasPrefix(tok, "@") || len(tok) == 1 {
		return "", false
	}
	return tok[1:], true
}

func requireTaskID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, parseErr(MissingTaskID, "")
	}
	id, ok := model.ParseTaskID(args[0])
	if !ok {
		return 0, parseErr(MissingTaskID, args[0])
	}
	return id, nil
}

func containsPriorityToken(tokens []string) bool {
	for _, tok := range tokens {
		if _, ok := priorityTokens[tok]; ok {
			return true
		}
	}
	return false
}
