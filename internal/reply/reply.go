// Package reply renders engine results and typed failures into the
// fixed reply texts sent back to the chat group. No business logic
// lives here; every template is deterministic given its inputs.
package reply

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chiehyu/grouptask/internal/command"
	"github.com/chiehyu/grouptask/internal/engine"
	"github.com/chiehyu/grouptask/internal/model"
	"github.com/chiehyu/grouptask/internal/novelty"
	"github.com/chiehyu/grouptask/internal/store"
)

const dateLayout = "2006/01/02"

// InternalError is the fallback for unexpected failures.
const InternalError = "處理指令時發生內部錯誤，請稍後再試。"

func priorityLabel(p string) string {
	switch p {
	case model.PriorityHigh:
		return "高"
	case model.PriorityLow:
		return "低"
	}
	return "中"
}

// Created confirms a single new task.
func Created(t *model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "已為 %s 新增任務：%s\n任務ID：%s\n", t.MemberName, t.Content, t.Ref())
	if t.Priority != model.PriorityNormal {
		fmt.Fprintf(&b, "優先級:%s\n", priorityLabel(t.Priority))
	}
	if t.DueDate != nil {
		fmt.Fprintf(&b, "截止日期:%s", t.DueDate.Format(dateLayout))
	} else {
		b.WriteString("無截止日期")
	}
	return b.String()
}

// BatchCreated confirms an all-or-nothing batch.
func BatchCreated(tasks []model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "已為 %s 新增 %d 項任務：\n", tasks[0].MemberName, len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s %s", t.Ref(), t.Content)
		if t.DueDate != nil {
			fmt.Fprintf(&b, " (截止 %s)", t.DueDate.Format(dateLayout))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RecurringCreated confirms a rule-bearing task and its first upcoming date.
func RecurringCreated(res *engine.RecurringResult) string {
	t := res.Task
	return fmt.Sprintf("已為 %s 建立定期任務：%s\n任務ID：%s\n週期:%s\n下次產生日:%s",
		t.MemberName, t.Content, t.Ref(), t.Recurrence.Describe(), res.Next.Format(dateLayout))
}

// RecurrenceCancelled confirms a stopped schedule.
func RecurrenceCancelled(t *model.Task) string {
	return fmt.Sprintf("已取消 %s 的定期排程（%s），不會再產生新任務。", t.Ref(), t.Recurrence.Describe())
}

// Completed confirms a completion, wording the idempotent repeat case
// the way the original bot did.
func Completed(res *engine.CompleteResult) string {
	t := res.Task
	if res.AlreadyDone {
		return fmt.Sprintf("任務 %s 已經標記為完成", t.Ref())
	}
	return fmt.Sprintf("已將 %s 的任務 %s 標記為完成！\n任務內容：%s", t.MemberName, t.Ref(), t.Content)
}

// Updated confirms a partial update by showing the record as it now is.
func Updated(t *model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "已修改任務 %s：%s\n優先級:%s\n", t.Ref(), t.Content, priorityLabel(t.Priority))
	if t.DueDate != nil {
		fmt.Fprintf(&b, "截止日期:%s", t.DueDate.Format(dateLayout))
	} else {
		b.WriteString("無截止日期")
	}
	return b.String()
}

// Deleted confirms a permanent removal.
func Deleted(t *model.Task) string {
	return fmt.Sprintf("已刪除任務 %s：%s", t.Ref(), t.Content)
}

// dueLine annotates a due date with how much time is left, relative to
// the given day.
func dueLine(due, today time.Time) string {
	daysLeft := int(recDate(due).Sub(recDate(today)).Hours() / 24)
	var status string
	switch {
	case daysLeft < 0:
		status = "⚠️ 已逾期"
	case daysLeft == 0:
		status = "⚠️ 今天到期"
	case daysLeft < 2:
		status = fmt.Sprintf("⚠️ 即將到期 (%d天)", daysLeft)
	default:
		status = fmt.Sprintf("還有 %d 天", daysLeft)
	}
	return fmt.Sprintf("📅 截止: %s %s", due.Format(dateLayout), status)
}

func recDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TaskList renders the group (or member) listing.
func TaskList(title string, tasks []model.Task, today time.Time) string {
	if len(tasks) == 0 {
		return fmt.Sprintf("%s：目前沒有任務", title)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s 📋\n\n", title)
	for i, t := range tasks {
		fmt.Fprintf(&b, "【任務 %s】\n", t.Ref())
		fmt.Fprintf(&b, "👤 負責人: %s\n", t.MemberName)
		fmt.Fprintf(&b, "📝 內容: %s\n", t.Content)
		if t.Priority != model.PriorityNormal {
			fmt.Fprintf(&b, "⭐ 優先級: %s\n", priorityLabel(t.Priority))
		}
		if t.DueDate != nil {
			b.WriteString(dueLine(*t.DueDate, today) + "\n")
		}
		if t.IsRecurring() {
			fmt.Fprintf(&b, "🔁 %s\n", t.Recurrence.Describe())
		}
		if t.Status == model.TaskStatusDone {
			b.WriteString("✔️ 已完成\n")
		} else {
			fmt.Fprintf(&b, "✅ 輸入「#完成 %s」標記完成\n", t.Ref())
		}
		if i < len(tasks)-1 {
			b.WriteString("\n" + strings.Repeat("-", 25) + "\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// TaskDetail renders one task's full record.
func TaskDetail(t *model.Task, today time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "【任務 %s】\n", t.Ref())
	fmt.Fprintf(&b, "👤 負責人: %s\n", t.MemberName)
	fmt.Fprintf(&b, "📝 內容: %s\n", t.Content)
	fmt.Fprintf(&b, "⭐ 優先級: %s\n", priorityLabel(t.Priority))
	if t.DueDate != nil {
		b.WriteString(dueLine(*t.DueDate, today) + "\n")
	}
	if t.Recurrence != nil {
		if t.Recurrence.Cancelled {
			fmt.Fprintf(&b, "🔁 %s（已取消）\n", t.Recurrence.Describe())
		} else {
			fmt.Fprintf(&b, "🔁 %s\n", t.Recurrence.Describe())
		}
	}
	if t.Status == model.TaskStatusDone {
		b.WriteString("✔️ 已完成")
		if t.CompletedAt != nil {
			fmt.Fprintf(&b, "（%s）", t.CompletedAt.Format(dateLayout))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("⏳ 待辦\n")
	}
	fmt.Fprintf(&b, "🕐 建立於: %s", t.CreatedAt.Format(dateLayout))
	return b.String()
}

// Divination renders a jiaobei draw.
func Divination(question string, result novelty.DivinationResult) string {
	return fmt.Sprintf("❓ 問題: %s\n✨ 結果: %s (%s)", question, result.Name, result.Meaning)
}

// Lottery renders a random pick.
func Lottery(options []string, chosen string) string {
	return fmt.Sprintf("從 [%s] %d 個選項中抽出：\n🎉 %s 🎉",
		strings.Join(options, ", "), len(options), chosen)
}

// Help is the static command reference.
func Help() string {
	return strings.TrimSpace(`
📋 代辦事項機器人指令 📋

🔸 新增任務:
   #新增 @成員 [!高|!中|!低] 任務內容 [YYYY/MM/DD]
   例: #新增 @小明 !高 買晚餐 2025/04/17

🔸 批量新增:
   #批量新增 @成員
   任務一 [YYYY/MM/DD]
   任務二

🔸 定期任務:
   #定期 @成員 任務內容 每週三|每月15日|每年5月31日
   #取消定期 T-任務ID

🔸 完成任務:
   #完成 T-任務ID

🔸 查看任務:
   #列表          (看本群組全部任務)
   #列表 @成員   (看指定成員任務)
   #詳情 T-任務ID

🔸 修改/刪除:
   #修改 T-任務ID [新內容] [!優先級] [YYYY/MM/DD]
   #刪除 T-任務ID

🔸 其他功能:
   #擲筊 問題
   #抽籤 選項1 選項2 ...
   #幫助 (顯示本說明)`)
}

// Error maps a typed failure to its user-facing message, naming the
// offending token where one exists.
func Error(err error) string {
	var perr *command.ParseError
	if errors.As(err, &perr) {
		return parseErrorMessage(perr)
	}

	switch {
	case errors.Is(err, engine.ErrTaskNotFound):
		return fmt.Sprintf("找不到ID為 %s 的任務", firstToken(err))
	case errors.Is(err, engine.ErrMemberNotFound):
		return fmt.Sprintf("找不到成員：%s", firstToken(err))
	case errors.Is(err, engine.ErrNotRecurring):
		return fmt.Sprintf("任務 %s 不是定期任務", firstToken(err))
	case errors.Is(err, engine.ErrInvalidPriority):
		return "優先級無效，請使用 !高、!中 或 !低"
	case errors.Is(err, store.ErrNotFound):
		return "找不到對應的資料"
	}
	return InternalError
}

func parseErrorMessage(perr *command.ParseError) string {
	switch perr.Kind {
	case command.UnknownCommand:
		return fmt.Sprintf("不認識的指令：%s\n輸入「#幫助」查看指令說明", perr.Token)
	case command.MissingArgument:
		if perr.Token != "" {
			return fmt.Sprintf("指令內容不完整：%s\n輸入「#幫助」查看指令說明", perr.Token)
		}
		return "指令內容不完整，輸入「#幫助」查看指令說明"
	case command.InvalidPriorityToken:
		return fmt.Sprintf("優先級標記 %s 無效，請使用 !高、!中 或 !低", perr.Token)
	case command.InvalidDateFormat:
		return fmt.Sprintf("日期 %s 不正確，請使用 YYYY/MM/DD 格式的有效日期", perr.Token)
	case command.InvalidRecurrenceExpression:
		return fmt.Sprintf("週期 %s 無效，請使用 每週三、每月15日 或 每年5月31日 這類格式", perr.Token)
	case command.MissingMention:
		if perr.Token != "" {
			return fmt.Sprintf("%s 不是成員標記，請使用 @成員", perr.Token)
		}
		return "請指定 @成員"
	case command.MissingTaskID:
		if perr.Token != "" {
			return fmt.Sprintf("%s 不是任務ID，請使用 T-編號（例如 T-12）", perr.Token)
		}
		return "請指定任務ID（例如 T-12）"
	}
	return InternalError
}

// firstToken pulls the token prefix out of a wrapped engine error, e.g.
// "T-12: task not found" → "T-12".
func firstToken(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 {
		return msg[:i]
	}
	return msg
}
