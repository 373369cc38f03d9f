package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiehyu/grouptask/internal/model"
)

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("#列表"))
	assert.True(t, IsCommand("  #幫助"))
	assert.False(t, IsCommand("早安"))
	assert.False(t, IsCommand(""))
}

func TestParse_Create(t *testing.T) {
	cmd, err := Parse("#新增 @小明 買晚餐 2025/4/17")
	require.NoError(t, err)

	create, ok := cmd.(Create)
	require.True(t, ok)
	assert.Equal(t, "小明", create.Mention)
	assert.Equal(t, "買晚餐", create.Content)
	assert.Equal(t, model.PriorityNormal, create.Priority)
	require.NotNil(t, create.DueDate)
	assert.Equal(t, time.Date(2025, time.April, 17, 0, 0, 0, 0, time.UTC), *create.DueDate)
}

func TestParse_CreateWithPriorityNoDate(t *testing.T) {
	cmd, err := Parse("#新增 @小華 !高 繳交季度報告")
	require.NoError(t, err)

	create := cmd.(Create)
	assert.Equal(t, model.PriorityHigh, create.Priority)
	assert.Equal(t, "繳交季度報告", create.Content)
	assert.Nil(t, create.DueDate)
}

func TestParse_CreateErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  ParseErrorKind
		token string
	}{
		{"no mention", "#新增 買晚餐", MissingMention, "買晚餐"},
		{"bare at-sign", "#新增 @ 買晚餐", MissingMention, "@"},
		{"no content", "#新增 @小明", MissingArgument, ""},
		{"bad priority", "#新增 @小明 !急 買晚餐", InvalidPriorityToken, "!急"},
		{"impossible date", "#新增 @小明 買晚餐 2025/2/30", InvalidDateFormat, "2025/2/30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, tt.token, perr.Token)
		})
	}
}

func TestParse_UnknownCommand(t *testing.T) {
	_, err := Parse("#召喚 @小明")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, UnknownCommand, perr.Kind)
	assert.Equal(t, "#召喚", perr.Token)
}

func TestParse_BatchCreate(t *testing.T) {
	cmd, err := Parse("#批量新增 @小明\n買晚餐 2025/4/17\n!高 訂會議室\n倒垃圾")
	require.NoError(t, err)

	batch := cmd.(BatchCreate)
	assert.Equal(t, "小明", batch.Mention)
	require.Len(t, batch.Lines, 3)
	assert.Equal(t, "買晚餐", batch.Lines[0].Content)
	assert.NotNil(t, batch.Lines[0].DueDate)
	assert.Equal(t, model.PriorityHigh, batch.Lines[1].Priority)
	assert.Equal(t, "倒垃圾", batch.Lines[2].Content)
}

func TestParse_BatchCreateFailClosed(t *testing.T) {
	// One malformed line rejects the whole batch.
	_, err := Parse("#批量新增 @小明\n買晚餐\n訂會議室 2025/13/1")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, InvalidDateFormat, perr.Kind)

	_, err = Parse("#批量新增 @小明\n\n")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, MissingArgument, perr.Kind)
}

func TestParse_CreateRecurring(t *testing.T) {
	tests := []struct {
		input string
		want  model.RecurrenceRule
	}{
		{"#定期 @小明 倒垃圾 每週三", model.RecurrenceRule{Kind: model.RecurWeekly, Weekday: time.Wednesday}},
		{"#定期 @小明 對帳 每月15日", model.RecurrenceRule{Kind: model.RecurMonthly, Day: 15}},
		{"#定期 @小明 !高 報稅 每年5月31日", model.RecurrenceRule{Kind: model.RecurYearly, Month: time.May, Day: 31}},
	}
	for _, tt := range tests {
		cmd, err := Parse(tt.input)
		require.NoError(t, err, tt.input)
		rec := cmd.(CreateRecurring)
		assert.Equal(t, tt.want, rec.Rule, tt.input)
	}
}

func TestParse_CreateRecurringErrors(t *testing.T) {
	tests := []struct {
		input string
		kind  ParseErrorKind
	}{
		{"#定期 @小明 倒垃圾", InvalidRecurrenceExpression},
		{"#定期 @小明 倒垃圾 每週八", InvalidRecurrenceExpression},
		{"#定期 @小明 對帳 每月32日", InvalidRecurrenceExpression},
		{"#定期 @小明 紀念 每年2月30日", InvalidRecurrenceExpression},
		{"#定期 倒垃圾 每週三", MissingMention},
	}
	for _, tt := range tests {
		_, err := Parse(tt.input)
		var perr *ParseError
		require.ErrorAs(t, err, &perr, tt.input)
		assert.Equal(t, tt.kind, perr.Kind, tt.input)
	}
}

func TestParse_TaskIDCommands(t *testing.T) {
	cmd, err := Parse("#完成 T-12")
	require.NoError(t, err)
	assert.Equal(t, Complete{TaskID: 12}, cmd)

	cmd, err = Parse("#刪除 t-7")
	require.NoError(t, err)
	assert.Equal(t, Delete{TaskID: 7}, cmd)

	cmd, err = Parse("#詳情 T-3")
	require.NoError(t, err)
	assert.Equal(t, Detail{TaskID: 3}, cmd)

	cmd, err = Parse("#取消定期 T-9")
	require.NoError(t, err)
	assert.Equal(t, CancelRecurring{TaskID: 9}, cmd)
}

func TestParse_MissingTaskID(t *testing.T) {
	for _, input := range []string{"#完成", "#完成 12", "#刪除 T-", "#詳情 task12"} {
		_, err := Parse(input)
		var perr *ParseError
		require.ErrorAs(t, err, &perr, input)
		assert.Equal(t, MissingTaskID, perr.Kind, input)
	}
}

func TestParse_List(t *testing.T) {
	cmd, err := Parse("#列表")
	require.NoError(t, err)
	assert.Equal(t, List{}, cmd)

	cmd, err = Parse("#列表 @小明")
	require.NoError(t, err)
	assert.Equal(t, List{Mention: "小明"}, cmd)

	_, err = Parse("#列表 小明")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, MissingMention, perr.Kind)
}

func TestParse_Update(t *testing.T) {
	cmd, err := Parse("#修改 T-4 !低 改買早餐 2025/5/1")
	require.NoError(t, err)

	up := cmd.(Update)
	assert.Equal(t, int64(4), up.TaskID)
	require.NotNil(t, up.Content)
	assert.Equal(t, "改買早餐", *up.Content)
	require.NotNil(t, up.Priority)
	assert.Equal(t, model.PriorityLow, *up.Priority)
	require.NotNil(t, up.DueDate)
}

func TestParse_UpdatePartialFields(t *testing.T) {
	cmd, err := Parse("#修改 T-4 !高")
	require.NoError(t, err)
	up := cmd.(Update)
	assert.Nil(t, up.Content)
	assert.Nil(t, up.DueDate)
	require.NotNil(t, up.Priority)
	assert.Equal(t, model.PriorityHigh, *up.Priority)

	_, err = Parse("#修改 T-4")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, MissingArgument, perr.Kind)
}

func TestParse_Novelty(t *testing.T) {
	cmd, err := Parse("#擲筊 今晚吃火鍋嗎")
	require.NoError(t, err)
	assert.Equal(t, Divination{Question: "今晚吃火鍋嗎"}, cmd)

	cmd, err = Parse("#抽籤 火鍋 燒肉 拉麵")
	require.NoError(t, err)
	assert.Equal(t, Lottery{Options: []string{"火鍋", "燒肉", "拉麵"}}, cmd)

	_, err = Parse("#抽籤")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, MissingArgument, perr.Kind)
}

func TestParse_Help(t *testing.T) {
	cmd, err := Parse("#幫助")
	require.NoError(t, err)
	assert.Equal(t, Help{}, cmd)
}
