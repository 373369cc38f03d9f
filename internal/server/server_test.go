package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiehyu/grouptask/internal/command"
	"github.com/chiehyu/grouptask/internal/engine"
	"github.com/chiehyu/grouptask/internal/line"
	"github.com/chiehyu/grouptask/internal/model"
	"github.com/chiehyu/grouptask/tests/testutil"
)

const (
	testSecret = "test-channel-secret"
	testAPIKey = "test-api-key"
	testGroup  = "G-test"
)

type fakeMessenger struct {
	replies []string
	pushes  []string

	// memberNames maps "groupID/userID" to a display name.
	memberNames map[string]string
}

func (f *fakeMessenger) Reply(_ context.Context, _, text string) error {
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeMessenger) Push(_ context.Context, _, text string) error {
	f.pushes = append(f.pushes, text)
	return nil
}

func (f *fakeMessenger) GroupMemberName(_ context.Context, groupID, userID string) (string, error) {
	return f.memberNames[groupID+"/"+userID], nil
}

func newTestServer(t *testing.T) (*Server, *fakeMessenger, *engine.Engine) {
	t.Helper()

	st := testutil.NewTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(st, logger)
	msgr := &fakeMessenger{memberNames: map[string]string{}}
	return New(eng, st, msgr, testSecret, testAPIKey, logger), msgr, eng
}

func webhookBody(text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"destination": "U0",
		"events": []map[string]any{{
			"type":       "message",
			"replyToken": "rt-1",
			"source":     map[string]string{"type": "group", "groupId": testGroup, "userId": "U1"},
			"message":    map[string]string{"type": "text", "id": "m1", "text": text},
		}},
	})
	return body
}

func postCallback(t *testing.T, srv *Server, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/callback", bytes.NewReader(body))
	req.Header.Set(line.SignatureHeader, signature)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCallback_RejectsBadSignature(t *testing.T) {
	srv, msgr, _ := newTestServer(t)

	body := webhookBody("#幫助")
	rec := postCallback(t, srv, body, "invalid-signature")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, msgr.replies)
}

func TestCallback_DispatchesCommand(t *testing.T) {
	srv, msgr, _ := newTestServer(t)

	body := webhookBody("#新增 @小明 買晚餐 2026/09/15")
	rec := postCallback(t, srv, body, line.Sign(testSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, msgr.replies, 1)
	assert.Contains(t, msgr.replies[0], "已為 小明 新增任務：買晚餐")
	assert.Contains(t, msgr.replies[0], "任務ID：T-1")
}

func TestCallback_IgnoresNonCommands(t *testing.T) {
	srv, msgr, _ := newTestServer(t)

	body := webhookBody("今天天氣不錯")
	rec := postCallback(t, srv, body, line.Sign(testSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, msgr.replies)
}

func TestCallback_ParseErrorBecomesReply(t *testing.T) {
	srv, msgr, _ := newTestServer(t)

	body := webhookBody("#新增 @小明 交報告 2026/02/30")
	rec := postCallback(t, srv, body, line.Sign(testSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, msgr.replies, 1)
	assert.Contains(t, msgr.replies[0], "2026/02/30")
}

func TestCallback_LinksSenderUserID(t *testing.T) {
	srv, msgr, _ := newTestServer(t)
	msgr.memberNames[testGroup+"/U1"] = "小明"

	// The sender creates a task for themselves; their member record picks
	// up their chat user id.
	body := webhookBody("#新增 @小明 買晚餐")
	rec := postCallback(t, srv, body, line.Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rec.Code)

	member, err := srv.store.GetMemberByName(context.Background(), "小明", testGroup)
	require.NoError(t, err)
	require.NotNil(t, member.LineUserID)
	assert.Equal(t, "U1", *member.LineUserID)
}

func TestDispatch_CompleteFlow(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	created, err := srv.dispatcher.Dispatch(ctx, testGroup, "#新增 @小明 買晚餐")
	require.NoError(t, err)
	assert.Contains(t, created, "T-1")

	done, err := srv.dispatcher.Dispatch(ctx, testGroup, "#完成 T-1")
	require.NoError(t, err)
	assert.Contains(t, done, "已將 小明 的任務 T-1 標記為完成")

	again, err := srv.dispatcher.Dispatch(ctx, testGroup, "#完成 T-1")
	require.NoError(t, err)
	assert.Contains(t, again, "已經標記為完成")
}

func TestDispatch_GroupIsolation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	_, err := srv.dispatcher.Dispatch(ctx, "G-a", "#新增 @小明 買晚餐")
	require.NoError(t, err)

	got, err := srv.dispatcher.Dispatch(ctx, "G-b", "#完成 T-1")
	require.NoError(t, err)
	assert.Contains(t, got, "找不到ID為 T-1 的任務")
}

func apiRequest(t *testing.T, srv *Server, method, path, key string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if key != "" {
		req.Header.Set("X-API-KEY", key)
	}
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestAPI_RequiresKey(t *testing.T) {
	srv, _, _ := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized,
		apiRequest(t, srv, http.MethodGet, "/api/pending-tasks?group=G1", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		apiRequest(t, srv, http.MethodGet, "/api/pending-tasks?group=G1", "wrong", nil).Code)
}

func TestPendingTasks(t *testing.T) {
	srv, _, eng := newTestServer(t)
	ctx := context.Background()

	due := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	_, err := eng.Create(ctx, testGroup, command.Create{Mention: "小明", Content: "逾期的", Priority: model.PriorityNormal, DueDate: &due})
	require.NoError(t, err)
	_, err = eng.Create(ctx, testGroup, command.Create{Mention: "小明", Content: "沒期限", Priority: model.PriorityNormal})
	require.NoError(t, err)

	rec := apiRequest(t, srv, http.MethodGet, "/api/pending-tasks?group="+testGroup, testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int           `json:"count"`
		Tasks []pendingTask `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "T-1", resp.Tasks[0].Ref)
	assert.True(t, resp.Tasks[0].Overdue)
	assert.False(t, resp.Tasks[1].Overdue)
}

func TestPendingTasks_MissingGroup(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := apiRequest(t, srv, http.MethodGet, "/api/pending-tasks", testAPIKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendReminder(t *testing.T) {
	srv, msgr, eng := newTestServer(t)
	ctx := context.Background()

	due := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	_, err := eng.Create(ctx, testGroup, command.Create{Mention: "小明", Content: "繳房租", Priority: model.PriorityNormal, DueDate: &due})
	require.NoError(t, err)

	body := []byte(fmt.Sprintf(`{"group_id":%q}`, testGroup))
	rec := apiRequest(t, srv, http.MethodPost, "/api/send-reminder", testAPIKey, body)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, msgr.pushes, 1)
	assert.Contains(t, msgr.pushes[0], "任務提醒")
	assert.Contains(t, msgr.pushes[0], "繳房租")
}

func TestSendReminder_NothingDue(t *testing.T) {
	srv, msgr, eng := newTestServer(t)
	ctx := context.Background()

	future := time.Now().UTC().AddDate(1, 0, 0)
	_, err := eng.Create(ctx, testGroup, command.Create{Mention: "小明", Content: "明年的事", Priority: model.PriorityNormal, DueDate: &future})
	require.NoError(t, err)

	body := []byte(fmt.Sprintf(`{"group_id":%q}`, testGroup))
	rec := apiRequest(t, srv, http.MethodPost, "/api/send-reminder", testAPIKey, body)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Body.String(), `"sent":false`)
	assert.Empty(t, msgr.pushes)
}

func TestGenerateOccurrences_Endpoint(t *testing.T) {
	srv, _, eng := newTestServer(t)
	ctx := context.Background()

	_, err := eng.CreateRecurring(ctx, testGroup, command.CreateRecurring{
		Mention: "小華", Content: "倒垃圾", Priority: model.PriorityNormal,
		Rule: model.RecurrenceRule{Kind: model.RecurWeekly, Weekday: time.Wednesday},
	})
	require.NoError(t, err)

	// 2026-09-02 is a Wednesday.
	body := []byte(`{"date":"2026-09-02"}`)
	rec := apiRequest(t, srv, http.MethodPost, "/api/generate-occurrences", testAPIKey, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":1`)

	rec = apiRequest(t, srv, http.MethodPost, "/api/generate-occurrences", testAPIKey, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":0`)
}

func TestGenerateOccurrences_BadDate(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := apiRequest(t, srv, http.MethodPost, "/api/generate-occurrences", testAPIKey, []byte(`{"date":"02/09/2026"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
