// Package server wires the chat webhook and the automation API onto one
// HTTP listener.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chiehyu/grouptask/internal/engine"
	"github.com/chiehyu/grouptask/internal/line"
	"github.com/chiehyu/grouptask/internal/model"
	"github.com/chiehyu/grouptask/internal/reply"
	"github.com/chiehyu/grouptask/internal/store"
)

const maxBodyBytes = 1 << 20

// Messenger sends outbound chat messages and resolves member profiles.
// *line.Client satisfies it.
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
	GroupMemberName(ctx context.Context, groupID, userID string) (string, error)
}

// Server holds the HTTP surface: the LINE webhook, the health check,
// and the X-API-KEY automation endpoints.
type Server struct {
	dispatcher *Dispatcher
	engine     *engine.Engine
	store      store.Store
	messenger  Messenger
	log        *slog.Logger

	channelSecret string
	apiKey        string
	now           func() time.Time
}

// New assembles a Server.
func New(e *engine.Engine, st store.Store, m Messenger, channelSecret, apiKey string, logger *slog.Logger) *Server {
	return &Server{
		dispatcher:    NewDispatcher(e),
		engine:        e,
		store:         st,
		messenger:     m,
		log:           logger,
		channelSecret: channelSecret,
		apiKey:        apiKey,
		now:           time.Now,
	}
}

// Routes builds the handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("POST /callback", s.handleCallback)
	mux.HandleFunc("GET /api/pending-tasks", s.requireAPIKey(s.handlePendingTasks))
	mux.HandleFunc("POST /api/send-reminder", s.requireAPIKey(s.handleSendReminder))
	mux.HandleFunc("POST /api/generate-occurrences", s.requireAPIKey(s.handleGenerateOccurrences))
	return mux
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"message":   "service is alive",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// handleCallback verifies, decodes, and dispatches webhook events. It
// always acknowledges 200 once the signature checks out; a failing
// event must not make LINE redeliver the whole batch.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !line.VerifySignature(s.channelSecret, body, r.Header.Get(line.SignatureHeader)) {
		s.log.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		writeErr(w, http.StatusUnauthorized, "bad signature")
		return
	}

	hook, err := line.ParseWebhook(body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad webhook body")
		return
	}

	for _, event := range hook.Events {
		s.handleEvent(r.Context(), event)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleEvent(ctx context.Context, event line.Event) {
	if !event.IsTextMessage() {
		return
	}

	scope := event.Source.ScopeID()
	text, err := s.dispatcher.Dispatch(ctx, scope, event.Message.Text)
	if err != nil {
		s.log.Error("command dispatch failed", "group", scope, "error", err)
	}
	if text == "" {
		return
	}

	if err := s.messenger.Reply(ctx, event.ReplyToken, text); err != nil {
		s.log.Error("reply failed", "group", scope, "error", err)
	}
	s.linkSender(ctx, event)
}

// linkSender attaches the sender's chat user id to their member record
// when their display name matches a registered member. Best effort; a
// failed profile lookup never affects the command.
func (s *Server) linkSender(ctx context.Context, event line.Event) {
	groupID := event.Source.GroupID
	userID := event.Source.UserID
	if groupID == "" || userID == "" {
		return
	}

	name, err := s.messenger.GroupMemberName(ctx, groupID, userID)
	if err != nil || name == "" {
		return
	}
	if err := s.store.LinkMemberLineID(ctx, name, groupID, userID); err != nil {
		s.log.Debug("linking sender failed", "group", groupID, "error", err)
	}
}

// pendingTask is the automation view of an open task.
type pendingTask struct {
	ID       int64  `json:"id"`
	Ref      string `json:"ref"`
	GroupID  string `json:"group_id"`
	Member   string `json:"member"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
	DueDate  string `json:"due_date,omitempty"`
	Overdue  bool   `json:"overdue"`
}

func (s *Server) handlePendingTasks(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group")
	if groupID == "" {
		writeErr(w, http.StatusBadRequest, "missing group parameter")
		return
	}

	open := model.TaskStatusOpen
	tasks, err := s.store.GetTasks(r.Context(), store.TaskFilter{GroupID: groupID, Status: &open})
	if err != nil {
		s.log.Error("pending task query failed", "group", groupID, "error", err)
		writeErr(w, http.StatusInternalServerError, "query failed")
		return
	}

	today := dateOnly(s.now())
	out := make([]pendingTask, 0, len(tasks))
	for _, t := range tasks {
		p := pendingTask{
			ID: t.ID, Ref: t.Ref(), GroupID: t.GroupID,
			Member: t.MemberName, Content: t.Content, Priority: t.Priority,
		}
		if t.DueDate != nil {
			p.DueDate = t.DueDate.Format(time.DateOnly)
			p.Overdue = dateOnly(*t.DueDate).Before(today)
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out, "count": len(out)})
}

type reminderRequest struct {
	GroupID string `json:"group_id"`
}

// handleSendReminder pushes one digest of due and overdue open tasks to
// the group. No matching tasks means no push.
func (s *Server) handleSendReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil || req.GroupID == "" {
		writeErr(w, http.StatusBadRequest, "missing group_id")
		return
	}

	open := model.TaskStatusOpen
	tasks, err := s.store.GetTasks(r.Context(), store.TaskFilter{GroupID: req.GroupID, Status: &open})
	if err != nil {
		s.log.Error("reminder query failed", "group", req.GroupID, "error", err)
		writeErr(w, http.StatusInternalServerError, "query failed")
		return
	}

	today := dateOnly(s.now())
	due := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.DueDate != nil && !dateOnly(*t.DueDate).After(today) {
			due = append(due, t)
		}
	}

	if len(due) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"sent": false, "count": 0})
		return
	}

	text := reply.TaskList("⏰ 任務提醒", due, s.now())
	if err := s.messenger.Push(r.Context(), req.GroupID, text); err != nil {
		s.log.Error("reminder push failed", "group", req.GroupID, "error", err)
		writeErr(w, http.StatusBadGateway, "push failed")
		return
	}

	s.log.Info("reminder sent", "group", req.GroupID, "count", len(due))
	writeJSON(w, http.StatusOK, map[string]any{"sent": true, "count": len(due)})
}

type generateRequest struct {
	Date string `json:"date"`
}

// handleGenerateOccurrences runs the daily recurrence pass. The date
// defaults to today; passing one makes catch-up runs explicit.
func (s *Server) handleGenerateOccurrences(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "bad request body")
		return
	}

	date := s.now()
	if req.Date != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, req.Date, time.UTC)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	created, err := s.engine.GenerateOccurrences(r.Context(), date)
	if err != nil {
		s.log.Error("occurrence generation failed", "error", err)
		writeErr(w, http.StatusInternalServerError, "generation failed")
		return
	}

	refs := make([]string, 0, len(created))
	for _, t := range created {
		refs = append(refs, t.Ref())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":    dateOnly(date).Format(time.DateOnly),
		"created": len(created),
		"tasks":   refs,
	})
}

// requireAPIKey guards automation endpoints with the X-API-KEY header.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-KEY")
		if s.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			writeErr(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next(w, r)
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(out)
}
