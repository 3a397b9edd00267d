package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dwizi/accessbot/internal/approval"
	"github.com/dwizi/accessbot/internal/config"
	"github.com/dwizi/accessbot/internal/directory"
	"github.com/dwizi/accessbot/internal/gateway"
	"github.com/dwizi/accessbot/internal/health"
	"github.com/dwizi/accessbot/internal/scheduler"
	"github.com/dwizi/accessbot/internal/session"
	"github.com/dwizi/accessbot/internal/store"
)

// storeRecorder mirrors the adapter the runtime installs.
type storeRecorder struct {
	store *store.Store
}

func (r storeRecorder) RecordApprovalDecision(ctx context.Context, entry approval.AuditEntry) error {
	_, err := r.store.RecordApprovalDecision(ctx, store.RecordApprovalDecisionInput{
		AuditID:     entry.AuditID,
		SessionID:   entry.SessionID,
		RequestID:   entry.RequestID,
		Username:    entry.Username,
		RequestType: entry.RequestType,
		Decision:    string(entry.Decision),
		Actor:       entry.Actor,
		DecidedAt:   entry.DecidedAt,
	})
	return err
}

type testEnv struct {
	handler  http.Handler
	clock    *scheduler.VirtualClock
	sessions *session.Manager
}

func newRouterTestStore(t *testing.T) *store.Store {
	t.Helper()
	sqlStore, err := store.New(filepath.Join(t.TempDir(), "accessbot_router_test.sqlite"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	return sqlStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sqlStore := newRouterTestStore(t)
	clock := scheduler.NewVirtualClock(time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC))
	sessions := session.NewManager(session.Options{
		Participant: "accessadmin",
		Mention:     "@AccessBot",
		Clock:       clock,
		Suffix:      approval.NewSequentialSuffix(),
		Recorder:    storeRecorder{store: sqlStore},
		Logger:      logger,
	})
	t.Cleanup(sessions.Close)
	handler := NewRouter(Dependencies{
		Config:   config.Config{Environment: "test", MentionToken: "@AccessBot", PublicHost: "chat.example"},
		Store:    sqlStore,
		Sessions: sessions,
		Gateway:  gateway.New(directory.NewStatic(directory.Sample()), gateway.DefaultConfig(), logger),
		Logger:   logger,
	})
	return &testEnv{handler: handler, clock: clock, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	e.handler.ServeHTTP(res, req)
	decoded := map[string]any{}
	if err := json.Unmarshal(res.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return res, decoded
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	res, body := e.do(t, http.MethodPost, "/api/v1/sessions", nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", res.Code, body)
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("expected session id, got %v", body)
	}
	return id
}

func TestHealthInfoAndCommands(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		if res, body := env.do(t, http.MethodGet, path, nil); res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %v", path, res.Code, body)
		}
	}
	_, info := env.do(t, http.MethodGet, "/api/v1/info", nil)
	if info["name"] != "accessbot" || info["environment"] != "test" {
		t.Fatalf("unexpected info %v", info)
	}
	_, commands := env.do(t, http.MethodGet, "/api/v1/commands", nil)
	if list, _ := commands["commands"].([]any); len(list) != 5 {
		t.Fatalf("expected five commands, got %v", commands)
	}
}

func TestCreateSessionStartsWithGreeting(t *testing.T) {
	env := newTestEnv(t)
	res, body := env.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"participant": "alice.w"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected greeting, got %v", body["messages"])
	}
	participant, _ := body["participant"].(map[string]any)
	if participant["id"] != "alice.w" {
		t.Fatalf("unexpected participant %v", participant)
	}

	res, body = env.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"participant": "mallory"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown participant, got %d: %v", res.Code, body)
	}
}

func TestPostMessageSchedulesReplies(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	res, body := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", map[string]string{"text": "@AccessBot show user alice.w"})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %v", res.Code, body)
	}
	if body["addressed"] != true || body["scheduled"] != float64(1) {
		t.Fatalf("unexpected post response %v", body)
	}

	env.clock.Advance(time.Second)
	_, listed := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/messages?after=1", nil)
	messages, _ := listed["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected one new message, got %v", listed["messages"])
	}
	message, _ := messages[0].(map[string]any)
	card, _ := message["card"].(map[string]any)
	user, _ := card["user"].(map[string]any)
	if message["card_kind"] != "user" || user["username"] != "alice.w" {
		t.Fatalf("unexpected card message %v", message)
	}

	if res, _ := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", map[string]string{"text": " "}); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", res.Code)
	}
	if res, _ := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/messages?after=x", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cursor, got %d", res.Code)
	}
}

func TestApprovalActionsAndAudit(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", map[string]string{"text": "@AccessBot reset password alice.w"})
	env.clock.Advance(2 * time.Second)

	_, approvals := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/approvals", nil)
	if list, _ := approvals["approvals"].([]any); len(list) != 1 {
		t.Fatalf("expected one approval request, got %v", approvals)
	}

	approve := map[string]any{"action": "approve", "data": map[string]string{"requestId": "req-001"}}
	res, body := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/actions", approve)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", res.Code, body)
	}
	outcome, _ := body["outcome"].(map[string]any)
	auditID, _ := outcome["audit_id"].(string)
	if !approval.ValidAuditID(auditID) {
		t.Fatalf("unexpected audit id %q", auditID)
	}

	res, body = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/actions", map[string]any{"action": "reject", "data": map[string]string{"requestId": "req-001"}})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for decided request, got %d: %v", res.Code, body)
	}
	res, _ = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/actions", map[string]any{"action": "teleport"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", res.Code)
	}

	_, audit := env.do(t, http.MethodGet, "/api/v1/audit?session_id="+id, nil)
	records, _ := audit["records"].([]any)
	if len(records) != 1 {
		t.Fatalf("expected exactly one audit record, got %v", audit)
	}
	record, _ := records[0].(map[string]any)
	if record["audit_id"] != auditID || record["decision"] != "approve" {
		t.Fatalf("unexpected audit record %v", record)
	}

	res, body = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/approvals/req-001", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", res.Code, body)
	}
	detail, _ := body["approval"].(map[string]any)
	trail, _ := body["audit"].([]any)
	if detail["status"] != "approved" || len(trail) != 1 {
		t.Fatalf("unexpected approval detail %v", body)
	}
	if res, _ = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/approvals/req-999", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown request, got %d", res.Code)
	}

	if res, _ = env.do(t, http.MethodGet, "/api/v1/audit?decision=escalate", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown decision, got %d", res.Code)
	}
	_, audit = env.do(t, http.MethodGet, "/api/v1/audit?decision=Reject", nil)
	if records, _ := audit["records"].([]any); len(records) != 0 {
		t.Fatalf("expected no rejections, got %v", audit)
	}
}

func TestSwitchUserAndUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	res, body := env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/user", map[string]string{"participant": "alice.w"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", res.Code, body)
	}
	res, _ = env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/user", map[string]string{"participant": "nobody"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	res, _ = env.do(t, http.MethodGet, "/api/v1/sessions/missing/messages", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if env.sessions.Len() != 1 {
		t.Fatalf("expected one live session, got %d", env.sessions.Len())
	}
}

func TestReadyReportsDegradedComponents(t *testing.T) {
	registry := health.NewRegistry(nil)
	registry.Healthy("api", "listening")
	handler := NewRouter(Dependencies{Health: registry})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	registry.Degrade("directory-watch", "watch failed", errors.New("boom"))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", res.Code, res.Body.String())
	}
}
