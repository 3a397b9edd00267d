package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dwizi/accessbot/internal/approval"
	"github.com/dwizi/accessbot/internal/config"
	"github.com/dwizi/accessbot/internal/gateway"
	"github.com/dwizi/accessbot/internal/health"
	"github.com/dwizi/accessbot/internal/session"
	"github.com/dwizi/accessbot/internal/store"
	"github.com/gorilla/websocket"
)

type Dependencies struct {
	Config   config.Config
	Store    *store.Store
	Sessions *session.Manager
	Gateway  *gateway.Service
	Health   *health.Registry
	Logger   *slog.Logger
}

type router struct {
	deps     Dependencies
	upgrader websocket.Upgrader
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{
		deps: deps,
		upgrader: websocket.Upgrader{
			CheckOrigin:     sameOrigin(deps.Config.PublicHost),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.handleHealth)
	mux.HandleFunc("GET /readyz", rt.handleReady)
	mux.HandleFunc("GET /api/v1/info", rt.handleInfo)
	mux.HandleFunc("GET /api/v1/commands", rt.handleCommands)
	mux.HandleFunc("GET /api/v1/participants", rt.handleParticipants)
	mux.HandleFunc("POST /api/v1/sessions", rt.handleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", rt.handleListMessages)
	mux.HandleFunc("POST /api/v1/sessions/{id}/messages", rt.handlePostMessage)
	mux.HandleFunc("POST /api/v1/sessions/{id}/actions", rt.handleAction)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/user", rt.handleSwitchUser)
	mux.HandleFunc("GET /api/v1/sessions/{id}/approvals", rt.handleApprovals)
	mux.HandleFunc("GET /api/v1/sessions/{id}/approvals/{request}", rt.handleApproval)
	mux.HandleFunc("GET /api/v1/sessions/{id}/stream", rt.handleStream)
	mux.HandleFunc("GET /api/v1/audit", rt.handleAudit)
	return mux
}

func (r *router) lookupSession(w http.ResponseWriter, req *http.Request) (*session.Session, bool) {
	if r.deps.Sessions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sessions are unavailable"})
		return nil, false
	}
	sess, err := r.deps.Sessions.Get(req.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

// sameOrigin accepts browser upgrades from the serving host or the configured
// public host. Requests without an Origin header come from non-browser
// clients and are accepted.
func sameOrigin(publicHost string) func(*http.Request) bool {
	publicHost = strings.ToLower(strings.TrimSpace(publicHost))
	return func(req *http.Request) bool {
		origin := strings.TrimSpace(req.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		parsed, err := url.Parse(origin)
		if err != nil || parsed.Host == "" {
			return false
		}
		if strings.EqualFold(parsed.Host, req.Host) {
			return true
		}
		return publicHost != "" && strings.EqualFold(parsed.Hostname(), publicHost)
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, approval.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, approval.ErrNotPending),
		errors.Is(err, approval.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrUnknownAction),
		errors.Is(err, gateway.ErrInvalidPayload),
		errors.Is(err, gateway.ErrEmptyMessage),
		errors.Is(err, approval.ErrInvalidDecision),
		errors.Is(err, session.ErrUnknownParticipant):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
