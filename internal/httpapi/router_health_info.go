package httpapi

import (
	"net/http"

	"github.com/dwizi/accessbot/internal/session"
)

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store != nil {
		if err := r.deps.Store.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
			return
		}
	}
	payload := map[string]any{"status": "ready"}
	if r.deps.Health != nil {
		snapshot := r.deps.Health.Snapshot()
		payload["components"] = snapshot.Components
		if !snapshot.Ready() {
			payload["status"] = "not-ready"
			writeJSON(w, http.StatusServiceUnavailable, payload)
			return
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	payload := map[string]any{
		"name":          "accessbot",
		"environment":   r.deps.Config.Environment,
		"public_host":   r.deps.Config.PublicHost,
		"mention":       r.deps.Config.MentionToken,
		"audit_enabled": r.deps.Store != nil,
	}
	if r.deps.Sessions != nil {
		payload["sessions"] = r.deps.Sessions.Len()
	}
	if r.deps.Health != nil {
		payload["health"] = r.deps.Health.Snapshot().Overall
	}
	if r.deps.Gateway != nil {
		payload["actions"] = r.deps.Gateway.Actions()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *router) handleCommands(w http.ResponseWriter, req *http.Request) {
	if r.deps.Gateway == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "chat gateway is unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": r.deps.Gateway.Commands()})
}

func (r *router) handleParticipants(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"participants": session.Participants()})
}
