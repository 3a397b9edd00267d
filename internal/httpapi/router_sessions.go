package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dwizi/accessbot/internal/gateway"
	"github.com/dwizi/accessbot/internal/session"
	"github.com/dwizi/accessbot/internal/store"
	"github.com/dwizi/accessbot/internal/transcript"
)

type createSessionRequest struct {
	Participant string `json:"participant"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}

type switchUserRequest struct {
	Participant string `json:"participant"`
}

func (r *router) handleCreateSession(w http.ResponseWriter, req *http.Request) {
	if r.deps.Sessions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sessions are unavailable"})
		return
	}
	var payload createSessionRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	sess, err := r.deps.Sessions.Create(payload.Participant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id":  sess.ID(),
		"participant": sess.Participant(),
		"messages":    sess.Transcript().Since(0),
	})
}

// handleListMessages returns the transcript. With ?after=N only messages whose
// index is greater than N are returned.
func (r *router) handleListMessages(w http.ResponseWriter, req *http.Request) {
	sess, ok := r.lookupSession(w, req)
	if !ok {
		return
	}
	from, err := parseAfter(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	messages := sess.Transcript().Since(from)
	if messages == nil {
		messages = []transcript.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID(),
		"messages":   messages,
		"next":       sess.Transcript().Len(),
	})
}

func (r *router) handlePostMessage(w http.ResponseWriter, req *http.Request) {
	sess, ok := r.lookupSession(w, req)
	if !ok {
		return
	}
	if r.deps.Gateway == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "chat gateway is unavailable"})
		return
	}
	var payload postMessageRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	output, err := r.deps.Gateway.HandleMessage(req.Context(), sess, gateway.MessageInput{Text: payload.Text})
	if err != nil {
		writeError(w, err)
		return
	}
	response := map[string]any{
		"message":   output.Message,
		"addressed": output.Addressed,
		"scheduled": len(output.Scheduled),
	}
	if output.Addressed {
		response["command"] = map[string]any{
			"verb": string(output.Command.Verb),
			"args": output.Command.Args,
		}
	}
	writeJSON(w, http.StatusAccepted, response)
}

func (r *router) handleAction(w http.ResponseWriter, req *http.Request) {
	sess, ok := r.lookupSession(w, req)
	if !ok {
		return
	}
	if r.deps.Gateway == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "chat gateway is unavailable"})
		return
	}
	var payload gateway.ActionInput
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	output, err := r.deps.Gateway.HandleAction(req.Context(), sess, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

func (r *router) handleSwitchUser(w http.ResponseWriter, req *http.Request) {
	sess, ok := r.lookupSession(w, req)
	if !ok {
		return
	}
	var payload switchUserRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	participant, err := sess.SwitchUser(payload.Participant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]session.Participant{"participant": participant})
}

func (r *router) handleApprovals(w http.ResponseWriter, req *http.Request) {
	sess, ok := r.lookupSession(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID(),
		"approvals":  sess.Workflow().List(),
	})
}

// handleApproval returns one request with the decisions archived for it.
func (r *router) handleApproval(w http.ResponseWriter, req *http.Request) {
	sess, ok := r.lookupSession(w, req)
	if !ok {
		return
	}
	request, err := sess.Workflow().Get(req.PathValue("request"))
	if err != nil {
		writeError(w, err)
		return
	}
	audit := []store.AuditRecord{}
	if r.deps.Store != nil && request.AuditID != "" {
		audit, err = r.deps.Store.ListAuditRecordsForRequest(req.Context(), sess.ID(), request.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID(),
		"approval":   request,
		"audit":      audit,
	})
}

func parseAfter(req *http.Request) (int, error) {
	raw := strings.TrimSpace(req.URL.Query().Get("after"))
	if raw == "" {
		return 0, nil
	}
	after, err := strconv.Atoi(raw)
	if err != nil || after < -1 {
		return 0, errors.New("after must be a message index")
	}
	return after + 1, nil
}
