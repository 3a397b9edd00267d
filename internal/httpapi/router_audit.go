package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dwizi/accessbot/internal/approval"
	"github.com/dwizi/accessbot/internal/store"
)

func (r *router) handleAudit(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "audit archive is disabled"})
		return
	}
	query := req.URL.Query()
	limit := 50
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	var decision approval.Decision
	if raw := strings.TrimSpace(query.Get("decision")); raw != "" {
		parsed, err := approval.ParseDecision(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		decision = parsed
	}
	records, err := r.deps.Store.ListAuditRecords(req.Context(), store.ListAuditRecordsInput{
		SessionID: query.Get("session_id"),
		RequestID: query.Get("request_id"),
		Decision:  string(decision),
		Limit:     limit,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}
