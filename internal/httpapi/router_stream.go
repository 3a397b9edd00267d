package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dwizi/accessbot/internal/transcript"
	"github.com/gorilla/websocket"
)

const (
	streamPingInterval = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

type streamEvent struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	Message   transcript.Message `json:"message"`
}

// handleStream pushes transcript messages over a websocket in index order,
// starting after ?after=N. All writes happen on this goroutine; the reader
// goroutine only watches for the client going away.
func (r *router) handleStream(w http.ResponseWriter, req *http.Request) {
	sess, ok := r.lookupSession(w, req)
	if !ok {
		return
	}
	next, err := parseAfter(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.deps.Logger.Warn("websocket upgrade failed", "session_id", sess.ID(), "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					r.deps.Logger.Debug("websocket read failed", "session_id", sess.ID(), "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()
	log := sess.Transcript()
	for {
		updated := log.Updated()
		for _, message := range log.Since(next) {
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(streamEvent{Type: "message", SessionID: sess.ID(), Message: message}); err != nil {
				r.deps.Logger.Debug("websocket write failed", "session_id", sess.ID(), "error", err)
				return
			}
			next = message.Index + 1
		}
		select {
		case <-ctx.Done():
			return
		case <-updated:
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
