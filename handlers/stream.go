// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/pointy/middleware"
	"github.com/danielhkuo/pointy/models"
	"github.com/danielhkuo/pointy/session"
)

// streamEvent is the wire shape shared by the SSE and WebSocket streams.
type streamEvent struct {
	Type string              `json:"type"`
	Data *models.SessionData `json:"data,omitempty"`
}

func wireEvent(ev session.Event) streamEvent {
	switch ev.Type {
	case session.EventEnded:
		return streamEvent{Type: "ended"}
	case session.EventRemoved:
		return streamEvent{Type: "removed"}
	default:
		return streamEvent{Type: "snapshot", Data: ev.Data}
	}
}

func decodeSessionData(raw []byte) (*models.SessionData, error) {
	var data models.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data.Votes == nil {
		data.Votes = map[string]models.Vote{}
	}
	return &data, nil
}

// Stream handles GET /sessions/{name}/events as a server-sent event
// stream. The stream owns the participant's event channel; one stream
// per participant token. Closing the stream leaves the session.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}

	// EventSource cannot set request headers, so the token may ride in
	// the token query parameter instead.
	token := r.Header.Get(HeaderParticipantToken)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	sess, ok := h.participantByToken(w, token, name)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	slog.Info("event stream opened", "session", name, "user", sess.UserID())

	for {
		select {
		case <-r.Context().Done():
			// Client went away without leaving.
			h.hub.Remove(token)
			sess.LeaveAsync()
			slog.Info("event stream dropped", "session", name, "user", sess.UserID())
			return

		case ev, open := <-sess.Events():
			if !open {
				// Terminal event already delivered; the session is done.
				h.hub.Remove(token)
				slog.Info("event stream closed", "session", name, "user", sess.UserID())
				return
			}
			payload, err := json.Marshal(wireEvent(ev))
			if err != nil {
				slog.Error("failed to encode event", "session", name, "error", err)
				continue
			}
			if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				h.hub.Remove(token)
				sess.LeaveAsync()
				return
			}
			flusher.Flush()
		}
	}
}
