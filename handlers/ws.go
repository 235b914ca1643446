// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/pointy/auth"
	"github.com/danielhkuo/pointy/middleware"
	"github.com/danielhkuo/pointy/models"
	"github.com/danielhkuo/pointy/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is handled at the HTTP layer; the socket accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsCommand is a client-to-server frame on the WebSocket stream.
type wsCommand struct {
	Action   string   `json:"action"`
	Score    string   `json:"score,omitempty"`
	Scores   []string `json:"scores,omitempty"`
	UserID   string   `json:"user_id,omitempty"`
	AdminKey string   `json:"admin_key,omitempty"`
}

// wsError is sent back when a command is rejected.
type wsError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WebSocket handles GET /sessions/{name}/ws. Browsers cannot set custom
// headers on a WebSocket handshake, so the participant token rides in
// the token query parameter. Closing the socket leaves the session.
func (h *SessionHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "token query parameter is required")
		return
	}
	sess, ok := h.hub.Get(token)
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "unknown participant token")
		return
	}
	if sess.Name() != name {
		middleware.ErrorResponse(w, http.StatusForbidden, "token belongs to a different session")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "session", name, "error", err)
		return
	}
	defer conn.Close()

	slog.Info("websocket opened", "session", name, "user", sess.UserID())

	// gorilla permits a single concurrent writer, so both session events
	// and command error replies funnel through one outbound channel.
	outbound := make(chan interface{}, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	// Session events pump.
	events := make(chan struct{})
	go func() {
		defer close(events)
		for ev := range sess.Events() {
			select {
			case outbound <- wireEvent(ev):
			case <-writerDone:
				return
			}
		}
	}()

	// Read loop; commands run on the request context.
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		if msg, ok := h.dispatch(r.Context(), sess, name, cmd); !ok {
			select {
			case outbound <- wsError{Type: "error", Message: msg}:
			case <-writerDone:
			}
		}
		if cmd.Action == "leave" || cmd.Action == "destroy" {
			break
		}
	}

	h.hub.Remove(token)
	sess.LeaveAsync()
	<-events
	close(outbound)
	<-writerDone
	slog.Info("websocket closed", "session", name, "user", sess.UserID())
}

// dispatch runs one command, returning an error message when rejected.
func (h *SessionHandler) dispatch(ctx context.Context, sess *session.Session, name string, cmd wsCommand) (string, bool) {
	admin := func() bool {
		return auth.ValidateAdminKey(name, cmd.AdminKey, h.cfg.AdminKeySalt) == nil
	}

	switch cmd.Action {
	case "vote":
		if cmd.Score == "" {
			return "score is required", false
		}
		if data := sess.Data(); data != nil && !models.ContainsScore(data.Scores, cmd.Score) {
			return "score is not in the selectable deck", false
		}
		if err := sess.CastVote(ctx, cmd.Score); err != nil {
			return "failed to cast vote", false
		}
	case "clear":
		target := cmd.UserID
		if target == "" {
			target = sess.UserID()
		}
		if target != sess.UserID() && !admin() {
			return "invalid admin key", false
		}
		if err := sess.ClearVote(ctx, target); err != nil {
			return "failed to clear vote", false
		}
	case "clear_all":
		if !admin() {
			return "invalid admin key", false
		}
		if err := sess.ClearAllVotes(ctx); err != nil {
			return "failed to clear votes", false
		}
	case "add_scores":
		if !admin() {
			return "invalid admin key", false
		}
		if len(cmd.Scores) == 0 {
			return "scores are required", false
		}
		if err := sess.AddScores(ctx, cmd.Scores...); err != nil {
			return "failed to add scores", false
		}
	case "remove_score":
		if !admin() {
			return "invalid admin key", false
		}
		if cmd.Score == "" {
			return "score is required", false
		}
		if err := sess.RemoveScore(ctx, cmd.Score); err != nil {
			return "failed to remove score", false
		}
	case "remove_player":
		if cmd.UserID == "" {
			return "user_id is required", false
		}
		if cmd.UserID != sess.UserID() && !admin() {
			return "invalid admin key", false
		}
		if err := sess.RemovePlayer(ctx, cmd.UserID); err != nil {
			return "failed to remove player", false
		}
	case "leave":
		// Teardown happens when the read loop exits.
	case "destroy":
		if !admin() {
			return "invalid admin key", false
		}
		if err := sess.Destroy(ctx); err != nil {
			return "failed to destroy session", false
		}
	default:
		return "unknown action", false
	}
	return "", true
}
