// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/pointy/session"
)

func newWSServer(t *testing.T, h *SessionHandler) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/{name}/ws", h.WebSocket)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, name, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + name + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v (resp %+v)", err, resp)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame decodes the next server frame into a generic map.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame map[string]json.RawMessage
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func frameType(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	if err := json.Unmarshal(frame["type"], &typ); err != nil {
		t.Fatalf("frame without type: %v", err)
	}
	return typ
}

func TestWebSocket_VoteRoundTrip(t *testing.T) {
	h, st := setupHandler(t)
	srv := newWSServer(t, h)

	alice := joinSession(t, h, "sprint-1", "Alice")
	conn := dialWS(t, srv, "sprint-1", alice.ParticipantToken)

	// First frame is the current snapshot.
	first := readFrame(t, conn)
	if frameType(t, first) != "snapshot" {
		t.Fatalf("expected snapshot first, got %s", frameType(t, first))
	}

	if err := conn.WriteJSON(wsCommand{Action: "vote", Score: "13"}); err != nil {
		t.Fatal(err)
	}

	// The vote comes back as a snapshot frame.
	for {
		frame := readFrame(t, conn)
		if frameType(t, frame) != "snapshot" {
			continue
		}
		var data struct {
			Votes map[string]struct {
				LastScore string `json:"lastScore"`
			} `json:"votes"`
		}
		if err := json.Unmarshal(frame["data"], &data); err != nil {
			t.Fatal(err)
		}
		if data.Votes["Alice"].LastScore == "13" {
			break
		}
	}

	snap, err := st.Get(context.Background(), session.Path("sprint-1"))
	if err != nil || !snap.Exists {
		t.Fatalf("document missing: %v", err)
	}
}

func TestWebSocket_RejectsBadCommands(t *testing.T) {
	h, _ := setupHandler(t)
	srv := newWSServer(t, h)

	alice := joinSession(t, h, "sprint-1", "Alice")
	conn := dialWS(t, srv, "sprint-1", alice.ParticipantToken)
	readFrame(t, conn) // initial snapshot

	tests := []struct {
		name string
		cmd  wsCommand
	}{
		{"unknown action", wsCommand{Action: "explode"}},
		{"vote without score", wsCommand{Action: "vote"}},
		{"clear-all without admin key", wsCommand{Action: "clear_all"}},
		{"remove score without admin key", wsCommand{Action: "remove_score", Score: "13"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteJSON(tt.cmd); err != nil {
				t.Fatal(err)
			}
			frame := readFrame(t, conn)
			if frameType(t, frame) != "error" {
				t.Fatalf("expected error frame, got %s", frameType(t, frame))
			}
		})
	}
}

func TestWebSocket_AdminCommands(t *testing.T) {
	h, _ := setupHandler(t)
	srv := newWSServer(t, h)

	alice := joinSession(t, h, "sprint-1", "Alice")
	conn := dialWS(t, srv, "sprint-1", alice.ParticipantToken)
	readFrame(t, conn) // initial snapshot

	cmd := wsCommand{Action: "add_scores", Scores: []string{"100"}, AdminKey: alice.AdminKey}
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatal(err)
	}

	for {
		frame := readFrame(t, conn)
		if frameType(t, frame) != "snapshot" {
			continue
		}
		var data struct {
			Scores []string `json:"scores"`
		}
		if err := json.Unmarshal(frame["data"], &data); err != nil {
			t.Fatal(err)
		}
		for _, s := range data.Scores {
			if s == "100" {
				return
			}
		}
	}
}

func TestWebSocket_CloseLeavesSession(t *testing.T) {
	h, st := setupHandler(t)
	srv := newWSServer(t, h)

	joinSession(t, h, "sprint-1", "Alice")
	bob := joinSession(t, h, "sprint-1", "Bob")
	conn := dialWS(t, srv, "sprint-1", bob.ParticipantToken)
	readFrame(t, conn) // initial snapshot

	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := st.Get(context.Background(), session.Path("sprint-1"))
		if err != nil {
			t.Fatal(err)
		}
		if snap.Exists {
			data, err := decodeSessionData(snap.Data)
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := data.Votes["Bob"]; !ok {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Error("closing the socket should remove Bob from the session")
}

func TestWebSocket_RequiresToken(t *testing.T) {
	h, _ := setupHandler(t)
	srv := newWSServer(t, h)
	joinSession(t, h, "sprint-1", "Alice")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/sprint-1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 handshake response, got %+v", resp)
	}
}
