// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/danielhkuo/pointy/auth"
	"github.com/danielhkuo/pointy/cliparse"
	"github.com/danielhkuo/pointy/memstore"
	"github.com/danielhkuo/pointy/models"
	"github.com/danielhkuo/pointy/session"
	"github.com/danielhkuo/pointy/store"
)

func setupHandler(t *testing.T) (*SessionHandler, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	hub := NewHub()
	t.Cleanup(hub.DetachAll)
	cfg := cliparse.Config{
		Port:         4117,
		StoreBackend: cliparse.BackendMemory,
		AdminKeySalt: "test-admin-salt",
	}
	return NewSessionHandler(st, cfg, hub), st
}

// makeReq builds a request with the session name path value set.
func makeReq(method, name string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	target := "/sessions/" + url.PathEscape(name)
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.SetPathValue("name", name)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func joinSession(t *testing.T, h *SessionHandler, name, userID string) models.JoinSessionResponse {
	t.Helper()

	req := makeReq("POST", name, models.JoinSessionRequest{UserID: userID}, nil)
	w := httptest.NewRecorder()
	h.Join(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("join returned %d: %s", w.Code, w.Body.String())
	}
	var resp models.JoinSessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode join response: %v", err)
	}
	return resp
}

// currentDoc reads and decodes the session document straight from the store.
func currentDoc(t *testing.T, st store.Store, name string) *models.SessionData {
	t.Helper()
	snap, err := st.Get(context.Background(), session.Path(name))
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if !snap.Exists {
		return nil
	}
	data, err := decodeSessionData(snap.Data)
	if err != nil {
		t.Fatalf("corrupt document: %v", err)
	}
	return data
}

func TestJoin(t *testing.T) {
	h, st := setupHandler(t)

	alice := joinSession(t, h, "Sprint 1", "Alice")

	if alice.SessionName != "sprint-1" {
		t.Errorf("expected normalized name sprint-1, got %s", alice.SessionName)
	}
	if !alice.Created {
		t.Error("first join should report created")
	}
	if alice.ParticipantToken == "" {
		t.Error("expected a participant token")
	}
	wantKey := auth.GenerateAdminKey("sprint-1", h.cfg.AdminKeySalt)
	if alice.AdminKey != wantKey {
		t.Error("creator should receive the session admin key")
	}

	bob := joinSession(t, h, "sprint-1", "Bob")
	if bob.Created {
		t.Error("second join should not report created")
	}
	if bob.AdminKey != "" {
		t.Error("non-creator should not receive the admin key")
	}

	data := currentDoc(t, st, "sprint-1")
	if data == nil {
		t.Fatal("expected session document")
	}
	if _, ok := data.Votes["Alice"]; !ok {
		t.Error("Alice should be a voter")
	}
	if _, ok := data.Votes["Bob"]; !ok {
		t.Error("Bob should be a voter")
	}
}

func TestJoin_Validation(t *testing.T) {
	h, _ := setupHandler(t)

	tests := []struct {
		name       string
		session    string
		body       interface{}
		wantStatus int
	}{
		{"missing user id", "sprint-1", models.JoinSessionRequest{}, http.StatusBadRequest},
		{"user id too short", "sprint-1", models.JoinSessionRequest{UserID: "a"}, http.StatusBadRequest},
		{"invalid json", "sprint-1", nil, http.StatusBadRequest},
		{"empty session name", "---", models.JoinSessionRequest{UserID: "Alice"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := makeReq("POST", tt.session, tt.body, nil)
			w := httptest.NewRecorder()
			h.Join(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestGetSession(t *testing.T) {
	h, _ := setupHandler(t)

	t.Run("not found", func(t *testing.T) {
		req := makeReq("GET", "nope", nil, nil)
		w := httptest.NewRecorder()
		h.Get(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})

	t.Run("found", func(t *testing.T) {
		joinSession(t, h, "sprint-1", "Alice")

		req := makeReq("GET", "sprint-1", nil, nil)
		w := httptest.NewRecorder()
		h.Get(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp models.SessionResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Name != "sprint-1" {
			t.Errorf("unexpected name %s", resp.Name)
		}
		if len(resp.Data.Scores) != len(models.DefaultScores) {
			t.Errorf("expected default deck, got %v", resp.Data.Scores)
		}
	})
}

func TestCastVote(t *testing.T) {
	h, st := setupHandler(t)
	alice := joinSession(t, h, "sprint-1", "Alice")
	authz := map[string]string{HeaderParticipantToken: alice.ParticipantToken}

	t.Run("missing token", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", models.CastVoteRequest{Score: "5"}, nil)
		w := httptest.NewRecorder()
		h.CastVote(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", models.CastVoteRequest{Score: "5"},
			map[string]string{HeaderParticipantToken: "bogus"})
		w := httptest.NewRecorder()
		h.CastVote(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("score not in deck", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", models.CastVoteRequest{Score: "999"}, authz)
		w := httptest.NewRecorder()
		h.CastVote(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("valid vote", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", models.CastVoteRequest{Score: "5"}, authz)
		w := httptest.NewRecorder()
		h.CastVote(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
		}

		data := currentDoc(t, st, "sprint-1")
		if data.Votes["Alice"].LastScore != "5" {
			t.Errorf("vote not recorded: %+v", data.Votes["Alice"])
		}
	})
}

func TestClearVote(t *testing.T) {
	h, st := setupHandler(t)
	alice := joinSession(t, h, "sprint-1", "Alice")
	bob := joinSession(t, h, "sprint-1", "Bob")

	// Bob votes first.
	req := makeReq("POST", "sprint-1", models.CastVoteRequest{Score: "8"},
		map[string]string{HeaderParticipantToken: bob.ParticipantToken})
	w := httptest.NewRecorder()
	h.CastVote(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cast failed: %d", w.Code)
	}

	t.Run("clearing someone else needs admin key", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", models.ClearVoteRequest{UserID: "Bob"},
			map[string]string{HeaderParticipantToken: alice.ParticipantToken})
		w := httptest.NewRecorder()
		h.ClearVote(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("admin clears someone else", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", models.ClearVoteRequest{UserID: "Bob"},
			map[string]string{
				HeaderParticipantToken: alice.ParticipantToken,
				HeaderAdminKey:         alice.AdminKey,
			})
		w := httptest.NewRecorder()
		h.ClearVote(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
		}

		data := currentDoc(t, st, "sprint-1")
		if data.Votes["Bob"].Voted() {
			t.Errorf("Bob's vote should be cleared: %+v", data.Votes["Bob"])
		}
	})

	t.Run("clearing own vote needs no admin key", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", models.ClearVoteRequest{},
			map[string]string{HeaderParticipantToken: bob.ParticipantToken})
		w := httptest.NewRecorder()
		h.ClearVote(w, req)
		if w.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestClearAllVotes(t *testing.T) {
	h, st := setupHandler(t)
	alice := joinSession(t, h, "sprint-1", "Alice")

	req := makeReq("POST", "sprint-1", models.CastVoteRequest{Score: "13"},
		map[string]string{HeaderParticipantToken: alice.ParticipantToken})
	w := httptest.NewRecorder()
	h.CastVote(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cast failed: %d", w.Code)
	}

	t.Run("requires admin key", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", struct{}{},
			map[string]string{HeaderParticipantToken: alice.ParticipantToken})
		w := httptest.NewRecorder()
		h.ClearAllVotes(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("starts a new round", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", struct{}{},
			map[string]string{
				HeaderParticipantToken: alice.ParticipantToken,
				HeaderAdminKey:         alice.AdminKey,
			})
		w := httptest.NewRecorder()
		h.ClearAllVotes(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
		}

		data := currentDoc(t, st, "sprint-1")
		for user, vote := range data.Votes {
			if vote.Voted() {
				t.Errorf("%s still has a vote: %+v", user, vote)
			}
		}
	})
}

func TestDeckManagement(t *testing.T) {
	h, st := setupHandler(t)
	alice := joinSession(t, h, "sprint-1", "Alice")
	admin := map[string]string{
		HeaderParticipantToken: alice.ParticipantToken,
		HeaderAdminKey:         alice.AdminKey,
	}

	t.Run("add scores requires admin", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", models.AddScoresRequest{Scores: []string{"40"}},
			map[string]string{HeaderParticipantToken: alice.ParticipantToken})
		w := httptest.NewRecorder()
		h.AddScores(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("add scores", func(t *testing.T) {
		req := makeReq("POST", "sprint-1", models.AddScoresRequest{Scores: []string{"40"}}, admin)
		w := httptest.NewRecorder()
		h.AddScores(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
		}

		data := currentDoc(t, st, "sprint-1")
		if !models.ContainsScore(data.Scores, "40") {
			t.Errorf("expected 40 in deck, got %v", data.Scores)
		}
	})

	t.Run("remove score", func(t *testing.T) {
		req := makeReq("DELETE", "sprint-1", nil, admin)
		req.SetPathValue("score", "40")
		w := httptest.NewRecorder()
		h.RemoveScore(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
		}

		data := currentDoc(t, st, "sprint-1")
		if models.ContainsScore(data.Scores, "40") {
			t.Errorf("expected 40 removed, got %v", data.Scores)
		}
	})
}

func TestRemovePlayer(t *testing.T) {
	h, st := setupHandler(t)
	alice := joinSession(t, h, "sprint-1", "Alice")
	bob := joinSession(t, h, "sprint-1", "Bob")

	t.Run("removing someone else needs admin key", func(t *testing.T) {
		req := makeReq("DELETE", "sprint-1", nil,
			map[string]string{HeaderParticipantToken: bob.ParticipantToken})
		req.SetPathValue("userID", "Alice")
		w := httptest.NewRecorder()
		h.RemovePlayer(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("admin removes a player", func(t *testing.T) {
		req := makeReq("DELETE", "sprint-1", nil, map[string]string{
			HeaderParticipantToken: alice.ParticipantToken,
			HeaderAdminKey:         alice.AdminKey,
		})
		req.SetPathValue("userID", "Bob")
		w := httptest.NewRecorder()
		h.RemovePlayer(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
		}

		data := currentDoc(t, st, "sprint-1")
		if _, ok := data.Votes["Bob"]; ok {
			t.Error("Bob should be removed from the document")
		}
	})
}

func TestLeave(t *testing.T) {
	h, st := setupHandler(t)
	joinSession(t, h, "sprint-1", "Alice")
	bob := joinSession(t, h, "sprint-1", "Bob")

	req := makeReq("POST", "sprint-1", nil,
		map[string]string{HeaderParticipantToken: bob.ParticipantToken})
	w := httptest.NewRecorder()
	h.Leave(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	if _, ok := h.hub.Get(bob.ParticipantToken); ok {
		t.Error("token should be forgotten after leave")
	}

	// Removal is fire-and-forget; the write lands shortly after.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		data := currentDoc(t, st, "sprint-1")
		if _, ok := data.Votes["Bob"]; !ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Error("Bob was never removed from the document")
}

func TestDestroy(t *testing.T) {
	h, st := setupHandler(t)
	alice := joinSession(t, h, "sprint-1", "Alice")

	t.Run("requires admin key", func(t *testing.T) {
		req := makeReq("DELETE", "sprint-1", nil,
			map[string]string{HeaderParticipantToken: alice.ParticipantToken})
		w := httptest.NewRecorder()
		h.Destroy(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("destroys the session", func(t *testing.T) {
		req := makeReq("DELETE", "sprint-1", nil,
			map[string]string{HeaderAdminKey: alice.AdminKey})
		w := httptest.NewRecorder()
		h.Destroy(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
		}

		if data := currentDoc(t, st, "sprint-1"); data != nil {
			t.Error("document should be gone")
		}

		// Destroying again is a 404.
		req = makeReq("DELETE", "sprint-1", nil,
			map[string]string{HeaderAdminKey: alice.AdminKey})
		w = httptest.NewRecorder()
		h.Destroy(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestTallyEndpoint(t *testing.T) {
	h, _ := setupHandler(t)
	alice := joinSession(t, h, "sprint-1", "Alice")
	bob := joinSession(t, h, "sprint-1", "Bob")

	cast := func(token, score string) {
		t.Helper()
		req := makeReq("POST", "sprint-1", models.CastVoteRequest{Score: score},
			map[string]string{HeaderParticipantToken: token})
		w := httptest.NewRecorder()
		h.CastVote(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("cast failed: %d", w.Code)
		}
	}
	cast(alice.ParticipantToken, "5")
	cast(bob.ParticipantToken, "5")

	req := makeReq("GET", "sprint-1", nil, nil)
	w := httptest.NewRecorder()
	h.Tally(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var tally models.Tally
	if err := json.NewDecoder(w.Body).Decode(&tally); err != nil {
		t.Fatal(err)
	}
	if !tally.Complete {
		t.Error("both voters voted; tally should be complete")
	}
	if len(tally.Groups) != 1 || tally.Groups[0].Score != "5" {
		t.Errorf("unexpected groups: %+v", tally.Groups)
	}
	if len(tally.Groups[0].Voters) != 2 {
		t.Errorf("expected both voters in the group: %+v", tally.Groups[0])
	}
}
