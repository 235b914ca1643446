// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/pointy/auth"
	"github.com/danielhkuo/pointy/cliparse"
	"github.com/danielhkuo/pointy/middleware"
	"github.com/danielhkuo/pointy/models"
	"github.com/danielhkuo/pointy/session"
	"github.com/danielhkuo/pointy/store"
)

// Header names clients authenticate with.
const (
	HeaderParticipantToken = "X-Participant-Token"
	HeaderAdminKey         = "X-Admin-Key"
)

type SessionHandler struct {
	st  store.Store
	cfg cliparse.Config
	hub *Hub
}

func NewSessionHandler(st store.Store, cfg cliparse.Config, hub *Hub) *SessionHandler {
	return &SessionHandler{st: st, cfg: cfg, hub: hub}
}

// sessionName normalizes the path's name segment; an empty result is a 400.
func (h *SessionHandler) sessionName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := models.NormalizeSessionName(r.PathValue("name"))
	if name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session name is required")
		return "", false
	}
	return name, true
}

// participant resolves the caller's session from its token header and
// checks it belongs to the named session.
func (h *SessionHandler) participant(w http.ResponseWriter, r *http.Request, name string) (*session.Session, bool) {
	return h.participantByToken(w, r.Header.Get(HeaderParticipantToken), name)
}

func (h *SessionHandler) participantByToken(w http.ResponseWriter, token, name string) (*session.Session, bool) {
	if token == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "participant token is required")
		return nil, false
	}
	sess, ok := h.hub.Get(token)
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "unknown participant token")
		return nil, false
	}
	if sess.Name() != name {
		middleware.ErrorResponse(w, http.StatusForbidden, "token belongs to a different session")
		return nil, false
	}
	return sess, true
}

// requireAdmin validates the admin key header for the named session.
func (h *SessionHandler) requireAdmin(w http.ResponseWriter, r *http.Request, name string) bool {
	key := r.Header.Get(HeaderAdminKey)
	if err := auth.ValidateAdminKey(name, key, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "invalid admin key")
		return false
	}
	return true
}

// Join handles POST /sessions/{name}/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}

	var req models.JoinSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.UserID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.UserID) < 2 || len(req.UserID) > 50 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id must be 2-50 characters")
		return
	}

	sess, err := session.Join(r.Context(), h.st, name, req.UserID)
	if err != nil {
		if store.IsPermissionDenied(err) {
			middleware.ErrorResponse(w, http.StatusForbidden, "Access to the session was denied")
			return
		}
		slog.Error("failed to join session", "session", name, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join session")
		return
	}

	token := auth.NewParticipantToken()
	h.hub.Add(token, sess)

	resp := models.JoinSessionResponse{
		SessionName:      name,
		ParticipantToken: token,
		Created:          sess.Created(),
	}
	// The creator gets the admin key for privileged operations.
	if sess.Created() {
		resp.AdminKey = auth.GenerateAdminKey(name, h.cfg.AdminKeySalt)
	}

	slog.Info("participant joined", "session", name, "user", req.UserID, "created", sess.Created())
	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// Get handles GET /sessions/{name}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}

	snap, err := h.st.Get(r.Context(), session.Path(name))
	if err != nil {
		slog.Error("failed to read session", "session", name, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Storage error")
		return
	}
	if !snap.Exists {
		middleware.ErrorResponse(w, http.StatusNotFound, "Session not found")
		return
	}

	data, err := decodeSessionData(snap.Data)
	if err != nil {
		slog.Error("corrupt session document", "session", name, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Corrupt session document")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SessionResponse{Name: name, Data: *data})
}

// Tally handles GET /sessions/{name}/tally
func (h *SessionHandler) Tally(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}

	snap, err := h.st.Get(r.Context(), session.Path(name))
	if err != nil {
		slog.Error("failed to read session", "session", name, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Storage error")
		return
	}
	if !snap.Exists {
		middleware.ErrorResponse(w, http.StatusNotFound, "Session not found")
		return
	}

	data, err := decodeSessionData(snap.Data)
	if err != nil {
		slog.Error("corrupt session document", "session", name, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Corrupt session document")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ComputeTally(*data))
}

// CastVote handles POST /sessions/{name}/vote
func (h *SessionHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}
	sess, ok := h.participant(w, r, name)
	if !ok {
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Score == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "score is required")
		return
	}
	if data := sess.Data(); data != nil && !models.ContainsScore(data.Scores, req.Score) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "score is not in the selectable deck")
		return
	}

	if err := sess.CastVote(r.Context(), req.Score); err != nil {
		slog.Error("failed to cast vote", "session", name, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearVote handles POST /sessions/{name}/clear. Clearing another
// participant's vote requires the admin key.
func (h *SessionHandler) ClearVote(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}
	sess, ok := h.participant(w, r, name)
	if !ok {
		return
	}

	var req models.ClearVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	target := req.UserID
	if target == "" {
		target = sess.UserID()
	}
	if target != sess.UserID() && !h.requireAdmin(w, r, name) {
		return
	}

	if err := sess.ClearVote(r.Context(), target); err != nil {
		slog.Error("failed to clear vote", "session", name, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to clear vote")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearAllVotes handles POST /sessions/{name}/clear-all (admin)
func (h *SessionHandler) ClearAllVotes(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}
	sess, ok := h.participant(w, r, name)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, name) {
		return
	}

	if err := sess.ClearAllVotes(r.Context()); err != nil {
		slog.Error("failed to clear votes", "session", name, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to clear votes")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leave handles POST /sessions/{name}/leave
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}
	sess, ok := h.participant(w, r, name)
	if !ok {
		return
	}

	token := r.Header.Get(HeaderParticipantToken)
	h.hub.Remove(token)
	sess.LeaveAsync()

	slog.Info("participant left", "session", name, "user", sess.UserID())
	w.WriteHeader(http.StatusNoContent)
}

// RemovePlayer handles DELETE /sessions/{name}/players/{userID}.
// Removing someone else requires the admin key; removing yourself is
// the same as leaving.
func (h *SessionHandler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}
	sess, ok := h.participant(w, r, name)
	if !ok {
		return
	}

	target := r.PathValue("userID")
	if target == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user id is required")
		return
	}
	if target != sess.UserID() && !h.requireAdmin(w, r, name) {
		return
	}

	if err := sess.RemovePlayer(r.Context(), target); err != nil {
		slog.Error("failed to remove player", "session", name, "target", target, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to remove player")
		return
	}
	if target == sess.UserID() {
		h.hub.Remove(r.Header.Get(HeaderParticipantToken))
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddScores handles POST /sessions/{name}/scores (admin)
func (h *SessionHandler) AddScores(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}
	sess, ok := h.participant(w, r, name)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, name) {
		return
	}

	var req models.AddScoresRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Scores) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "scores are required")
		return
	}

	if err := sess.AddScores(r.Context(), req.Scores...); err != nil {
		slog.Error("failed to add scores", "session", name, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add scores")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveScore handles DELETE /sessions/{name}/scores/{score} (admin)
func (h *SessionHandler) RemoveScore(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}
	sess, ok := h.participant(w, r, name)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, name) {
		return
	}

	score := r.PathValue("score")
	if score == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "score is required")
		return
	}

	if err := sess.RemoveScore(r.Context(), score); err != nil {
		slog.Error("failed to remove score", "session", name, "score", score, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to remove score")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Destroy handles DELETE /sessions/{name} (admin)
func (h *SessionHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sessionName(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, name) {
		return
	}

	err := h.st.Delete(r.Context(), session.Path(name))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Session not found")
			return
		}
		slog.Error("failed to destroy session", "session", name, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to destroy session")
		return
	}

	slog.Info("session destroyed", "session", name)
	w.WriteHeader(http.StatusNoContent)
}
