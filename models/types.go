// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// DefaultScores is the selectable score deck a session starts with.
var DefaultScores = []string{"0", "1", "2", "3", "5", "8", "13", "21", "∞", "?"}

// Vote is one participant's voting state for the current round.
//
// FirstScore is the score chosen the first time in the round and does not
// change until the round is cleared. LastScore is the current (possibly
// revised) choice. An empty string means unvoted; FirstScore == "" implies
// LastScore == "". Timestamp is assigned by the store on write and is used
// only for ordering.
type Vote struct {
	FirstScore string     `json:"firstScore"`
	LastScore  string     `json:"lastScore"`
	Timestamp  *time.Time `json:"timestamp"`
}

// Voted reports whether the participant has a score on the table.
func (v Vote) Voted() bool {
	return v.LastScore != ""
}

// SessionData is the single shared document backing a session.
//
// A key's presence in Votes means that user is a voter in the current
// round; absence means observer. Scores is the selectable deck in
// canonical display order.
type SessionData struct {
	Votes  map[string]Vote `json:"votes"`
	Scores []string        `json:"scores"`
}

// NewSessionData returns the document written when a session is first created.
func NewSessionData() SessionData {
	return SessionData{
		Votes:  map[string]Vote{},
		Scores: append([]string(nil), DefaultScores...),
	}
}

// Request types

type JoinSessionRequest struct {
	UserID string `json:"user_id"`
}

type CastVoteRequest struct {
	Score string `json:"score"`
}

type ClearVoteRequest struct {
	UserID string `json:"user_id"`
}

type AddScoresRequest struct {
	Scores []string `json:"scores"`
}

// Response types

type JoinSessionResponse struct {
	SessionName      string `json:"session_name"`
	ParticipantToken string `json:"participant_token"`
	AdminKey         string `json:"admin_key,omitempty"`
	Created          bool   `json:"created"`
}

type SessionResponse struct {
	Name string      `json:"name"`
	Data SessionData `json:"data"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
