// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"log/slog"

	"github.com/danielhkuo/pointy/models"
)

// State is the lifecycle phase of a Session.
type State int

const (
	StateIdle State = iota
	StateJoining
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventType discriminates what a Session event carries.
type EventType string

const (
	// EventSnapshot delivers the latest session document.
	EventSnapshot EventType = "snapshot"

	// EventEnded means the session document was deleted remotely.
	EventEnded EventType = "ended"

	// EventRemoved means this user is no longer a voter. Emitted for both
	// self-initiated and external removal; only the latter notifies.
	EventRemoved EventType = "removed"
)

// Event is what the presentation layer consumes from Session.Events.
type Event struct {
	Type EventType           `json:"type"`
	Data *models.SessionData `json:"data,omitempty"`
}

// Notifier surfaces short-lived human-facing messages. The engine calls it
// for lifecycle transitions and errors; it never blocks on it.
type Notifier interface {
	Info(message string)
	Error(message string)
}

// logNotifier is the default Notifier when the caller provides none.
type logNotifier struct {
	log *slog.Logger
}

func (n logNotifier) Info(message string)  { n.log.Info(message) }
func (n logNotifier) Error(message string) { n.log.Error(message) }
