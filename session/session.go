// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danielhkuo/pointy/models"
	"github.com/danielhkuo/pointy/store"
)

const collection = "planning"

// eventBuffer bounds undelivered events; a slow consumer loses the oldest
// snapshot events but always receives the latest and any terminal event.
const eventBuffer = 32

var (
	ErrEmptyName   = errors.New("session: empty session name")
	ErrEmptyUserID = errors.New("session: empty user id")
)

// Path returns the store key for a normalized session name.
func Path(name string) string {
	return collection + "/" + name
}

// Option configures a Session before it joins.
type Option func(*Session)

// WithNotifier routes human-facing messages to n instead of the log.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// Session is one user's live connection to a shared planning session.
//
// It joins (or lazily creates) the session document with a single
// transaction, then mirrors the document through the store subscription.
// All mutations are plain field-level writes whose effect becomes visible
// only once the subscription delivers the resulting snapshot; the engine
// never applies its own writes optimistically.
type Session struct {
	st     store.Store
	name   string
	path   string
	userID string

	notifier Notifier
	log      *slog.Logger

	mu          sync.Mutex
	state       State
	data        *models.SessionData
	created     bool
	selfRemoval bool
	cancel      func()
	closed      bool

	events chan Event

	ready     chan struct{}
	readyOnce sync.Once
}

// Join runs the join/create transaction for name as userID, opens the
// snapshot subscription, and waits for the first snapshot so callers get a
// populated session. The context governs only the join itself; the session
// then lives until the document disappears, the user is removed, or the
// caller detaches.
func Join(ctx context.Context, st store.Store, name, userID string, opts ...Option) (*Session, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	s := &Session{
		st:     st,
		name:   name,
		path:   Path(name),
		userID: userID,
		state:  StateJoining,
		log:    slog.Default(),
		events: make(chan Event, eventBuffer),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = logNotifier{log: s.log}
	}

	if err := s.joinTransaction(ctx); err != nil {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		if store.IsPermissionDenied(err) {
			s.notifier.Error("Access to the session was denied.")
		} else {
			s.notifier.Error("Could not join the session: " + err.Error())
		}
		return nil, err
	}

	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()

	cancel, err := st.Subscribe(s.path, s.onSnapshot)
	if err != nil {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		s.notifier.Error("Could not subscribe to session updates: " + err.Error())
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateClosed {
		// A terminal snapshot raced the handshake; drop the subscription.
		s.mu.Unlock()
		cancel()
	} else {
		s.cancel = cancel
		s.mu.Unlock()
	}

	select {
	case <-s.ready:
	case <-ctx.Done():
		s.Detach()
		return nil, ctx.Err()
	}

	s.log.Info("joined session", "session", s.name, "user", s.userID, "created", s.Created())
	return s, nil
}

// joinTransaction creates the document on first join or adds this user as
// a voter. The function derives everything from the read inside it and is
// safe for the store to re-run on conflict.
func (s *Session) joinTransaction(ctx context.Context) error {
	return s.st.RunTransaction(ctx, s.path, func(tx store.Txn) error {
		snap, err := tx.Get()
		if err != nil {
			return err
		}

		if !snap.Exists {
			fresh := models.NewSessionData()
			fresh.Votes[s.userID] = models.Vote{}
			doc, err := json.Marshal(fresh)
			if err != nil {
				return fmt.Errorf("session: encode new document: %w", err)
			}
			tx.Set(doc)
			s.setCreated(true)
			return nil
		}
		s.setCreated(false)

		var data models.SessionData
		if err := json.Unmarshal(snap.Data, &data); err != nil {
			return fmt.Errorf("session: decode document: %w", err)
		}
		if _, ok := data.Votes[s.userID]; !ok {
			tx.Update(store.Update{
				Path:  store.FieldPath{"votes", s.userID},
				Value: models.Vote{},
			})
		}
		return nil
	})
}

func (s *Session) setCreated(created bool) {
	s.mu.Lock()
	s.created = created
	s.mu.Unlock()
}

// onSnapshot is the subscription callback. It runs on the store's delivery
// goroutine, concurrently with in-flight mutation calls.
func (s *Session) onSnapshot(snap store.Snapshot) {
	if !snap.Exists {
		s.mu.Lock()
		if s.state == StateClosed {
			s.mu.Unlock()
			return
		}
		s.state = StateClosed
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		s.notifier.Info("The session has ended.")
		s.finish(&Event{Type: EventEnded})
		return
	}

	var data models.SessionData
	if err := json.Unmarshal(snap.Data, &data); err != nil {
		s.log.Error("malformed session snapshot", "session", s.name, "error", err)
		return
	}
	if data.Votes == nil {
		data.Votes = map[string]models.Vote{}
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}

	vote, isVoter := data.Votes[s.userID]
	if !isVoter {
		selfInflicted := s.selfRemoval
		s.selfRemoval = false
		s.state = StateClosed
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if !selfInflicted {
			s.notifier.Info("You have been removed from the session.")
		}
		s.finish(&Event{Type: EventRemoved})
		return
	}

	s.data = &data
	s.mu.Unlock()
	s.signalReady()

	// Invariant repair: our own vote must point at a selectable score.
	// The repair writes the all-empty vote, which satisfies the invariant,
	// so it cannot re-trigger on the snapshot it produces.
	if vote.Voted() && !models.ContainsScore(data.Scores, vote.LastScore) {
		if err := s.ClearVote(context.Background(), s.userID); err != nil {
			s.log.Warn("failed to clear invalidated vote",
				"session", s.name, "score", vote.LastScore, "error", err)
		}
	}

	s.emit(Event{Type: EventSnapshot, Data: copySessionData(&data)})
}

func (s *Session) signalReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// emit queues an event without ever blocking the delivery goroutine. When
// the consumer is behind, the oldest queued event is dropped first.
func (s *Session) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.emitLocked(ev)
}

func (s *Session) emitLocked(ev Event) {
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}

// finish emits an optional terminal event and closes the events channel,
// exactly once.
func (s *Session) finish(ev *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if ev != nil {
		s.emitLocked(*ev)
	}
	close(s.events)
	s.signalReady()
}

// Detach unsubscribes and closes the event channel without leaving the
// session; the user stays a voter. Used when the owning surface goes away.
func (s *Session) Detach() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		s.finish(nil)
		return
	}
	s.state = StateClosed
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.finish(nil)
}

// LeaveAsync detaches immediately and issues the remove-me write as a
// detached best-effort task. Meant for abrupt teardown (process exit,
// connection drop); delivery is not guaranteed and errors are not
// reported.
func (s *Session) LeaveAsync() {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.selfRemoval = true
	s.mu.Unlock()

	s.Detach()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		err := s.st.Update(ctx, s.path, store.Update{
			Path:  store.FieldPath{"votes", s.userID},
			Value: store.DeleteField,
		})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Debug("best-effort leave failed", "session", s.name, "error", err)
		}
	}()
}

// Events returns the channel the presentation layer consumes. It is closed
// when the session reaches the Closed state.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Name returns the normalized session name.
func (s *Session) Name() string { return s.name }

// UserID returns the identity this session was joined as.
func (s *Session) UserID() string { return s.userID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Created reports whether this client's join created the document.
func (s *Session) Created() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Data returns a copy of the latest snapshot, or nil before the first one.
func (s *Session) Data() *models.SessionData {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil
	}
	return copySessionData(s.data)
}

func copySessionData(in *models.SessionData) *models.SessionData {
	out := &models.SessionData{
		Votes:  make(map[string]models.Vote, len(in.Votes)),
		Scores: append([]string(nil), in.Scores...),
	}
	for k, v := range in.Votes {
		out.Votes[k] = v
	}
	return out
}
