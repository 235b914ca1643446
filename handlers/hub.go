// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"sync"

	"github.com/danielhkuo/pointy/session"
)

// Hub tracks live participant sessions by their opaque token.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewHub() *Hub {
	return &Hub{sessions: map[string]*session.Session{}}
}

func (h *Hub) Add(token string, sess *session.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[token] = sess
}

func (h *Hub) Get(token string) (*session.Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sess, ok := h.sessions[token]
	return sess, ok
}

// Remove forgets the token and returns the session it pointed at, if any.
func (h *Hub) Remove(token string) (*session.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sess, ok := h.sessions[token]
	if ok {
		delete(h.sessions, token)
	}
	return sess, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// DetachAll stops every tracked session. Used on server shutdown.
func (h *Hub) DetachAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for token, sess := range h.sessions {
		sess.Detach()
		delete(h.sessions, token)
	}
}
