// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"time"

	"github.com/danielhkuo/pointy/models"
	"github.com/danielhkuo/pointy/store"
)

// leaveTimeout caps the detached remove-me write issued by LeaveAsync.
const leaveTimeout = 5 * time.Second

// All mutations below are no-ops unless the session is Active, and none
// of them touch local state: effects arrive via the snapshot round-trip.

// currentData returns the latest snapshot if the session is Active.
func (s *Session) currentData() (*models.SessionData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.data == nil {
		return nil, false
	}
	return s.data, true
}

// CastVote records score for this user. The first cast of a round pins
// FirstScore; later casts only move LastScore. Re-casting the current
// LastScore produces no write at all.
func (s *Session) CastVote(ctx context.Context, score string) error {
	data, ok := s.currentData()
	if !ok {
		return nil
	}
	current := data.Votes[s.userID]

	if current.FirstScore == "" {
		return s.st.Update(ctx, s.path,
			store.Update{Path: store.FieldPath{"votes", s.userID, "firstScore"}, Value: score},
			store.Update{Path: store.FieldPath{"votes", s.userID, "lastScore"}, Value: score},
			store.Update{Path: store.FieldPath{"votes", s.userID, "timestamp"}, Value: store.ServerTimestamp},
		)
	}
	if score == current.LastScore {
		return nil
	}
	return s.st.Update(ctx, s.path,
		store.Update{Path: store.FieldPath{"votes", s.userID, "lastScore"}, Value: score},
		store.Update{Path: store.FieldPath{"votes", s.userID, "timestamp"}, Value: store.ServerTimestamp},
	)
}

// ClearVote resets userID's vote to the all-empty state. Voter membership
// is untouched.
func (s *Session) ClearVote(ctx context.Context, userID string) error {
	if _, ok := s.currentData(); !ok {
		return nil
	}
	return s.st.Update(ctx, s.path, store.Update{
		Path:  store.FieldPath{"votes", userID},
		Value: models.Vote{},
	})
}

// ClearAllVotes resets every voter in one commit, starting a new round.
func (s *Session) ClearAllVotes(ctx context.Context) error {
	data, ok := s.currentData()
	if !ok {
		return nil
	}
	updates := make([]store.Update, 0, len(data.Votes))
	for userID := range data.Votes {
		updates = append(updates, store.Update{
			Path:  store.FieldPath{"votes", userID},
			Value: models.Vote{},
		})
	}
	if len(updates) == 0 {
		return nil
	}
	return s.st.Update(ctx, s.path, updates...)
}

// RemovePlayer deletes userID's votes entry, demoting them to observer.
// Removing yourself suppresses the "removed from session" notification the
// next snapshot would otherwise raise.
func (s *Session) RemovePlayer(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.state != StateActive || s.data == nil {
		s.mu.Unlock()
		return nil
	}
	if userID == s.userID {
		s.selfRemoval = true
	}
	s.mu.Unlock()

	return s.st.Update(ctx, s.path, store.Update{
		Path:  store.FieldPath{"votes", userID},
		Value: store.DeleteField,
	})
}

// Leave removes this user from the session.
func (s *Session) Leave(ctx context.Context) error {
	return s.RemovePlayer(ctx, s.userID)
}

// AddScores merges labels into the selectable deck, de-duplicated and
// re-sorted into canonical order.
func (s *Session) AddScores(ctx context.Context, scores ...string) error {
	data, ok := s.currentData()
	if !ok || len(scores) == 0 {
		return nil
	}
	return s.st.Update(ctx, s.path, store.Update{
		Path:  store.FieldPath{"scores"},
		Value: models.MergeScores(data.Scores, scores...),
	})
}

// RemoveScore drops a label from the deck. Votes pointing at it are left
// for each owner's reconciliation to degrade; clearing them here would
// race the voters' own writes.
func (s *Session) RemoveScore(ctx context.Context, score string) error {
	data, ok := s.currentData()
	if !ok {
		return nil
	}
	return s.st.Update(ctx, s.path, store.Update{
		Path:  store.FieldPath{"scores"},
		Value: models.RemoveScore(data.Scores, score),
	})
}

// Destroy deletes the session document for everyone.
func (s *Session) Destroy(ctx context.Context) error {
	if _, ok := s.currentData(); !ok {
		return nil
	}
	return s.st.Delete(ctx, s.path)
}
