// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the session document, derived views, and API types.

# Domain Types

The shared mutable state between clients is a single SessionData document
per session:

  - Vote: one participant's first/last score and server-assigned timestamp
  - SessionData: votes keyed by user ID plus the selectable score deck

Invariants maintained across the codebase:

  - FirstScore == "" implies LastScore == ""
  - a non-empty LastScore is always an element of Scores (clients degrade
    their own vote when the deck no longer contains it)

# Score Ordering

Scores carry a canonical order used for display and tally tie-breaking:
numeric labels first by value (fraction glyphs ¼ ½ ¾ map to 0.25/0.5/0.75,
∞ maps to +Inf), then plain words lexically, with "?" always last.
MergeScores and RemoveScore produce decks in that order.

# Tally

ComputeTally derives the read-only result view: whether the round is
complete and, per score, who settled on it. It is a pure function of the
document and is recomputed from every snapshot.

# Request/Response Types

JSON types for the HTTP surface: JoinSessionRequest/Response,
CastVoteRequest, ClearVoteRequest, AddScoresRequest, SessionResponse,
ErrorResponse.
*/
package models
