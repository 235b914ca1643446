// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Pointy API.

# Handler Types

SessionHandler carries the store, config and the hub of live sessions:

	hub := handlers.NewHub()
	sessionHandler := handlers.NewSessionHandler(st, cfg, hub)

# Session Flow

A participant joins by name and receives an opaque token:

	POST /sessions/{name}/join → Join (returns participant_token;
	                             the creator also gets admin_key)

All mutating requests carry the X-Participant-Token header. Privileged
operations (clearing all votes, editing the deck, removing others,
destroying the session) also require X-Admin-Key.

# Live Updates

Two streaming transports deliver the same event frames:

	GET /sessions/{name}/events      - server-sent events
	GET /sessions/{name}/ws?token=.. - WebSocket (commands inbound too)

Frames are {"type":"snapshot","data":{...}}, {"type":"ended"} and
{"type":"removed"}. Closing either stream leaves the session with a
fire-and-forget voter removal.

# Read Endpoints

	GET /sessions/{name}       - current document
	GET /sessions/{name}/tally - grouped results for the current round

# The Hub

The Hub maps participant tokens to live session controllers. Handlers
resolve the caller's session through it; server shutdown detaches every
tracked session.
*/
package handlers
