// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Pointy API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	hub := handlers.NewHub()
	mux := router.NewRouter(st, cfg, hub)

# Endpoints

Health:

	GET /health

Session lifecycle:

	POST   /sessions/{name}/join  - Join (creates on first join)
	POST   /sessions/{name}/leave - Leave the session
	DELETE /sessions/{name}       - Destroy (requires X-Admin-Key)

Voting (requires X-Participant-Token):

	POST /sessions/{name}/vote      - Cast or revise a vote
	POST /sessions/{name}/clear     - Clear a vote
	POST /sessions/{name}/clear-all - Start a new round (admin)

Deck management (admin):

	POST   /sessions/{name}/scores         - Add selectable scores
	DELETE /sessions/{name}/scores/{score} - Remove a selectable score

Player management:

	DELETE /sessions/{name}/players/{userID} - Remove a player
	                                           (admin unless self)

Reads (public):

	GET /sessions/{name}       - Current session document
	GET /sessions/{name}/tally - Grouped round results

Live streams:

	GET /sessions/{name}/events       - Server-sent events
	GET /sessions/{name}/ws?token=... - WebSocket

# Handler Initialization

The router creates the session handler with dependency injection:

	sessionHandler := handlers.NewSessionHandler(st, cfg, hub)

The handler receives the store, configuration and the shared hub.
*/
package router
