// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/pointy/cliparse"
	"github.com/danielhkuo/pointy/handlers"
	"github.com/danielhkuo/pointy/middleware"
	"github.com/danielhkuo/pointy/store"
)

func NewRouter(st store.Store, cfg cliparse.Config, hub *handlers.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(st, cfg, hub)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Session lifecycle
	mux.HandleFunc("POST /sessions/{name}/join", middleware.WithLogging(sessionHandler.Join))
	mux.HandleFunc("POST /sessions/{name}/leave", middleware.WithLogging(sessionHandler.Leave))
	mux.HandleFunc("DELETE /sessions/{name}", middleware.WithLogging(sessionHandler.Destroy))

	// Voting
	mux.HandleFunc("POST /sessions/{name}/vote", middleware.WithLogging(sessionHandler.CastVote))
	mux.HandleFunc("POST /sessions/{name}/clear", middleware.WithLogging(sessionHandler.ClearVote))
	mux.HandleFunc("POST /sessions/{name}/clear-all", middleware.WithLogging(sessionHandler.ClearAllVotes))

	// Deck management (admin)
	mux.HandleFunc("POST /sessions/{name}/scores", middleware.WithLogging(sessionHandler.AddScores))
	mux.HandleFunc("DELETE /sessions/{name}/scores/{score}", middleware.WithLogging(sessionHandler.RemoveScore))

	// Player management
	mux.HandleFunc("DELETE /sessions/{name}/players/{userID}", middleware.WithLogging(sessionHandler.RemovePlayer))

	// Reads
	mux.HandleFunc("GET /sessions/{name}", middleware.WithLogging(sessionHandler.Get))
	mux.HandleFunc("GET /sessions/{name}/tally", middleware.WithLogging(sessionHandler.Tally))

	// Live streams (logging middleware would hold the connection open in
	// its duration log, so these register bare)
	mux.HandleFunc("GET /sessions/{name}/events", sessionHandler.Stream)
	mux.HandleFunc("GET /sessions/{name}/ws", sessionHandler.WebSocket)

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pointy API v1"))
	})

	return mux
}
