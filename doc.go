// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Pointy API server.

Pointy is a real-time planning poker service: named sessions share a
single live document of voters, votes and a selectable score deck, and
every participant sees changes as they land.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	ADMIN_KEY_SALT=... go run main.go

Or with flags:

	go run main.go -p 4117 -s badger --data-dir ./data --admin-salt ...

# Configuration

Required settings:

  - ADMIN_KEY_SALT (--admin-salt): Secret for admin key HMAC

Optional settings:

  - PORT (-p): Server port (default: 4117)
  - STORE_BACKEND (-s): memory, badger or postgres (default: memory)
  - DATABASE_URL (-d): PostgreSQL connection string (postgres backend)
  - DATA_DIR (--data-dir): Badger directory (default: ./data)

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers, SSE and WebSocket streams, the hub
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Session document, score ordering, tally, request/response types
  - session: Per-participant session controller (join, mutate, watch)
  - store: Document store contract and shared snapshot fan-out
  - memstore, badgerstore, pgstore: Store backends
  - auth: Admin keys and participant tokens
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
