// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first (via godotenv),
so local development can keep secrets out of the shell.

# Config Fields

  - Port: Server listen port (default: 4117)
  - StoreBackend: memory, badger or postgres (default: memory)
  - DatabaseURL: PostgreSQL connection string (required for postgres)
  - DataDir: Badger data directory (default: ./data)
  - AdminKeySalt: Secret for admin key HMAC (required)

# CLI Flags

	-p          Server port
	-s          Store backend
	-d          Postgres connection URL
	--data-dir  Badger data directory
	--admin-salt Admin key salt

# Environment Variables

Flags fall back to environment variables:

	PORT           → -p
	STORE_BACKEND  → -s
	DATABASE_URL   → -d
	DATA_DIR       → --data-dir
	ADMIN_KEY_SALT → --admin-salt

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if required values are missing:

  - ADMIN_KEY_SALT must be provided
  - DATABASE_URL must be provided when the backend is postgres
  - the backend must be one of memory, badger, postgres

# Example

	// In main.go
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	st := memstore.New()
	mux := router.NewRouter(st, cfg)
*/
package cliparse
