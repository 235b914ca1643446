package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

type Config struct {
	Port         int
	StoreBackend string
	DatabaseURL  string
	DataDir      string
	AdminKeySalt string
}

// ParseFlags validates flags and sets port number
func ParseFlags(args []string) (Config, error) {
	// Best effort; a missing .env file is fine.
	_ = godotenv.Load()

	var cfg Config

	fs := flag.NewFlagSet("pointy", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.StoreBackend, "s", "", "Store backend (memory, badger or postgres)")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Postgres connection URL")
	fs.StringVar(&cfg.DataDir, "data-dir", "", "Badger data directory")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 4117 // default
		}
	}

	if cfg.StoreBackend == "" {
		cfg.StoreBackend = os.Getenv("STORE_BACKEND")
		if cfg.StoreBackend == "" {
			cfg.StoreBackend = BackendMemory
		}
	}
	switch cfg.StoreBackend {
	case BackendMemory, BackendBadger, BackendPostgres:
	default:
		return Config{}, fmt.Errorf("unknown store backend %q (use memory, badger or postgres)", cfg.StoreBackend)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.StoreBackend == BackendPostgres && cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required for postgres backend (use -d or DATABASE_URL env)")
	}

	if cfg.DataDir == "" {
		cfg.DataDir = os.Getenv("DATA_DIR")
	}
	if cfg.StoreBackend == BackendBadger && cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	return cfg, nil
}
