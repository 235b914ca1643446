package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielhkuo/pointy/badgerstore"
	"github.com/danielhkuo/pointy/cliparse"
	"github.com/danielhkuo/pointy/handlers"
	"github.com/danielhkuo/pointy/memstore"
	"github.com/danielhkuo/pointy/middleware"
	"github.com/danielhkuo/pointy/pgstore"
	"github.com/danielhkuo/pointy/router"
	"github.com/danielhkuo/pointy/store"
)

func main() {
	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Open the session store
	st, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Error("store initialization failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	slog.Info("Session store ready", "backend", cfg.StoreBackend)

	// Create router
	hub := handlers.NewHub()
	mux := router.NewRouter(st, cfg, hub)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		hub.DetachAll()
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}

// openStore builds the configured backend and its shutdown hook.
func openStore(cfg cliparse.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case cliparse.BackendBadger:
		st, err := badgerstore.Open(badgerstore.Options{Dir: cfg.DataDir})
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil

	case cliparse.BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		st, err := pgstore.Open(ctx, cfg.DatabaseURL, nil)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil

	default:
		return memstore.New(), func() {}, nil
	}
}
