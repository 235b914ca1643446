// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/danielhkuo/pointy/store"
)

// notifyChannel carries the path of every committed document change.
const notifyChannel = "pointy_doc"

const schema = `
CREATE TABLE IF NOT EXISTS session_doc (
	path    TEXT PRIMARY KEY,
	doc     JSONB,
	version BIGINT NOT NULL DEFAULT 0
)`

// Store implements the store contract on PostgreSQL. Writers serialize
// per path with an advisory transaction lock, and committed changes are
// announced over LISTEN/NOTIFY so every process sees them. A deleted
// document keeps its row with a NULL doc so the version stays monotone.
type Store struct {
	db       *sql.DB
	listener *pq.Listener
	log      *slog.Logger

	bmu          sync.Mutex
	broadcasters map[string]*store.Broadcaster

	closeOnce sync.Once
	closed    chan struct{}
}

var _ store.Store = (*Store)(nil)

func Open(ctx context.Context, conninfo string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("postgres", conninfo)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", mapError(err))
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgstore: schema: %w", mapError(err))
	}

	listener := pq.NewListener(conninfo, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("pgstore listener event", "event", int(ev), "error", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		db.Close()
		return nil, fmt.Errorf("pgstore: listen: %w", err)
	}

	s := &Store{
		db:           db,
		listener:     listener,
		log:          log,
		broadcasters: map[string]*store.Broadcaster{},
		closed:       make(chan struct{}),
	}
	go s.notifyLoop()
	return s, nil
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	lerr := s.listener.Close()
	derr := s.db.Close()
	if lerr != nil {
		return lerr
	}
	return derr
}

// notifyLoop turns NOTIFY payloads into fresh snapshot publishes. The
// payload is the document path; the current state is re-read because a
// notification only says that something changed.
func (s *Store) notifyLoop() {
	for {
		select {
		case <-s.closed:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnect marker; nothing to re-read for.
				continue
			}
			s.republish(n.Extra)
		case <-time.After(time.Minute):
			if err := s.listener.Ping(); err != nil {
				s.log.Warn("pgstore listener ping failed", "error", err)
			}
		}
	}
}

func (s *Store) republish(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := s.Get(ctx, path)
	if err != nil {
		s.log.Warn("pgstore re-read after notify failed", "path", path, "error", err)
		return
	}
	s.broadcaster(path).Publish(snap)
}

func (s *Store) broadcaster(path string) *store.Broadcaster {
	s.bmu.Lock()
	defer s.bmu.Unlock()
	b, ok := s.broadcasters[path]
	if !ok {
		b = store.NewBroadcaster()
		s.broadcasters[path] = b
	}
	return b
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func readSnapshot(ctx context.Context, q querier, path string) (store.Snapshot, error) {
	var (
		doc     sql.NullString
		version int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT doc, version FROM session_doc WHERE path = $1`, path,
	).Scan(&doc, &version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return store.Snapshot{}, nil
	case err != nil:
		return store.Snapshot{}, mapError(err)
	}

	snap := store.Snapshot{Version: uint64(version)}
	if doc.Valid {
		snap.Exists = true
		snap.Data = []byte(doc.String)
	}
	return snap, nil
}

func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	return readSnapshot(ctx, s.db, path)
}

// txn stages the write intent produced by a transaction function.
type txn struct {
	read    store.Snapshot
	setDoc  []byte
	hasSet  bool
	updates []store.Update
}

func (t *txn) Get() (store.Snapshot, error) { return t.read, nil }

func (t *txn) Set(doc []byte) {
	t.setDoc = append([]byte(nil), doc...)
	t.hasSet = true
}

func (t *txn) Update(updates ...store.Update) {
	t.updates = append(t.updates, updates...)
}

// withPathLock runs fn inside a database transaction that holds the
// path's advisory lock, so concurrent writers to one document serialize.
func (s *Store) withPathLock(ctx context.Context, path string, fn func(dbtx *sql.Tx) error) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, path,
	); err != nil {
		return mapError(err)
	}
	if err := fn(dbtx); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) RunTransaction(ctx context.Context, path string, fn func(store.Txn) error) error {
	var committed *store.Snapshot
	err := s.withPathLock(ctx, path, func(dbtx *sql.Tx) error {
		read, err := readSnapshot(ctx, dbtx, path)
		if err != nil {
			return err
		}

		t := &txn{read: read}
		if err := fn(t); err != nil {
			return err
		}

		data, dirty, err := resolve(read, t)
		if err != nil || !dirty {
			return err
		}
		snap, err := writeDoc(ctx, dbtx, path, data, read.Version+1)
		if err != nil {
			return err
		}
		committed = &snap
		return nil
	})
	if err != nil {
		return err
	}
	if committed != nil {
		s.broadcaster(path).Publish(*committed)
	}
	return nil
}

// resolve turns a staged transaction into the document bytes to commit.
// dirty is false for read-only transactions.
func resolve(read store.Snapshot, t *txn) (data []byte, dirty bool, err error) {
	switch {
	case t.hasSet:
		data = t.setDoc
		if len(t.updates) > 0 {
			data, err = applied(data, t.updates)
		}
		return data, true, err
	case len(t.updates) > 0:
		if !read.Exists {
			return nil, false, store.ErrNotFound
		}
		data, err = applied(read.Data, t.updates)
		return data, true, err
	default:
		return nil, false, nil
	}
}

func applied(data []byte, updates []store.Update) ([]byte, error) {
	doc, err := store.DecodeDoc(data)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyUpdates(doc, time.Now(), updates...); err != nil {
		return nil, err
	}
	return store.EncodeDoc(doc)
}

func writeDoc(ctx context.Context, dbtx *sql.Tx, path string, data []byte, version uint64) (store.Snapshot, error) {
	if _, err := dbtx.ExecContext(ctx, `
		INSERT INTO session_doc (path, doc, version) VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET doc = EXCLUDED.doc, version = EXCLUDED.version`,
		path, string(data), int64(version),
	); err != nil {
		return store.Snapshot{}, mapError(err)
	}
	if _, err := dbtx.ExecContext(ctx,
		`SELECT pg_notify($1, $2)`, notifyChannel, path,
	); err != nil {
		return store.Snapshot{}, mapError(err)
	}
	return store.Snapshot{Exists: true, Data: data, Version: version}, nil
}

func (s *Store) Update(ctx context.Context, path string, updates ...store.Update) error {
	if len(updates) == 0 {
		return nil
	}

	var committed *store.Snapshot
	err := s.withPathLock(ctx, path, func(dbtx *sql.Tx) error {
		read, err := readSnapshot(ctx, dbtx, path)
		if err != nil {
			return err
		}
		if !read.Exists {
			return store.ErrNotFound
		}
		data, err := applied(read.Data, updates)
		if err != nil {
			return err
		}
		snap, err := writeDoc(ctx, dbtx, path, data, read.Version+1)
		if err != nil {
			return err
		}
		committed = &snap
		return nil
	})
	if err != nil {
		return err
	}
	if committed != nil {
		s.broadcaster(path).Publish(*committed)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	var version uint64
	err := s.withPathLock(ctx, path, func(dbtx *sql.Tx) error {
		read, err := readSnapshot(ctx, dbtx, path)
		if err != nil {
			return err
		}
		if !read.Exists {
			return store.ErrNotFound
		}
		version = read.Version + 1
		if _, err := dbtx.ExecContext(ctx,
			`UPDATE session_doc SET doc = NULL, version = $2 WHERE path = $1`,
			path, int64(version),
		); err != nil {
			return mapError(err)
		}
		if _, err := dbtx.ExecContext(ctx,
			`SELECT pg_notify($1, $2)`, notifyChannel, path,
		); err != nil {
			return mapError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.broadcaster(path).Publish(store.Snapshot{Version: version})
	return nil
}

// Subscribe registers before reading the current snapshot, so a commit
// landing during the read is queued for the new subscriber rather than
// missed; the broadcaster's version filter drops the older of the two.
func (s *Store) Subscribe(path string, fn func(store.Snapshot)) (func(), error) {
	return s.broadcaster(path).SubscribeFetch(func() (store.Snapshot, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Get(ctx, path)
	}, fn)
}

// mapError translates driver errors into the store's sentinel errors.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42501" {
		return fmt.Errorf("%s: %w", pqErr.Message, store.ErrPermissionDenied)
	}
	return err
}
