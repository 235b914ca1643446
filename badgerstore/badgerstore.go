// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/danielhkuo/pointy/store"
)

const (
	docPrefix = "doc/"
	verPrefix = "ver/"
)

// Options configures a badger-backed store.
type Options struct {
	// Dir is the on-disk database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps everything in RAM. Used by tests and throwaway runs.
	InMemory bool
	Logger   *slog.Logger
}

// Store persists session documents in an embedded badger database.
// A single mutex serializes commits, which keeps per-path versions
// monotone and subscriber delivery in write order.
type Store struct {
	db  *badger.DB
	log *slog.Logger

	mu sync.Mutex

	bmu          sync.Mutex
	broadcasters map[string]*store.Broadcaster
}

var _ store.Store = (*Store)(nil)

func Open(opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("badgerstore: Dir is required unless InMemory is set")
		}
		badgerOpts = badger.DefaultOptions(opts.Dir)
	}
	badgerOpts = badgerOpts.WithLogger(badgerLogger{log})

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}

	return &Store{
		db:           db,
		log:          log,
		broadcasters: map[string]*store.Broadcaster{},
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
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

func docKey(path string) []byte { return []byte(docPrefix + path) }
func verKey(path string) []byte { return []byte(verPrefix + path) }

func readSnapshot(txn *badger.Txn, path string) (store.Snapshot, error) {
	var snap store.Snapshot

	item, err := txn.Get(verKey(path))
	switch {
	case err == nil:
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return store.Snapshot{}, err
		}
		if len(raw) == 8 {
			snap.Version = binary.BigEndian.Uint64(raw)
		}
	case errors.Is(err, badger.ErrKeyNotFound):
		// Never written; version stays zero.
	default:
		return store.Snapshot{}, err
	}

	item, err = txn.Get(docKey(path))
	switch {
	case err == nil:
		data, err := item.ValueCopy(nil)
		if err != nil {
			return store.Snapshot{}, err
		}
		snap.Exists = true
		snap.Data = data
	case errors.Is(err, badger.ErrKeyNotFound):
	default:
		return store.Snapshot{}, err
	}

	return snap, nil
}

func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	var snap store.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		snap, err = readSnapshot(txn, path)
		return err
	})
	return snap, err
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

// RunTransaction holds the commit mutex for the whole call, so the
// function's read is the committed state and no retry loop is needed.
func (s *Store) RunTransaction(ctx context.Context, path string, fn func(store.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	read, err := s.snapshotLocked(path)
	if err != nil {
		return err
	}

	t := &txn{read: read}
	if err := fn(t); err != nil {
		return err
	}

	return s.commitLocked(path, read, t)
}

func (s *Store) snapshotLocked(path string) (store.Snapshot, error) {
	var snap store.Snapshot
	err := s.db.View(func(btxn *badger.Txn) error {
		var err error
		snap, err = readSnapshot(btxn, path)
		return err
	})
	return snap, err
}

func (s *Store) commitLocked(path string, read store.Snapshot, t *txn) error {
	var data []byte
	now := time.Now()
	switch {
	case t.hasSet:
		data = t.setDoc
		if len(t.updates) > 0 {
			doc, err := store.DecodeDoc(data)
			if err != nil {
				return err
			}
			if err := store.ApplyUpdates(doc, now, t.updates...); err != nil {
				return err
			}
			data, err = store.EncodeDoc(doc)
			if err != nil {
				return err
			}
		}
	case len(t.updates) > 0:
		if !read.Exists {
			return store.ErrNotFound
		}
		doc, err := store.DecodeDoc(read.Data)
		if err != nil {
			return err
		}
		if err := store.ApplyUpdates(doc, now, t.updates...); err != nil {
			return err
		}
		data, err = store.EncodeDoc(doc)
		if err != nil {
			return err
		}
	default:
		// Read-only transaction.
		return nil
	}

	version := read.Version + 1
	if err := s.writeLocked(path, data, version); err != nil {
		return err
	}
	s.broadcaster(path).Publish(store.Snapshot{Exists: true, Data: data, Version: version})
	return nil
}

func (s *Store) writeLocked(path string, data []byte, version uint64) error {
	var ver [8]byte
	binary.BigEndian.PutUint64(ver[:], version)
	return s.db.Update(func(btxn *badger.Txn) error {
		if err := btxn.Set(docKey(path), data); err != nil {
			return err
		}
		return btxn.Set(verKey(path), ver[:])
	})
}

func (s *Store) Update(ctx context.Context, path string, updates ...store.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	read, err := s.snapshotLocked(path)
	if err != nil {
		return err
	}
	if !read.Exists {
		return store.ErrNotFound
	}

	doc, err := store.DecodeDoc(read.Data)
	if err != nil {
		return err
	}
	if err := store.ApplyUpdates(doc, time.Now(), updates...); err != nil {
		return err
	}
	data, err := store.EncodeDoc(doc)
	if err != nil {
		return err
	}

	version := read.Version + 1
	if err := s.writeLocked(path, data, version); err != nil {
		return err
	}
	s.broadcaster(path).Publish(store.Snapshot{Exists: true, Data: data, Version: version})
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	read, err := s.snapshotLocked(path)
	if err != nil {
		return err
	}
	if !read.Exists {
		return store.ErrNotFound
	}

	// The version key survives the document so re-creation keeps the
	// path's version monotone.
	version := read.Version + 1
	var ver [8]byte
	binary.BigEndian.PutUint64(ver[:], version)
	err = s.db.Update(func(btxn *badger.Txn) error {
		if err := btxn.Delete(docKey(path)); err != nil {
			return err
		}
		return btxn.Set(verKey(path), ver[:])
	})
	if err != nil {
		return err
	}

	s.broadcaster(path).Publish(store.Snapshot{Version: version})
	return nil
}

func (s *Store) Subscribe(path string, fn func(store.Snapshot)) (func(), error) {
	// Holding the commit mutex makes the initial read and the registration
	// atomic with respect to writers.
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.snapshotLocked(path)
	if err != nil {
		return nil, err
	}
	return s.broadcaster(path).Subscribe(current, fn), nil
}

// badgerLogger routes badger's internal chatter through slog.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf("badger: "+format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf("badger: "+format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf("badger: "+format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf("badger: "+format, args...))
}
