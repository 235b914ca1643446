// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/danielhkuo/pointy/store"
)

// maxTxnAttempts bounds transaction retries under version conflicts.
const maxTxnAttempts = 16

type document struct {
	data    []byte
	version uint64
}

// Store is the in-memory store.Store implementation. It is the primary
// backend for tests and works for single-process deployments; nothing
// survives a restart.
type Store struct {
	mu sync.RWMutex
	// versions outlive their documents so a path's version stays monotone
	// across delete and re-create.
	docs     map[string]document
	versions map[string]uint64

	bmu          sync.Mutex
	broadcasters map[string]*store.Broadcaster

	clock func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		docs:         map[string]document{},
		versions:     map[string]uint64{},
		broadcasters: map[string]*store.Broadcaster{},
		clock:        time.Now,
	}
}

// SetClock overrides the commit-time source. Tests only.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
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

func (s *Store) snapshotLocked(path string) store.Snapshot {
	doc, ok := s.docs[path]
	if !ok {
		return store.Snapshot{Version: s.versions[path]}
	}
	data := make([]byte, len(doc.data))
	copy(data, doc.data)
	return store.Snapshot{Exists: true, Data: data, Version: doc.version}
}

func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(path), nil
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

func (s *Store) RunTransaction(ctx context.Context, path string, fn func(store.Txn) error) error {
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.RLock()
		read := s.snapshotLocked(path)
		s.mu.RUnlock()

		t := &txn{read: read}
		if err := fn(t); err != nil {
			return err
		}

		s.mu.Lock()
		current := s.snapshotLocked(path)
		if current.Version != read.Version {
			// Lost the race; re-run fn against the fresh snapshot.
			s.mu.Unlock()
			continue
		}

		if err := s.commitLocked(path, t); err != nil {
			s.mu.Unlock()
			return err
		}
		s.mu.Unlock()
		return nil
	}
	return store.ErrTooMuchContention
}

// commitLocked applies a staged transaction write and publishes the result.
// Caller holds the write lock; publishing under it is what keeps the
// subscriber sequence in write order.
func (s *Store) commitLocked(path string, t *txn) error {
	var data []byte
	switch {
	case t.hasSet:
		data = t.setDoc
		if len(t.updates) > 0 {
			doc, err := store.DecodeDoc(data)
			if err != nil {
				return err
			}
			if err := store.ApplyUpdates(doc, s.clock(), t.updates...); err != nil {
				return err
			}
			data, err = store.EncodeDoc(doc)
			if err != nil {
				return err
			}
		}
	case len(t.updates) > 0:
		existing, ok := s.docs[path]
		if !ok {
			return store.ErrNotFound
		}
		doc, err := store.DecodeDoc(existing.data)
		if err != nil {
			return err
		}
		if err := store.ApplyUpdates(doc, s.clock(), t.updates...); err != nil {
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

	version := s.versions[path] + 1
	s.versions[path] = version
	s.docs[path] = document{data: data, version: version}
	s.broadcaster(path).Publish(store.Snapshot{Exists: true, Data: data, Version: version})
	return nil
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

	existing, ok := s.docs[path]
	if !ok {
		return store.ErrNotFound
	}
	doc, err := store.DecodeDoc(existing.data)
	if err != nil {
		return err
	}
	if err := store.ApplyUpdates(doc, s.clock(), updates...); err != nil {
		return err
	}
	data, err := store.EncodeDoc(doc)
	if err != nil {
		return err
	}

	version := existing.version + 1
	s.versions[path] = version
	s.docs[path] = document{data: data, version: version}
	s.broadcaster(path).Publish(store.Snapshot{Exists: true, Data: data, Version: version})
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[path]; !ok {
		return store.ErrNotFound
	}
	delete(s.docs, path)
	version := s.versions[path] + 1
	s.versions[path] = version
	s.broadcaster(path).Publish(store.Snapshot{Version: version})
	return nil
}

func (s *Store) Subscribe(path string, fn func(store.Snapshot)) (func(), error) {
	// The write lock makes reading the current snapshot and registering
	// the subscriber atomic with respect to commits, so no version can
	// slip between the initial delivery and the first published change.
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.snapshotLocked(path)
	return s.broadcaster(path).Subscribe(current, fn), nil
}
