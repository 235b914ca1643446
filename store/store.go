// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Update and Delete when the document
	// does not exist. Get reports absence via Snapshot.Exists instead.
	ErrNotFound = errors.New("store: document not found")

	// ErrPermissionDenied marks authorization failures from the backend.
	// The session engine surfaces these differently from transport errors.
	ErrPermissionDenied = errors.New("store: permission denied")

	// ErrTooMuchContention is returned when a transaction keeps losing
	// the version race and the retry budget runs out.
	ErrTooMuchContention = errors.New("store: transaction retried too many times")
)

// IsPermissionDenied reports whether err is authorization-class.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// Snapshot is the full state of one document at a point in time.
//
// Version increases monotonically with every committed write to the path,
// including the delete that ends the document's life. Data is the JSON
// encoding of the document and is nil when Exists is false.
type Snapshot struct {
	Exists  bool
	Data    []byte
	Version uint64
}

// FieldPath addresses a nested field inside a document, outermost first.
type FieldPath []string

// Update is a single field-level write. Value is any JSON-marshalable
// value, or one of the write sentinels ServerTimestamp and DeleteField.
type Update struct {
	Path  FieldPath
	Value any
}

type sentinel int

const (
	// ServerTimestamp is replaced by the store with the commit time.
	ServerTimestamp sentinel = iota

	// DeleteField removes the addressed field from the document.
	DeleteField
)

// Txn is the handle passed to a transaction function. Get returns a
// consistent read of the document; Set and Update stage the write that
// commits atomically with that read.
type Txn interface {
	Get() (Snapshot, error)
	Set(doc []byte)
	Update(updates ...Update)
}

// Store is the contract the session engine requires from a document store.
//
// All implementations must deliver, to each subscriber, a monotonically
// non-decreasing sequence of snapshots in the store's own write order,
// starting with the current snapshot immediately on subscribe. Transaction
// functions must be pure: the store may invoke them more than once when a
// concurrent write invalidates the read.
type Store interface {
	// Get returns the current snapshot of the document at path.
	Get(ctx context.Context, path string) (Snapshot, error)

	// RunTransaction executes fn with a consistent read of the document
	// and atomically commits the staged write, retrying fn on conflict.
	RunTransaction(ctx context.Context, path string, fn func(Txn) error) error

	// Update applies field-level writes atomically as one commit. The
	// document must already exist.
	Update(ctx context.Context, path string, updates ...Update) error

	// Delete removes the document.
	Delete(ctx context.Context, path string) error

	// Subscribe registers fn for snapshot delivery and returns a cancel
	// function. fn runs on a dedicated goroutine per subscription; a slow
	// consumer may miss intermediate snapshots but always observes the
	// latest.
	Subscribe(path string, fn func(Snapshot)) (func(), error)
}
