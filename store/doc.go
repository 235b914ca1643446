// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store defines the document-store contract the session engine is
written against, plus helpers shared by the backends.

# Contract

A Store holds keyed JSON documents and offers:

  - Get: point-in-time snapshot
  - RunTransaction: read + conditional write, retried on conflict
  - Update: atomic field-path writes to an existing document
  - Delete: remove the document
  - Subscribe: push delivery of the full document on every change

Snapshots carry a per-document version that increases with every commit,
including deletion. Each subscriber observes a non-decreasing sequence in
the store's write order; intermediate versions may be skipped for slow
consumers, the latest never is.

# Write Sentinels

Update values may be the ServerTimestamp sentinel (replaced with the commit
time by the store, never by the client) or DeleteField (removes the field).

# Backends

Three implementations live in sibling packages: memstore (in-memory,
primary for tests), badgerstore (embedded persistence on BadgerDB), and
pgstore (PostgreSQL with LISTEN/NOTIFY fanout). They share ApplyUpdates
for field-path resolution and Broadcaster for subscriber delivery, so a
document mutated through any backend ends up byte-equivalent.
*/
package store
