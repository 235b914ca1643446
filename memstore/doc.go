// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package memstore implements the store contract in process memory.

Documents live in a map guarded by an RWMutex; per-path versions survive
document deletion so subscribers always observe a monotone sequence.
Transactions are optimistic: the function runs against a snapshot taken
without the lock, and the commit re-checks the version under the lock,
re-running the function on conflict. That mirrors how a real networked
backend retries and keeps transaction functions honest about purity.

This is the backend used by the test suite and the default for a
single-node server; it holds no durable state.
*/
package memstore
