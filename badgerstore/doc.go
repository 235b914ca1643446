// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package badgerstore implements the store contract on an embedded
// badger key-value database. Each session document is stored under a
// doc/ key with a sibling ver/ key carrying its monotone version.
package badgerstore
