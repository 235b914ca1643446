// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package pgstore implements the store contract on PostgreSQL. It is
// the backend for multi-process deployments: writers serialize through
// advisory locks and watchers are fed by LISTEN/NOTIFY.
package pgstore
