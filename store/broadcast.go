// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import "sync"

// subscriberBuffer bounds how many undelivered snapshots a subscriber may
// accumulate before old ones are coalesced away.
const subscriberBuffer = 64

type subscriber struct {
	ch   chan Snapshot
	done chan struct{}
}

// offer queues a snapshot without blocking. When the subscriber is
// behind, the oldest queued snapshot is dropped to make room, so the
// latest state always arrives.
func (sub *subscriber) offer(snap Snapshot) {
	select {
	case sub.ch <- snap:
	default:
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snap:
		default:
		}
	}
}

// Broadcaster fans snapshots out to subscribers. Each subscriber gets a
// dedicated delivery goroutine so a slow callback never blocks the store.
//
// Versions strictly increase with every committed write, deletes included,
// so ordering is enforced by version alone: Publish drops any snapshot at
// or below the last published version, and each subscriber additionally
// skips anything at or below what it already delivered. That keeps every
// subscriber's sequence monotone even when a backend publishes outside
// its commit lock and two publishes race.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[int]*subscriber
	nextID  int
	last    Snapshot
	hasLast bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: map[int]*subscriber{}}
}

// register adds a delivery goroutine for fn and returns its subscriber
// and an idempotent cancel. The goroutine filters out snapshots that do
// not advance the version it last delivered.
func (b *Broadcaster) register(fn func(Snapshot)) (*subscriber, func()) {
	sub := &subscriber{
		ch:   make(chan Snapshot, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		var last uint64
		var have bool
		for {
			select {
			case <-sub.done:
				return
			case snap := <-sub.ch:
				if have && snap.Version <= last {
					continue
				}
				last, have = snap.Version, true
				fn(snap)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
	return sub, cancel
}

// Subscribe registers fn, immediately queues current for delivery, and
// returns a cancel function. Cancel is idempotent and does not wait for
// in-flight callbacks.
func (b *Broadcaster) Subscribe(current Snapshot, fn func(Snapshot)) func() {
	sub, cancel := b.register(fn)
	sub.offer(current)
	return cancel
}

// SubscribeFetch registers fn before invoking fetch, so a write that
// commits while the current snapshot is being read is queued for the new
// subscriber instead of missed. The subscriber's version filter discards
// whichever of the two snapshots is older.
func (b *Broadcaster) SubscribeFetch(fetch func() (Snapshot, error), fn func(Snapshot)) (func(), error) {
	sub, cancel := b.register(fn)
	current, err := fetch()
	if err != nil {
		cancel()
		return nil, err
	}
	sub.offer(current)
	return cancel, nil
}

// Publish delivers a snapshot to every subscriber. A snapshot at or
// below the last published version is a no-op; that makes echoes from an
// external notification channel idempotent and keeps a late-arriving
// deletion from masking a newer re-create.
func (b *Broadcaster) Publish(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hasLast && snap.Version <= b.last.Version {
		return
	}
	b.last = snap
	b.hasLast = true

	for _, sub := range b.subs {
		sub.offer(snap)
	}
}
