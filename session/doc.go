// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package session implements the synchronization engine for shared planning
sessions.

# Lifecycle

Join runs a single idempotent transaction against the store — create the
document if the session does not exist yet, otherwise add the user as a
voter — then opens a subscription. Every delivered snapshot replaces the
in-memory state and is forwarded on the Events channel:

	Idle -> Joining -> Active -> Closed

The session closes when the document is deleted (EventEnded), when this
user's voter entry disappears (EventRemoved), or when the caller detaches.
External removal raises a notification; removing yourself does not — the
engine records that the next disappearance of its own entry is
self-inflicted and suppresses the message.

# Mutations

CastVote, ClearVote, ClearAllVotes, RemovePlayer, AddScores, RemoveScore,
and Destroy are unconditional field-level writes. The engine never merges
its own writes locally; a mutation's effect is visible only once the
subscription delivers the resulting snapshot, exactly like every other
client's writes. Last write wins per field, which is safe because each
vote field has a single writer in practice.

# Reconciliation

On each snapshot the engine repairs one invariant for its own user: a
non-empty LastScore that is no longer in the score deck is degraded to the
all-empty vote. The repair write satisfies the invariant it repairs, so it
converges instead of looping.

# Teardown

Detach unsubscribes cleanly. LeaveAsync is for abrupt teardown: it
detaches and fires the remove-me write as a detached task with its own
timeout — delivery is best effort and never blocks the caller.
*/
package session
