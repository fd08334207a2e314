// Package session issues, tracks, and single-use-consumes play sessions.
package session

import (
	"context"
	"time"
)

// PlaySession is a one-time credential tying a play attempt to its owner.
// A session is redeemable iff it is unconsumed, unexpired, and presented
// by its owner.
type PlaySession struct {
	// ID is the signed, unguessable session token handed to the client.
	ID string

	// Owner references the identity the session was issued to.
	Owner string

	CreatedAt time.Time
	ExpiresAt time.Time

	// Consumed is set exactly once, on the first successful submission.
	Consumed bool
}

// Store persists session state. Consume must be atomic with respect to
// concurrent calls for the same owner: two racing submissions referencing
// the same session must see exactly one success. An in-process store is
// correct only for a single-instance deployment; multi-instance
// deployments need a shared store with conditional-write semantics (see
// the redis adapter).
type Store interface {
	// Put stores s, replacing any live session for the same owner.
	Put(ctx context.Context, s PlaySession) error

	// Consume atomically checks exists && matches && !consumed && !expired,
	// then marks the session consumed. Any failure is ErrSessionExpired.
	Consume(ctx context.Context, ownerID, sessionID string, now time.Time) error

	// Sweep removes sessions past their expiry and returns how many were
	// dropped. Stores with native expiry may report zero.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Live returns the current number of unexpired sessions, or zero for
	// stores that do not track it.
	Live(ctx context.Context) (int, error)
}
