// Package repository defines the player profile store interface and errors.
package repository

import (
	"context"
	"time"
)

// Profile is a player's stored best.
type Profile struct {
	UserID      string
	Score       int64
	LastUpdated time.Time
}

// Entry represents a leaderboard row.
type Entry struct {
	Rank        int
	UserID      string
	Score       int64
	LastUpdated time.Time
}

// Store provides read/write access to player profiles and the ranking
// they induce.
type Store interface {
	// GetOrCreate returns the profile for userID, creating an empty one on
	// first access.
	GetOrCreate(ctx context.Context, userID string) (Profile, error)

	// UpdateBest conditionally raises userID's score: the write applies
	// only if score is strictly greater than the stored one, so the
	// ratchet invariant holds even under racing submissions. Returns
	// whether the write applied and the previous score.
	UpdateBest(ctx context.Context, userID string, score int64, ts time.Time) (bool, int64, error)

	// Rank returns the current rank and score for a player.
	// Returns ErrNotFound if the player is unknown.
	Rank(ctx context.Context, userID string) (Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of players tracked.
	Count(ctx context.Context) int

	// LastUpdated returns the time of the most recent accepted write.
	LastUpdated(ctx context.Context) time.Time
}
