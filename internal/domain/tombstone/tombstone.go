// Package tombstone tracks already-consumed session ids.
package tombstone

import (
	"context"
	"sync"
	"sync/atomic"
)

// Set records consumed session ids so a session key can never be redeemed
// twice, even after the session row itself has been swept.
type Set interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	// This is the ONLY method for reuse detection - thread-safe and atomic.
	SeenAndRecord(ctx context.Context, id string) bool

	// Contains reports whether id has been recorded.
	Contains(ctx context.Context, id string) bool

	// Clear drops the whole set.
	Clear(ctx context.Context)

	Size() int64
}

// inMemorySet implements Set with a mutex-protected map. Memory is bounded
// by clearing the set wholesale once it grows past maxSize: session ids are
// drawn from a space with negligible collision probability, so briefly
// forgetting old consumed ids is an accepted tradeoff.
type inMemorySet struct {
	mu      sync.RWMutex
	seen    map[string]struct{}
	maxSize int          // 0 or negative = unbounded
	size    atomic.Int64 // current number of entries (atomic)
}

// NewInMemorySet creates a new in-memory tombstone set with configuration options.
func NewInMemorySet(opts ...Option) Set {
	s := &inMemorySet{
		maxSize: 100_000, // default cap
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	s.seen = make(map[string]struct{})

	return s
}

// SeenAndRecord atomically checks if id was seen and records it if not.
// Returns true if id was already seen, false if it was newly recorded.
func (s *inMemorySet) SeenAndRecord(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[id]; exists {
		return true // Already seen
	}

	if s.maxSize > 0 && len(s.seen) >= s.maxSize {
		// Past the cap: clear wholesale rather than evicting piecemeal.
		s.seen = make(map[string]struct{})
		s.size.Store(0)
	}

	s.seen[id] = struct{}{}
	s.size.Add(1)
	return false // Newly recorded
}

// Contains reports whether id has been recorded.
func (s *inMemorySet) Contains(ctx context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[id]
	return exists
}

// Clear drops the whole set.
func (s *inMemorySet) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]struct{})
	s.size.Store(0)
}

// Size returns the current number of entries in the set.
func (s *inMemorySet) Size() int64 {
	return s.size.Load()
}
