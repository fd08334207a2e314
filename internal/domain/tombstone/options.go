// Package tombstone tracks already-consumed session ids.
package tombstone

// Option applies a configuration option to the in-memory set.
type Option func(*inMemorySet)

// WithMaxSize sets the cap past which the set is cleared wholesale.
// If maxSize <= 0 the set is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(s *inMemorySet) {
		s.maxSize = maxSize
	}
}
