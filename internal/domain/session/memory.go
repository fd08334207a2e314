package session

import (
	"context"
	"sync"
	"time"

	"github.com/okian/hopguard/internal/domain/tombstone"
)

// memoryStore implements Store with a mutex-protected map keyed by owner,
// at most one live session per owner. Correct for a single instance only.
type memoryStore struct {
	mu         sync.Mutex
	byOwner    map[string]*PlaySession
	tombstones tombstone.Set
}

// NewMemoryStore creates an in-process session store. tombstones records
// consumed session ids so a key cannot be redeemed again after its row is
// swept or replaced.
func NewMemoryStore(tombstones tombstone.Set) Store {
	return &memoryStore{
		byOwner:    make(map[string]*PlaySession),
		tombstones: tombstones,
	}
}

// Put stores s, replacing any live session for the same owner.
func (m *memoryStore) Put(ctx context.Context, s PlaySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byOwner[s.Owner] = &s
	return nil
}

// Consume performs the atomic check-and-mark. The single mutex makes the
// compare-and-set atomic across concurrent submissions; contention is low
// enough that per-key locking is not worth its bookkeeping.
func (m *memoryStore) Consume(ctx context.Context, ownerID, sessionID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tombstones.Contains(ctx, sessionID) {
		return ErrSessionExpired
	}

	s, ok := m.byOwner[ownerID]
	switch {
	case !ok:
		return ErrSessionExpired
	case s.ID != sessionID:
		return ErrSessionExpired
	case s.Consumed:
		return ErrSessionExpired
	case !now.Before(s.ExpiresAt):
		return ErrSessionExpired
	}

	s.Consumed = true
	m.tombstones.SeenAndRecord(ctx, sessionID)
	return nil
}

// Sweep removes sessions past expiry, regardless of consumption state.
func (m *memoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	swept := 0
	for owner, s := range m.byOwner {
		if !now.Before(s.ExpiresAt) {
			delete(m.byOwner, owner)
			swept++
		}
	}
	return swept, nil
}

// Live returns the number of stored sessions.
func (m *memoryStore) Live(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byOwner), nil
}
