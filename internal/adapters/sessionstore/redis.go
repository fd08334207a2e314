// Package sessionstore provides shared-state session.Store backends.
package sessionstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/hopguard/internal/domain/session"
)

// Key prefixes. The consumed: key is the externalized tombstone; its TTL
// bounds memory the same way the in-process cap does.
const (
	sessionKeyPrefix  = "hopguard:session:"
	consumedKeyPrefix = "hopguard:consumed:"

	defaultTombstoneTTL = time.Hour
)

// consumeScript is the atomic compare-and-consume. Running as a single
// Lua script gives the exactly-one-winner guarantee across instances:
// check the tombstone, compare the stored token, delete it, and mark it
// consumed in one step.
var consumeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
local cur = redis.call('GET', KEYS[1])
if not cur or cur ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('SET', KEYS[2], '1', 'PX', ARGV[2])
return 1
`)

// RedisStore implements session.Store on redis, for deployments running
// more than one instance. Expiry is native (PX on the session key), so
// Sweep has nothing to do.
type RedisStore struct {
	client       *redis.Client
	tombstoneTTL time.Duration
}

// Option applies a configuration option to the RedisStore.
type Option func(*RedisStore)

// WithTombstoneTTL sets how long consumed session ids are retained.
func WithTombstoneTTL(ttl time.Duration) Option {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.tombstoneTTL = ttl
		}
	}
}

// NewRedisStore wraps client as a session store.
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{
		client:       client,
		tombstoneTTL: defaultTombstoneTTL,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Put stores s under its owner key; SET overwrites any previous live
// session for the owner, and PX carries the expiry.
func (s *RedisStore) Put(ctx context.Context, ps session.PlaySession) error {
	ttl := time.Until(ps.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("%w: session already expired", session.ErrStoreFailed)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+ps.Owner, ps.ID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", session.ErrStoreFailed, err)
	}
	return nil
}

// Consume redeems the session via the Lua compare-and-consume.
func (s *RedisStore) Consume(ctx context.Context, ownerID, sessionID string, now time.Time) error {
	keys := []string{sessionKeyPrefix + ownerID, consumedKeyPrefix + sessionID}
	n, err := consumeScript.Run(ctx, s.client, keys, sessionID, s.tombstoneTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("%w: %w", session.ErrStoreFailed, err)
	}
	if n != 1 {
		return session.ErrSessionExpired
	}
	return nil
}

// Sweep is a no-op: redis expires session keys natively.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// Live is not tracked for the redis backend.
func (s *RedisStore) Live(ctx context.Context) (int, error) {
	return 0, nil
}
