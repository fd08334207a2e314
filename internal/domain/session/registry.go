package session

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/google/uuid"

	"github.com/okian/hopguard/pkg/metrics"
)

// Default registry configuration constants.
const (
	defaultTTL       = 10 * time.Minute
	secretByteLength = 32
)

// Registry issues and consumes play sessions. Session ids are uuid-v4
// (crypto/rand entropy) so a credential is never derivable from the owner
// id and a clock value; the HMAC signature additionally lets shape
// validity be checked without a lookup.
type Registry struct {
	store  Store
	ttl    time.Duration
	secret []byte
	now    func() time.Time
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithTTL sets the session time-to-live. Minutes, not days: a long TTL
// widens the replay-attack window.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithSecret sets the token-signing secret. Deployments running multiple
// instances must share it; otherwise an ephemeral secret is generated.
func WithSecret(secret []byte) Option {
	return func(r *Registry) {
		if len(secret) > 0 {
			r.secret = secret
		}
	}
}

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry constructs a Registry over the given store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		ttl:   defaultTTL,
		now:   time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(r)
	}

	if r.secret == nil {
		// Ephemeral secret: sessions do not survive a restart anyway when
		// the store is in-process.
		r.secret = make([]byte, secretByteLength)
		_, _ = rand.Read(r.secret)
	}

	return r
}

// Create issues a fresh session for ownerID, invalidating any previous
// live session for the same owner.
func (r *Registry) Create(ctx context.Context, ownerID string) (PlaySession, error) {
	now := r.now()
	s := PlaySession{
		ID:        signToken(r.secret, uuid.NewString()),
		Owner:     ownerID,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}

	if err := r.store.Put(ctx, s); err != nil {
		metrics.RecordErrorByComponent("session", "store_put")
		return PlaySession{}, err
	}

	metrics.RecordSessionIssued()
	return s, nil
}

// Consume redeems sessionID for ownerID. Exactly one concurrent caller
// per session succeeds; every other caller and every invalid token gets
// ErrSessionExpired.
func (r *Registry) Consume(ctx context.Context, ownerID, sessionID string) error {
	if !verifyToken(r.secret, sessionID) {
		metrics.RecordSessionRejected()
		return ErrSessionExpired
	}

	if err := r.store.Consume(ctx, ownerID, sessionID, r.now()); err != nil {
		metrics.RecordSessionRejected()
		return err
	}

	metrics.RecordSessionConsumed()
	return nil
}

// Sweep garbage-collects expired sessions and publishes gauge metrics.
// Run on a timer by the application.
func (r *Registry) Sweep(ctx context.Context) int {
	swept, err := r.store.Sweep(ctx, r.now())
	if err != nil {
		metrics.RecordErrorByComponent("session", "sweep")
		return 0
	}

	if swept > 0 {
		metrics.RecordSessionsSwept(swept)
	}
	if live, err := r.store.Live(ctx); err == nil {
		metrics.UpdateLiveSessions(live)
	}
	return swept
}
