// Package submit orchestrates score submission: session consumption,
// replay validation, cooldown, ratchet, and persistence.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/hopguard/internal/adapters/repository"
	"github.com/okian/hopguard/internal/domain/model"
	"github.com/okian/hopguard/internal/domain/replay"
	"github.com/okian/hopguard/pkg/metrics"
)

// Default coordinator configuration constants.
const (
	defaultCooldown       = 30 * time.Second
	defaultPersistTimeout = 2 * time.Second
)

// SessionConsumer redeems a play session exactly once.
type SessionConsumer interface {
	Consume(ctx context.Context, ownerID, sessionID string) error
}

// Validator decides replay plausibility.
type Validator interface {
	Validate(ctx context.Context, r *model.GameReplay, claimedScore int64) replay.Result
}

// ProfileStore is the external persistence collaborator.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, userID string) (repository.Profile, error)
	UpdateBest(ctx context.Context, userID string, score int64, ts time.Time) (bool, int64, error)
}

// Auditor receives the full server-side record of each decision.
// Enqueue must not block; a false return means the record was dropped.
type Auditor interface {
	Enqueue(ctx context.Context, rec model.AuditRecord) bool
}

// Result is the outcome of an accepted (or valid-but-non-improving)
// submission. A non-improving score is a normal outcome, not an error.
type Result struct {
	Accepted          bool
	NewHighScore      int64
	PreviousHighScore int64
	Improvement       int64
}

// Coordinator runs the submission gates in order. Each gate is terminal
// for the request; session consumption is never rolled back on a later
// failure, which is the one-way cost that preserves the anti-replay
// guarantee.
type Coordinator struct {
	sessions  SessionConsumer
	validator Validator
	profiles  ProfileStore
	audit     Auditor

	cooldown       time.Duration
	persistTimeout time.Duration
	now            func() time.Time
}

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithCooldown sets the minimum gap between accepted submissions per
// player, independent of any outer HTTP rate limiter.
func WithCooldown(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.cooldown = d
		}
	}
}

// WithPersistTimeout bounds the profile store write. Past the bound the
// operation is treated as failed, not retried: the session is already
// consumed and automatic retry would need idempotency keys.
func WithPersistTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.persistTimeout = d
		}
	}
}

// WithAuditor attaches the async audit pipeline.
func WithAuditor(a Auditor) Option {
	return func(c *Coordinator) {
		if a != nil {
			c.audit = a
		}
	}
}

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(sessions SessionConsumer, validator Validator, profiles ProfileStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions:       sessions,
		validator:      validator,
		profiles:       profiles,
		cooldown:       defaultCooldown,
		persistTimeout: defaultPersistTimeout,
		now:            time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Submit runs the full gate sequence for one claimed score.
func (c *Coordinator) Submit(ctx context.Context, ownerID, sessionID string, r *model.GameReplay, claimedScore int64) (Result, error) {
	// Gate 1: consume the session before anything else is acted on. Two
	// racing submissions with the same session see exactly one success.
	if err := c.sessions.Consume(ctx, ownerID, sessionID); err != nil {
		metrics.RecordSubmissionRejected("session_expired")
		c.record(ctx, ownerID, sessionID, claimedScore, "rejected", "session_expired", "", err.Error(), 0)
		return Result{}, err
	}

	// Gate 2: replay plausibility. Pure; same input, same outcome.
	res := c.validator.Validate(ctx, r, claimedScore)
	metrics.RecordValidationLatency(float64(res.Elapsed.Milliseconds()))
	if !res.OK {
		metrics.RecordValidationFailure(string(res.Check))
		metrics.RecordSubmissionRejected(string(res.Reason))
		c.record(ctx, ownerID, sessionID, claimedScore, "rejected", string(res.Reason), string(res.Check), res.Detail, res.Elapsed)
		return Result{}, &ValidationError{Check: res.Check, Reason: res.Reason, Detail: res.Detail}
	}

	profile, err := c.profiles.GetOrCreate(ctx, ownerID)
	if err != nil {
		metrics.RecordSubmissionRejected("persistence_error")
		c.record(ctx, ownerID, sessionID, claimedScore, "rejected", "persistence_error", "", err.Error(), res.Elapsed)
		return Result{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	// Gate 3: cooldown, tied to game semantics - a player cannot
	// plausibly finish two qualifying runs inside the window.
	now := c.now()
	if !profile.LastUpdated.IsZero() {
		if elapsed := now.Sub(profile.LastUpdated); elapsed < c.cooldown {
			retryAfter := c.cooldown - elapsed
			metrics.RecordCooldownRejection()
			metrics.RecordSubmissionRejected("rate_limited")
			c.record(ctx, ownerID, sessionID, claimedScore, "rejected", "rate_limited", "", fmt.Sprintf("cooldown, retry after %s", retryAfter), res.Elapsed)
			return Result{}, &RateLimitedError{RetryAfter: retryAfter}
		}
	}

	// Gate 4: ratchet. A valid but non-improving score is a no-op.
	if claimedScore <= profile.Score {
		metrics.RecordSubmissionNoOp()
		c.record(ctx, ownerID, sessionID, claimedScore, "noop", "", "", "", res.Elapsed)
		return Result{
			Accepted:          false,
			NewHighScore:      profile.Score,
			PreviousHighScore: profile.Score,
		}, nil
	}

	// Gate 5: persist via conditional write under a bounded timeout. The
	// store re-checks the ratchet, so the invariant holds even if a
	// concurrent submission won between gates 4 and 5.
	pctx, cancel := context.WithTimeout(ctx, c.persistTimeout)
	defer cancel()

	updated, prev, err := c.profiles.UpdateBest(pctx, ownerID, claimedScore, now)
	if err != nil {
		metrics.RecordSubmissionRejected("persistence_error")
		c.record(ctx, ownerID, sessionID, claimedScore, "rejected", "persistence_error", "", err.Error(), res.Elapsed)
		return Result{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if !updated {
		// Lost the race to a higher concurrent score.
		metrics.RecordSubmissionNoOp()
		c.record(ctx, ownerID, sessionID, claimedScore, "noop", "", "", "", res.Elapsed)
		return Result{
			Accepted:          false,
			NewHighScore:      prev,
			PreviousHighScore: prev,
		}, nil
	}

	metrics.RecordSubmissionAccepted()
	metrics.RecordHighScoreUpdate()
	c.record(ctx, ownerID, sessionID, claimedScore, "accepted", "", "", "", res.Elapsed)
	return Result{
		Accepted:          true,
		NewHighScore:      claimedScore,
		PreviousHighScore: prev,
		Improvement:       claimedScore - prev,
	}, nil
}

// record ships the full decision detail to the audit pipeline.
func (c *Coordinator) record(ctx context.Context, ownerID, sessionID string, score int64, outcome, category, check, reason string, elapsed time.Duration) {
	if c.audit == nil {
		return
	}
	c.audit.Enqueue(ctx, model.AuditRecord{
		Owner:     ownerID,
		SessionID: sessionID,
		Score:     score,
		Outcome:   outcome,
		Category:  category,
		Check:     check,
		Reason:    reason,
		Elapsed:   elapsed,
		At:        c.now(),
	})
}

// IsRateLimited reports whether err is a cooldown rejection and returns
// the wait hint.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
