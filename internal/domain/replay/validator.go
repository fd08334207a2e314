// Package replay implements the score-plausibility validation pipeline.
//
// Validation is a short-circuiting sequence of checks over a submitted
// replay and claimed score; the first failing check determines the
// rejection. Checks 1-8 are deterministic structural and arithmetic
// guards; the later checks are statistical heuristics whose thresholds
// are configuration, not constants - they trade false-positive rate
// against bypass difficulty and are expected to be tuned per deployment.
package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/hopguard/internal/domain/model"
)

// Check identifies a single validation pipeline stage.
type Check string

// Pipeline stages in evaluation order.
const (
	CheckStructure           Check = "structure"
	CheckTimestamps          Check = "timestamps"
	CheckFreshness           Check = "freshness"
	CheckEventCount          Check = "event_count"
	CheckDurationConsistency Check = "duration_consistency"
	CheckDurationBounds      Check = "duration_bounds"
	CheckLifecycle           Check = "lifecycle"
	CheckScoreBounds         Check = "score_bounds"
	CheckScoreRate           Check = "score_rate"
	CheckPhysics             Check = "physics"
	CheckReactionTime        Check = "reaction_time"
	CheckInteraction         Check = "interaction"
	CheckIntegrity           Check = "integrity"
)

// Reason is the closed, client-facing rejection category. Internally each
// check is distinct; externally only these coarse categories surface, so
// an attacker cannot tune a fabricated replay against the failing check.
type Reason string

// Rejection categories.
const (
	ReasonMalformed   Reason = "malformed_replay"
	ReasonStale       Reason = "stale_replay"
	ReasonImplausible Reason = "implausible_replay"
	ReasonIntegrity   Reason = "integrity_violation"
)

// Result is the structured outcome of one validation run. When OK is
// false, Check names the failing stage and Detail carries the full
// server-side explanation; Detail must never reach the client.
type Result struct {
	OK      bool
	Check   Check
	Reason  Reason
	Detail  string
	Elapsed time.Duration
}

// Thresholds collects every tunable knob of the pipeline. All durations
// and timestamps are milliseconds.
type Thresholds struct {
	MaxSubmissionDelayMS int64
	MaxGameAgeMS         int64
	MinEvents            int
	MaxEvents            int
	DurationToleranceMS  int64
	MinGameDurationMS    int64
	MaxGameDurationMS    int64
	MaxScore             int64
	MinScorePerSecond    float64
	MaxScorePerSecond    float64
	TickIntervalMS       int64
	// Physics tolerance widens with the expected score:
	// base + expected*perMille/1000 absolute points of drift.
	PhysicsToleranceBase     int64
	PhysicsTolerancePerMille int64
	MinReactionMS            int64
	MaxFastJumpRatio         float64
	RelaxedFastJumpRatio     float64
	LongGameCutoffMS         int64
	MinJumpSamples           int
	MinJumpObstacleRatio     float64
	InteractionMinScore      int64
	ZeroJumpScoreFloor       int64
}

// DefaultThresholds returns the pipeline defaults. Deployments override
// these through configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxSubmissionDelayMS:     5 * 60 * 1000,
		MaxGameAgeMS:             30 * 60 * 1000,
		MinEvents:                3,
		MaxEvents:                10_000,
		DurationToleranceMS:      2_000,
		MinGameDurationMS:        1_000,
		MaxGameDurationMS:        30 * 60 * 1000,
		MaxScore:                 1_000_000,
		MinScorePerSecond:        5,
		MaxScorePerSecond:        25,
		TickIntervalMS:           50,
		PhysicsToleranceBase:     25,
		PhysicsTolerancePerMille: 50,
		MinReactionMS:            150,
		MaxFastJumpRatio:         0.20,
		RelaxedFastJumpRatio:     0.35,
		LongGameCutoffMS:         2 * 60 * 1000,
		MinJumpSamples:           10,
		MinJumpObstacleRatio:     0.30,
		InteractionMinScore:      100,
		ZeroJumpScoreFloor:       50,
	}
}

// Validator runs the pipeline. It is a pure function of its inputs, the
// configured thresholds, and the injected clock; it holds no mutable
// state and performs no I/O, so validating the same replay twice yields
// the same result.
type Validator struct {
	t   Thresholds
	now func() time.Time
}

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithThresholds replaces the full threshold set.
func WithThresholds(t Thresholds) Option {
	return func(v *Validator) {
		v.t = t
	}
}

// WithClock injects a clock, used by tests for deterministic freshness checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// New constructs a Validator with default thresholds.
func New(opts ...Option) *Validator {
	v := &Validator{
		t:   DefaultThresholds(),
		now: time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(v)
	}

	return v
}

// step pairs a stage id, its category, and its predicate.
type step struct {
	check  Check
	reason Reason
	run    func(r *model.GameReplay, score int64, nowMS int64) (bool, string)
}

// Validate decides accept/reject for a replay and claimed score.
func (v *Validator) Validate(ctx context.Context, r *model.GameReplay, claimedScore int64) Result {
	start := time.Now()

	nowMS := v.now().UnixMilli()
	pipeline := []step{
		{CheckStructure, ReasonMalformed, v.checkStructure},
		{CheckTimestamps, ReasonMalformed, v.checkTimestamps},
		{CheckFreshness, ReasonStale, v.checkFreshness},
		{CheckEventCount, ReasonImplausible, v.checkEventCount},
		{CheckDurationConsistency, ReasonImplausible, v.checkDurationConsistency},
		{CheckDurationBounds, ReasonImplausible, v.checkDurationBounds},
		{CheckLifecycle, ReasonImplausible, v.checkLifecycle},
		{CheckScoreBounds, ReasonImplausible, v.checkScoreBounds},
		{CheckScoreRate, ReasonImplausible, v.checkScoreRate},
		{CheckPhysics, ReasonImplausible, v.checkPhysics},
		{CheckReactionTime, ReasonImplausible, v.checkReactionTime},
		{CheckInteraction, ReasonImplausible, v.checkInteraction},
		{CheckIntegrity, ReasonIntegrity, v.checkIntegrity},
	}

	for _, s := range pipeline {
		ok, detail := s.run(r, claimedScore, nowMS)
		if !ok {
			return Result{
				OK:      false,
				Check:   s.check,
				Reason:  s.reason,
				Detail:  detail,
				Elapsed: time.Since(start),
			}
		}
	}

	return Result{OK: true, Elapsed: time.Since(start)}
}

// 1. Structural well-formedness: every later check dereferences these fields.
func (v *Validator) checkStructure(r *model.GameReplay, _ int64, _ int64) (bool, string) {
	switch {
	case r == nil:
		return false, "replay missing"
	case r.StartTime <= 0:
		return false, "start_time missing"
	case r.EndTime <= 0:
		return false, "end_time missing"
	case r.Events == nil:
		return false, "events missing"
	}
	return true, ""
}

// 2. Timestamp sanity: rejects time travel and malformed instants.
func (v *Validator) checkTimestamps(r *model.GameReplay, _ int64, nowMS int64) (bool, string) {
	if r.StartTime > r.EndTime {
		return false, fmt.Sprintf("start_time %d after end_time %d", r.StartTime, r.EndTime)
	}
	if r.EndTime > nowMS {
		return false, fmt.Sprintf("end_time %d is in the future (now %d)", r.EndTime, nowMS)
	}
	return true, ""
}

// 3. Freshness: bounds the window in which a captured replay can be
// replayed verbatim against the server.
func (v *Validator) checkFreshness(r *model.GameReplay, _ int64, nowMS int64) (bool, string) {
	if delay := nowMS - r.EndTime; delay > v.t.MaxSubmissionDelayMS {
		return false, fmt.Sprintf("submission delay %dms exceeds %dms", delay, v.t.MaxSubmissionDelayMS)
	}
	if age := nowMS - r.StartTime; age > v.t.MaxGameAgeMS {
		return false, fmt.Sprintf("game age %dms exceeds %dms", age, v.t.MaxGameAgeMS)
	}
	return true, ""
}

// 4. Event count bounds: guards against trivially short fabrications and
// resource-exhaustion payloads.
func (v *Validator) checkEventCount(r *model.GameReplay, _ int64, _ int64) (bool, string) {
	n := len(r.Events)
	if n < v.t.MinEvents {
		return false, fmt.Sprintf("%d events below minimum %d", n, v.t.MinEvents)
	}
	if n > v.t.MaxEvents {
		return false, fmt.Sprintf("%d events above maximum %d", n, v.t.MaxEvents)
	}
	return true, ""
}

// 5. Duration consistency: claimed duration must match the claimed interval.
func (v *Validator) checkDurationConsistency(r *model.GameReplay, _ int64, _ int64) (bool, string) {
	diff := r.Duration - r.WallDuration()
	if diff < 0 {
		diff = -diff
	}
	if diff > v.t.DurationToleranceMS {
		return false, fmt.Sprintf("claimed duration %dms deviates %dms from wall interval %dms", r.Duration, diff, r.WallDuration())
	}
	return true, ""
}

// 6. Duration bounds.
func (v *Validator) checkDurationBounds(r *model.GameReplay, _ int64, _ int64) (bool, string) {
	if r.Duration < v.t.MinGameDurationMS {
		return false, fmt.Sprintf("duration %dms below minimum %dms", r.Duration, v.t.MinGameDurationMS)
	}
	if r.Duration > v.t.MaxGameDurationMS {
		return false, fmt.Sprintf("duration %dms above maximum %dms", r.Duration, v.t.MaxGameDurationMS)
	}
	return true, ""
}

// 7. Required lifecycle events: a replay must describe one complete run.
func (v *Validator) checkLifecycle(r *model.GameReplay, _ int64, _ int64) (bool, string) {
	if !r.HasType(model.EventGameStart) {
		return false, "no game_start event"
	}
	if !r.HasType(model.EventCollision) && !r.HasType(model.EventGameOver) {
		return false, "no terminal event (collision or game_over)"
	}
	return true, ""
}

// 8. Score bounds.
func (v *Validator) checkScoreBounds(_ *model.GameReplay, score int64, _ int64) (bool, string) {
	if score < 0 {
		return false, fmt.Sprintf("negative score %d", score)
	}
	if score > v.t.MaxScore {
		return false, fmt.Sprintf("score %d above maximum %d", score, v.t.MaxScore)
	}
	return true, ""
}

// 9. Score-rate bounds: encodes the game's fixed scoring cadence; rejects
// scores physically impossible for the elapsed time.
func (v *Validator) checkScoreRate(r *model.GameReplay, score int64, _ int64) (bool, string) {
	rate := float64(score) / float64(r.Duration) * 1000
	if rate < v.t.MinScorePerSecond || rate > v.t.MaxScorePerSecond {
		return false, fmt.Sprintf("score rate %.2f/s outside [%.2f, %.2f]", rate, v.t.MinScorePerSecond, v.t.MaxScorePerSecond)
	}
	return true, ""
}

// 10. Physics consistency: the expected score for a run is
// floor(duration/tick); the allowed drift widens with the expected score,
// reflecting compounding float and timing drift over longer play.
func (v *Validator) checkPhysics(r *model.GameReplay, score int64, _ int64) (bool, string) {
	expected := r.Duration / v.t.TickIntervalMS
	tolerance := v.t.PhysicsToleranceBase + expected*v.t.PhysicsTolerancePerMille/1000
	diff := score - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		return false, fmt.Sprintf("score %d deviates %d from expected %d (tolerance %d)", score, diff, expected, tolerance)
	}
	return true, ""
}

// 11. Behavioral plausibility: a high share of inter-jump intervals faster
// than a human reaction threshold marks automation. Only evaluated with
// enough samples; longer games get a relaxed ratio since more samples
// naturally produce more very-short intervals by chance.
func (v *Validator) checkReactionTime(r *model.GameReplay, _ int64, _ int64) (bool, string) {
	jumps := v.jumpTimes(r)
	if len(jumps) <= v.t.MinJumpSamples {
		return true, ""
	}

	fast := 0
	intervals := len(jumps) - 1
	for i := 1; i < len(jumps); i++ {
		if jumps[i]-jumps[i-1] < v.t.MinReactionMS {
			fast++
		}
	}

	limit := v.t.MaxFastJumpRatio
	if r.Duration > v.t.LongGameCutoffMS {
		limit = v.t.RelaxedFastJumpRatio
	}

	ratio := float64(fast) / float64(intervals)
	if ratio > limit {
		return false, fmt.Sprintf("%.0f%% of %d inter-jump intervals under %dms (limit %.0f%%)", ratio*100, intervals, v.t.MinReactionMS, limit*100)
	}
	return true, ""
}

// 12. Interaction plausibility: a run with many obstacles and almost no
// jumps is suspicious, and a non-trivial score with zero jumps is rejected
// outright.
func (v *Validator) checkInteraction(r *model.GameReplay, score int64, _ int64) (bool, string) {
	jumps := r.CountType(model.EventJump)
	if score > v.t.ZeroJumpScoreFloor && jumps == 0 {
		return false, fmt.Sprintf("score %d with zero jump events", score)
	}
	if score < v.t.InteractionMinScore {
		return true, ""
	}
	obstacles := r.CountType(model.EventObstacleSpawn)
	if obstacles == 0 {
		return true, ""
	}
	ratio := float64(jumps) / float64(obstacles)
	if ratio < v.t.MinJumpObstacleRatio {
		return false, fmt.Sprintf("jump/obstacle ratio %.2f below %.2f (%d jumps, %d obstacles)", ratio, v.t.MinJumpObstacleRatio, jumps, obstacles)
	}
	return true, ""
}

// 13. Explicit integrity flags: a trusted client-side probe reporting
// tampering is unconditional.
func (v *Validator) checkIntegrity(r *model.GameReplay, _ int64, _ int64) (bool, string) {
	if r.HasType(model.EventIntegrityViolation) {
		return false, "client integrity probe flagged the run"
	}
	return true, ""
}

// jumpTimes returns jump event times in relative-to-start milliseconds.
// Relative timestamps are the authoritative convention; absolute unix-ms
// timestamps (at or after the replay start) from older clients are
// normalized here as a compatibility measure.
func (v *Validator) jumpTimes(r *model.GameReplay) []int64 {
	out := make([]int64, 0, len(r.Events))
	for i := range r.Events {
		if r.Events[i].Type != model.EventJump {
			continue
		}
		ts := r.Events[i].Timestamp
		if ts >= r.StartTime {
			ts -= r.StartTime
		}
		out = append(out, ts)
	}
	return out
}
