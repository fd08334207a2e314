// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Every validation threshold is named configuration, never an inline literal.
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// JWTSecret verifies bearer tokens issued by the identity provider.
	JWTSecret string `koanf:"jwt_secret"`

	// SessionSecret signs play-session tokens so shape validity is
	// checkable without a store lookup.
	SessionSecret string `koanf:"session_secret"`

	// SessionTTLSeconds bounds how long an issued play session is
	// redeemable. Short TTLs narrow the replay-attack window.
	SessionTTLSeconds int `koanf:"session_ttl_seconds"`

	// SessionSweepIntervalSeconds sets how often expired sessions are
	// garbage collected.
	SessionSweepIntervalSeconds int `koanf:"session_sweep_interval_seconds"`

	// TombstoneCap bounds the consumed-session-id set. Once exceeded the
	// set is cleared wholesale; ids are drawn from a space with negligible
	// collision probability so a cleared set is an accepted tradeoff.
	TombstoneCap int `koanf:"tombstone_cap"`

	// SessionBackend selects the session store: "memory" (single instance
	// only) or "redis" (shared state for horizontally scaled deployments).
	SessionBackend string `koanf:"session_backend"`

	// RedisAddr, RedisPassword, RedisDB configure the redis session store.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// CooldownSeconds is the minimum gap between two accepted submissions
	// by the same player, independent of any outer rate limiter.
	CooldownSeconds int `koanf:"cooldown_seconds"`

	// PersistTimeoutMS bounds the profile store write during submission.
	PersistTimeoutMS int `koanf:"persist_timeout_ms"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// AuditQueueSize and AuditWorkerCount size the async audit pipeline.
	AuditQueueSize   int `koanf:"audit_queue_size"`
	AuditWorkerCount int `koanf:"audit_worker_count"`

	// Replay validation thresholds. These are heuristics: each trades
	// false-positive rate against bypass difficulty and is expected to be
	// tuned per deployment.

	// MaxSubmissionDelayMS bounds now - replay.EndTime.
	MaxSubmissionDelayMS int64 `koanf:"max_submission_delay_ms"`

	// MaxGameAgeMS bounds now - replay.StartTime.
	MaxGameAgeMS int64 `koanf:"max_game_age_ms"`

	// MinEvents and MaxEvents bound the replay event count.
	MinEvents int `koanf:"min_events"`
	MaxEvents int `koanf:"max_events"`

	// DurationToleranceMS bounds |duration - (end - start)|.
	DurationToleranceMS int64 `koanf:"duration_tolerance_ms"`

	// MinGameDurationMS and MaxGameDurationMS bound the claimed duration.
	MinGameDurationMS int64 `koanf:"min_game_duration_ms"`
	MaxGameDurationMS int64 `koanf:"max_game_duration_ms"`

	// MaxScore caps the claimed score.
	MaxScore int64 `koanf:"max_score"`

	// MinScorePerSecond and MaxScorePerSecond bound score/duration.
	MinScorePerSecond float64 `koanf:"min_score_per_second"`
	MaxScorePerSecond float64 `koanf:"max_score_per_second"`

	// TickIntervalMS is the game's fixed scoring cadence; the expected
	// score for a run is floor(duration / tick).
	TickIntervalMS int64 `koanf:"tick_interval_ms"`

	// PhysicsToleranceBase and PhysicsTolerancePerMille define the allowed
	// |claimed - expected| drift: base + expected*perMille/1000.
	PhysicsToleranceBase     int64 `koanf:"physics_tolerance_base"`
	PhysicsTolerancePerMille int64 `koanf:"physics_tolerance_per_mille"`

	// MinReactionMS is the fastest plausible human inter-jump interval.
	MinReactionMS int64 `koanf:"min_reaction_ms"`

	// MaxFastJumpRatio rejects replays whose share of sub-reaction
	// inter-jump intervals exceeds it. RelaxedFastJumpRatio applies to
	// games longer than LongGameCutoffMS, where more samples naturally
	// produce more short intervals by chance.
	MaxFastJumpRatio     float64 `koanf:"max_fast_jump_ratio"`
	RelaxedFastJumpRatio float64 `koanf:"relaxed_fast_jump_ratio"`
	LongGameCutoffMS     int64   `koanf:"long_game_cutoff_ms"`

	// MinJumpSamples gates the reaction-time heuristic; below this many
	// jumps there is not enough signal.
	MinJumpSamples int `koanf:"min_jump_samples"`

	// MinJumpObstacleRatio is the floor for jumps/obstacles on non-trivial
	// scores; InteractionMinScore defines non-trivial; ZeroJumpScoreFloor
	// is the score above which zero jumps is rejected outright.
	MinJumpObstacleRatio float64 `koanf:"min_jump_obstacle_ratio"`
	InteractionMinScore  int64   `koanf:"interaction_min_score"`
	ZeroJumpScoreFloor   int64   `koanf:"zero_jump_score_floor"`
}

// New creates a Config with defaults.
func New() *Config {
	c := &Config{
		LogLevel:                    "info",
		Addr:                        ":9080",
		JWTSecret:                   "",
		SessionSecret:               "",
		SessionTTLSeconds:           600, // 10 minutes
		SessionSweepIntervalSeconds: 60,
		TombstoneCap:                100_000,
		SessionBackend:              "memory",
		RedisAddr:                   "localhost:6379",
		RedisDB:                     0,
		CooldownSeconds:             30,
		PersistTimeoutMS:            2_000,
		MaxLeaderboardLimit:         100,
		AuditQueueSize:              10_000,
		AuditWorkerCount:            2,

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
	return c
}
