package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if HOPGUARD_CONFIG is set
//  3. env (prefix HOPGUARD_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("HOPGUARD_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: HOPGUARD_ADDR, HOPGUARD_SESSION_TTL_SECONDS, ...
	// Map env keys like HOPGUARD_TICK_INTERVAL_MS -> tick_interval_ms (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("HOPGUARD_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "hopguard_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate enforces the structural relations between thresholds.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SessionTTLSeconds <= 0:
		return fmt.Errorf("%w: session_ttl_seconds must be positive", ErrInvalidConfig)
	case c.MinEvents < 1 || c.MaxEvents < c.MinEvents:
		return fmt.Errorf("%w: event bounds must satisfy 1 <= min_events <= max_events", ErrInvalidConfig)
	case c.MinGameDurationMS <= 0 || c.MaxGameDurationMS < c.MinGameDurationMS:
		return fmt.Errorf("%w: duration bounds must satisfy 0 < min_game_duration_ms <= max_game_duration_ms", ErrInvalidConfig)
	case c.MinScorePerSecond < 0 || c.MaxScorePerSecond < c.MinScorePerSecond:
		return fmt.Errorf("%w: score rate bounds must satisfy 0 <= min_score_per_second <= max_score_per_second", ErrInvalidConfig)
	case c.TickIntervalMS <= 0:
		return fmt.Errorf("%w: tick_interval_ms must be positive", ErrInvalidConfig)
	case c.SessionBackend != "memory" && c.SessionBackend != "redis":
		return fmt.Errorf("%w: session_backend must be memory or redis", ErrInvalidConfig)
	}
	if c.SessionBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("%w: redis_addr must not be empty when session_backend is redis", ErrInvalidConfig)
	}
	return nil
}
