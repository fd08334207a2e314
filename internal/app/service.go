// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/hopguard/internal/adapters/http/api"
	auditqueue "github.com/okian/hopguard/internal/adapters/mq/queue"
	auditworker "github.com/okian/hopguard/internal/adapters/mq/worker"
	"github.com/okian/hopguard/internal/adapters/repository"
	"github.com/okian/hopguard/internal/adapters/sessionstore"
	"github.com/okian/hopguard/internal/config"
	"github.com/okian/hopguard/internal/domain/model"
	"github.com/okian/hopguard/internal/domain/replay"
	"github.com/okian/hopguard/internal/domain/session"
	"github.com/okian/hopguard/internal/domain/submit"
	"github.com/okian/hopguard/internal/domain/tombstone"
	"github.com/okian/hopguard/pkg/logger"
	"github.com/okian/hopguard/pkg/metrics"
)

// Service wires sessions, validation, submission, profiles, and the
// audit pipeline behind the API dependency interfaces.
type Service struct {
	mu sync.RWMutex

	// Core components
	cfg          *config.Config
	registry     *session.Registry
	sessionStore session.Store
	tombstones   tombstone.Set
	validator    *replay.Validator
	profiles     *repository.TreapStore
	coordinator  *submit.Coordinator
	auditQueue   auditqueue.Queue
	auditPool    *auditworker.Pool
	redisClient  *redis.Client

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionStore overrides the configured session store backend.
func WithSessionStore(store session.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.sessionStore = store
		}
	}
}

// New constructs a Service from configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting score guard service...")

	s.tombstones = tombstone.NewInMemorySet(
		tombstone.WithMaxSize(s.cfg.TombstoneCap),
	)

	if s.sessionStore == nil {
		switch s.cfg.SessionBackend {
		case "redis":
			s.redisClient = redis.NewClient(&redis.Options{
				Addr:     s.cfg.RedisAddr,
				Password: s.cfg.RedisPassword,
				DB:       s.cfg.RedisDB,
			})
			s.sessionStore = sessionstore.NewRedisStore(s.redisClient)
			s.logger.Info(ctx, "using redis session store", logger.String("addr", s.cfg.RedisAddr))
		default:
			s.sessionStore = session.NewMemoryStore(s.tombstones)
			s.logger.Info(ctx, "using in-memory session store")
		}
	}

	registryOpts := []session.Option{
		session.WithTTL(time.Duration(s.cfg.SessionTTLSeconds) * time.Second),
	}
	if s.cfg.SessionSecret != "" {
		registryOpts = append(registryOpts, session.WithSecret([]byte(s.cfg.SessionSecret)))
	}
	s.registry = session.NewRegistry(s.sessionStore, registryOpts...)

	s.validator = replay.New(
		replay.WithThresholds(thresholdsFromConfig(s.cfg)),
	)

	s.profiles = repository.NewTreapStore(ctx)

	s.auditQueue = auditqueue.NewInMemoryQueue(
		auditqueue.WithCapacity(s.cfg.AuditQueueSize),
		auditqueue.WithBufferSize(s.cfg.AuditQueueSize),
	)
	s.auditPool = auditworker.NewPool(s.cfg.AuditWorkerCount, s.auditQueue, auditworker.NewLogSink(nil))
	s.auditPool.Start(ctx)

	s.coordinator = submit.NewCoordinator(
		s.registry,
		s.validator,
		s.profiles,
		submit.WithCooldown(time.Duration(s.cfg.CooldownSeconds)*time.Second),
		submit.WithPersistTimeout(time.Duration(s.cfg.PersistTimeoutMS)*time.Millisecond),
		submit.WithAuditor(s.auditQueue),
	)

	s.wg.Add(1)
	go s.sweepLoop(ctx)

	s.started = true
	s.logger.Info(ctx, "score guard service started",
		logger.Int("auditWorkers", s.cfg.AuditWorkerCount),
		logger.Int("auditQueueSize", s.cfg.AuditQueueSize),
		logger.Int("sessionTTLSeconds", s.cfg.SessionTTLSeconds),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping score guard service...")

	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}
	s.wg.Wait()

	// Close the queue first so workers drain and exit, then stop the pool.
	if s.auditQueue != nil {
		_ = s.auditQueue.Close()
	}
	if s.auditPool != nil {
		s.auditPool.Stop()
	}

	if s.profiles != nil {
		_ = s.profiles.Close()
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "score guard service stopped")
}

// sweepLoop garbage-collects expired sessions and refreshes gauges.
func (s *Service) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	interval := time.Duration(s.cfg.SessionSweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			swept := s.registry.Sweep(ctx)
			if swept > 0 {
				s.logger.Debug(ctx, "swept expired sessions", logger.Int("count", swept))
			}
			metrics.UpdateTombstoneSize(s.tombstones.Size())
			metrics.UpdateTotalPlayers(s.profiles.Count(ctx))
		}
	}
}

// CreateSession issues a fresh one-time play session for ownerID.
func (s *Service) CreateSession(ctx context.Context, ownerID string) (session.PlaySession, error) {
	return s.registry.Create(ctx, ownerID)
}

// Submit runs the full submission gate sequence.
func (s *Service) Submit(ctx context.Context, ownerID, sessionID string, r *model.GameReplay, claimedScore int64) (submit.Result, error) {
	return s.coordinator.Submit(ctx, ownerID, sessionID, r, claimedScore)
}

// Profile returns ownerID's stored best, creating it on first access.
func (s *Service) Profile(ctx context.Context, ownerID string) (repository.Profile, error) {
	return s.profiles.GetOrCreate(ctx, ownerID)
}

// Rank returns ownerID's current leaderboard position.
func (s *Service) Rank(ctx context.Context, ownerID string) (repository.Entry, error) {
	return s.profiles.Rank(ctx, ownerID)
}

// TopN returns leaderboard data.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	return s.profiles.TopN(ctx, n)
}

// LeaderboardUpdatedAt reports the most recent accepted write.
func (s *Service) LeaderboardUpdatedAt(ctx context.Context) time.Time {
	return s.profiles.LastUpdated(ctx)
}

// GetStats returns the operational snapshot.
func (s *Service) GetStats(ctx context.Context) (api.Stats, error) {
	live, err := s.sessionStore.Live(ctx)
	if err != nil {
		live = 0
	}
	return api.Stats{
		Players:       s.profiles.Count(ctx),
		LiveSessions:  live,
		TombstoneSize: int(s.tombstones.Size()),
		AuditQueueLen: int64(s.auditQueue.Len(ctx)),
	}, nil
}

// thresholdsFromConfig maps configuration onto validator thresholds.
func thresholdsFromConfig(cfg *config.Config) replay.Thresholds {
	return replay.Thresholds{
		MaxSubmissionDelayMS:     cfg.MaxSubmissionDelayMS,
		MaxGameAgeMS:             cfg.MaxGameAgeMS,
		MinEvents:                cfg.MinEvents,
		MaxEvents:                cfg.MaxEvents,
		DurationToleranceMS:      cfg.DurationToleranceMS,
		MinGameDurationMS:        cfg.MinGameDurationMS,
		MaxGameDurationMS:        cfg.MaxGameDurationMS,
		MaxScore:                 cfg.MaxScore,
		MinScorePerSecond:        cfg.MinScorePerSecond,
		MaxScorePerSecond:        cfg.MaxScorePerSecond,
		TickIntervalMS:           cfg.TickIntervalMS,
		PhysicsToleranceBase:     cfg.PhysicsToleranceBase,
		PhysicsTolerancePerMille: cfg.PhysicsTolerancePerMille,
		MinReactionMS:            cfg.MinReactionMS,
		MaxFastJumpRatio:         cfg.MaxFastJumpRatio,
		RelaxedFastJumpRatio:     cfg.RelaxedFastJumpRatio,
		LongGameCutoffMS:         cfg.LongGameCutoffMS,
		MinJumpSamples:           cfg.MinJumpSamples,
		MinJumpObstacleRatio:     cfg.MinJumpObstacleRatio,
		InteractionMinScore:      cfg.InteractionMinScore,
		ZeroJumpScoreFloor:       cfg.ZeroJumpScoreFloor,
	}
}
