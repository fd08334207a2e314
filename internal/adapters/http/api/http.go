// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/hopguard/internal/adapters/identity"
	"github.com/okian/hopguard/internal/adapters/repository"
	"github.com/okian/hopguard/internal/domain/model"
	"github.com/okian/hopguard/internal/domain/session"
	"github.com/okian/hopguard/internal/domain/submit"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// CreateSession issues a fresh one-time play session for ownerID.
	CreateSession(ctx context.Context, ownerID string) (session.PlaySession, error)

	// Submit runs the full submission gate sequence.
	Submit(ctx context.Context, ownerID, sessionID string, r *model.GameReplay, claimedScore int64) (submit.Result, error)

	// Profile returns ownerID's stored best, creating it on first access.
	Profile(ctx context.Context, ownerID string) (repository.Profile, error)

	// Rank returns ownerID's current leaderboard position.
	Rank(ctx context.Context, ownerID string) (repository.Entry, error)

	// TopN exposes leaderboard data.
	TopN(ctx context.Context, n int) ([]repository.Entry, error)

	// LeaderboardUpdatedAt reports the most recent accepted write.
	LeaderboardUpdatedAt(ctx context.Context) time.Time
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionHandler     *SessionHandler
	scoreHandler       *ScoreHandler
	leaderboardHandler *LeaderboardHandler
	verifier           identity.Verifier
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, verifier identity.Verifier, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		sessionHandler:     NewSessionHandler(deps),
		scoreHandler:       NewScoreHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		verifier:           verifier,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return AuthMiddleware(s.verifier, next)
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/session", MetricsMiddleware(auth(s.sessionHandler.HandlePostSession), "session"))
	mux.HandleFunc("/score", MetricsMiddleware(auth(s.scoreHandler.HandleScore), "score"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
