package api

import (
	"context"
	"net/http"
)

// Stats is an operational snapshot of the service.
type Stats struct {
	Players       int   `json:"players"`
	LiveSessions  int   `json:"liveSessions"`
	TombstoneSize int   `json:"tombstoneSize"`
	AuditQueueLen int64 `json:"auditQueueLen"`
}

// StatsProvider supplies the operational snapshot.
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// StatsHandler serves the operational snapshot.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats returns counters useful for dashboards and debugging.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}

	stats, err := h.provider.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
