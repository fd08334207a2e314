package api

import (
	"net/http"
	"strconv"
	"time"
)

const defaultLeaderboardLimit = 10

// LeaderboardHandler serves ranked top scores.
type LeaderboardHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewLeaderboardHandler constructs a LeaderboardHandler.
func NewLeaderboardHandler(deps Dependencies, maxLimit int) *LeaderboardHandler {
	if maxLimit < 1 {
		maxLimit = defaultLeaderboardLimit
	}
	return &LeaderboardHandler{deps: deps, maxLimit: maxLimit}
}

type leaderboardEntry struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Score  int64  `json:"score"`
}

type leaderboardResponse struct {
	Leaderboard []leaderboardEntry `json:"leaderboard"`
	LastUpdated string             `json:"lastUpdated,omitempty"`
}

// HandleGetLeaderboard returns the top N players by best score.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_input", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	entries, err := h.deps.TopN(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	resp := leaderboardResponse{Leaderboard: make([]leaderboardEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Leaderboard = append(resp.Leaderboard, leaderboardEntry{
			Rank:   e.Rank,
			Player: e.UserID,
			Score:  e.Score,
		})
	}
	if updated := h.deps.LeaderboardUpdatedAt(r.Context()); !updated.IsZero() {
		resp.LastUpdated = updated.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
