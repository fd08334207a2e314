package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/hopguard/internal/adapters/repository"
	"github.com/okian/hopguard/internal/domain/model"
	"github.com/okian/hopguard/internal/domain/session"
	"github.com/okian/hopguard/internal/domain/submit"
)

// Cap on request body size to bound replay payloads.
const maxScoreBodyBytes = 1 << 20

// ScoreHandler accepts score submissions and serves a player's stored
// best.
type ScoreHandler struct {
	deps Dependencies
}

// NewScoreHandler constructs a ScoreHandler.
func NewScoreHandler(deps Dependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

type scoreRequest struct {
	Score     int64            `json:"score"`
	SessionID string           `json:"sessionId"`
	Replay    model.GameReplay `json:"replay"`
}

// validate rejects structurally unusable requests before any state is
// touched. Deeper replay analysis happens in the validation pipeline.
func (req *scoreRequest) validate() error {
	if req.SessionID == "" {
		return NewKind("missing sessionId", ErrBadRequest)
	}
	if req.Score < 0 {
		return NewKind("negative score", ErrBadRequest)
	}
	return nil
}

type scoreResponse struct {
	Accepted          bool  `json:"accepted"`
	NewHighScore      int64 `json:"newHighScore"`
	PreviousHighScore int64 `json:"previousHighScore"`
	Improvement       int64 `json:"improvement"`
}

type profileResponse struct {
	UserID      string `json:"userId"`
	Score       int64  `json:"score"`
	Rank        int    `json:"rank,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

// HandleScore routes by method: POST submits a score, GET reads the
// stored best.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmit(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
	}
}

func (h *ScoreHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_score"
	ownerID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return
	}

	var req scoreRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScoreBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err)
		return
	}

	result, err := h.deps.Submit(r.Context(), ownerID, req.SessionID, &req.Replay, req.Score)
	if err != nil {
		h.writeSubmitError(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, scoreResponse{
		Accepted:          result.Accepted,
		NewHighScore:      result.NewHighScore,
		PreviousHighScore: result.PreviousHighScore,
		Improvement:       result.Improvement,
	})
}

// writeSubmitError maps coordinator errors to responses. Clients only
// ever see the coarse category; the failing check and reason stay in
// the server-side audit trail.
func (h *ScoreHandler) writeSubmitError(w http.ResponseWriter, op string, err error) {
	var vErr *submit.ValidationError
	var rlErr *submit.RateLimitedError

	switch {
	case errors.Is(err, session.ErrSessionExpired):
		writeError(w, http.StatusBadRequest, "session_expired", session.ErrSessionExpired)
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "validation_failed", vErr)
	case errors.As(err, &rlErr):
		retryAfter := int64(rlErr.RetryAfter / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
		writeError(w, http.StatusTooManyRequests, "rate_limited", rlErr)
	case errors.Is(err, submit.ErrPersistence):
		writeError(w, http.StatusInternalServerError, "persistence_error", submit.ErrPersistence)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, ErrInternal))
	}
}

func (h *ScoreHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
	ownerID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return
	}

	profile, err := h.deps.Profile(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	resp := profileResponse{UserID: profile.UserID, Score: profile.Score}
	entry, err := h.deps.Rank(r.Context(), ownerID)
	switch {
	case err == nil:
		resp.Rank = entry.Rank
	case errors.Is(err, repository.ErrNotFound):
		// No rank until the player is on the board.
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if !profile.LastUpdated.IsZero() {
		resp.LastUpdated = profile.LastUpdated.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
