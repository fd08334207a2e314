package api

import (
	"net/http"
	"time"
)

// SessionHandler issues one-time play sessions.
type SessionHandler struct {
	deps Dependencies
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(deps Dependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type sessionResponse struct {
	SessionID  string `json:"sessionId"`
	ExpiresAt  string `json:"expiresAt"`
	ServerTime string `json:"serverTime"`
}

// HandlePostSession issues a fresh play session for the authenticated
// player. Each game round needs its own session; tokens are single-use.
func (h *SessionHandler) HandlePostSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}

	ownerID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return
	}

	s, err := h.deps.CreateSession(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", ErrInternal)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:  s.ID,
		ExpiresAt:  s.ExpiresAt.UTC().Format(time.RFC3339),
		ServerTime: time.Now().UTC().Format(time.RFC3339),
	})
}
