// Package model contains domain models passed between layers.
package model

import "time"

// EventType tags a single replay event. The vocabulary is open on the
// wire; the validator only recognizes the tags below.
type EventType string

// Recognized event tags.
const (
	EventGameStart          EventType = "game_start"
	EventJump               EventType = "jump"
	EventObstacleSpawn      EventType = "obstacle_spawn"
	EventCollision          EventType = "collision"
	EventGameOver           EventType = "game_over"
	EventIntegrityViolation EventType = "integrity_violation"
)

// ReplayEvent is one entry in a submitted event log. Timestamp is in
// milliseconds, relative to the start of the run; absolute unix-ms
// timestamps from older clients are normalized before validation.
type ReplayEvent struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
}

// GameReplay is the client-submitted description of one play session,
// used as evidence for the validator. Immutable once submitted.
type GameReplay struct {
	// StartTime and EndTime are wall-clock unix milliseconds bounding the
	// claimed run.
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`

	// Duration is the claimed elapsed milliseconds, client-computed. The
	// validator re-derives it from the timestamps independently.
	Duration int64 `json:"duration"`

	// Events is the ordered event log; insertion order is chronological.
	Events []ReplayEvent `json:"events"`
}

// WallDuration returns the elapsed milliseconds implied by the claimed
// wall-clock interval.
func (r *GameReplay) WallDuration() int64 {
	return r.EndTime - r.StartTime
}

// CountType returns how many events carry the given tag.
func (r *GameReplay) CountType(t EventType) int {
	n := 0
	for i := range r.Events {
		if r.Events[i].Type == t {
			n++
		}
	}
	return n
}

// HasType reports whether any event carries the given tag.
func (r *GameReplay) HasType(t EventType) bool {
	for i := range r.Events {
		if r.Events[i].Type == t {
			return true
		}
	}
	return false
}

// ScoreSubmission is the transient per-request submission payload. It is
// never persisted as-is.
type ScoreSubmission struct {
	Score     int64      `json:"score"`
	SessionID string     `json:"sessionId"`
	Replay    GameReplay `json:"replay"`
}

// AuditRecord captures the full server-side detail of one submission
// decision. Records flow through the audit queue; only coarse categories
// ever reach the client.
type AuditRecord struct {
	Owner     string
	SessionID string
	Score     int64
	Outcome   string // accepted, noop, or rejected
	Category  string // client-facing category for rejections
	Check     string // failing validation check, when applicable
	Reason    string // full server-side reason
	Elapsed   time.Duration
	At        time.Time
}
