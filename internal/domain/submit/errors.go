package submit

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/hopguard/internal/domain/replay"
)

// Sentinel kinds for submission errors.
var (
	// ErrPersistence marks a downstream storage failure. The session is
	// already consumed at that point, so the client retries with a fresh
	// session, never the same one.
	ErrPersistence = errors.New("persistence failed")
)

// ValidationError carries the coarse category to the caller; the failing
// check and full detail stay server-side (audit log), so a rejected
// client cannot tune a fabricated replay against the exact check.
type ValidationError struct {
	Check  replay.Check
	Reason replay.Reason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// RateLimitedError reports a submission inside the cooldown window.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited; retry after %s", e.RetryAfter)
}
