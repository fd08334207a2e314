package session

import "errors"

// Sentinel kinds for session errors.
//
// ErrSessionExpired deliberately collapses absence, expiry, reuse, owner
// mismatch, and bad signatures into one outcome: distinguishing them
// would tell an attacker which condition to iterate on.
var (
	ErrSessionExpired = errors.New("session expired")
	ErrStoreFailed    = errors.New("session store failed")
)
