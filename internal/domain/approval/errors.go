package approval

import "errors"

// Sentinel errors for approval lifecycle operations. All are local,
// recoverable conditions returned to the caller; none crash the engine.
// Their reason strings are distinct on purpose: "denied by policy" must
// never be conflated with "expired" or "already decided" upstream.
var (
	// ErrNotFound is returned when an approval ID references no record.
	ErrNotFound = errors.New("approval not found")
	// ErrAlreadyDecided is returned on a duplicate or stale decision
	// attempt. Exactly one decision call succeeds per approval.
	ErrAlreadyDecided = errors.New("approval already decided")
	// ErrExpired is returned when a decision arrives after the deadline.
	// The caller may re-request the action.
	ErrExpired = errors.New("approval expired")
	// ErrInvalidState is returned when an edit is attempted after the
	// approval left the pending state.
	ErrInvalidState = errors.New("approval is not pending")
)
