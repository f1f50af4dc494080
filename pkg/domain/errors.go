package domain

import "errors"

// ErrNotInitialized is returned when a manager operation runs before Initialize.
var ErrNotInitialized = errors.New("session manager not initialized")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrStoreUnavailable is returned when the shared store is unreachable.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrRecordInvalid is returned when a stored record body cannot be decoded.
// Distinct from transient store errors: an invalid record is unrecoverable
// and safe to reclaim, a transient read failure is not.
var ErrRecordInvalid = errors.New("session record invalid")
