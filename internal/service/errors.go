package service

import (
	"errors"
)

// Kind classifies an outcome so callers can decide whether to retry.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidRequest is a malformed input; not retriable as-is.
	KindInvalidRequest
	// KindContention is transient; retry with backoff.
	KindContention
	// KindConflict is terminal for this input.
	KindConflict
	// KindUnauthorized carries no detail that would aid enumeration.
	KindUnauthorized
	KindNotFound
	// KindUnavailable means a dependency failed; the operation failed closed.
	KindUnavailable
)

// Error is a classified service error.  Sentinels below are compared with
// errors.Is; detail is added by wrapping with fmt.Errorf("%w: ...").
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

var (
	ErrInvalidRequest = &Error{KindInvalidRequest, "invalid_request", "invalid request"}
	ErrWeakCredential = &Error{KindInvalidRequest, "weak_credential", "password must be at least 8 characters"}

	ErrSeatContended   = &Error{KindContention, "seat_contended", "seat is being booked by another request"}
	ErrLockUnavailable = &Error{KindContention, "lock_unavailable", "seat lock unavailable"}

	ErrSeatAlreadyBooked = &Error{KindConflict, "seat_already_booked", "seat already booked"}
	ErrDuplicateAccount  = &Error{KindConflict, "duplicate_account", "email already registered"}

	ErrInvalidCredential = &Error{KindUnauthorized, "invalid_credential", "invalid credentials"}
	ErrInvalidToken      = &Error{KindUnauthorized, "invalid_token", "invalid or expired token"}
	ErrForbidden         = &Error{KindUnauthorized, "forbidden", "forbidden"}

	ErrNotFound = &Error{KindNotFound, "not_found", "not found"}

	ErrStoreUnavailable = &Error{KindUnavailable, "store_unavailable", "service temporarily unavailable"}
)

// KindOf classifies err.  Anything unclassified is treated as a
// dependency failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// AsError returns the classified error behind err, falling back to
// ErrStoreUnavailable.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrStoreUnavailable
}
