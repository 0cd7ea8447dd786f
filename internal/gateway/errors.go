package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure for callers that need to branch on it.
type Kind string

const (
	KindAuthFailure     Kind = "auth_failure"
	KindUnreachable     Kind = "unreachable"
	KindUnavailable     Kind = "unavailable"
	KindSessionNotFound Kind = "session_not_found"
	KindInvalidModel    Kind = "invalid_model"
	KindResponsePending Kind = "response_pending"
	KindUnknown         Kind = "unknown"
)

// Error is the discriminated error returned by every client operation.
// Op is the gateway operation ("sessions.list", "sessions.send", ...),
// Status the HTTP status when one was received (0 otherwise).
type Error struct {
	Op     string
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from an error chain, defaulting to KindUnknown.
// A nil error has no kind and returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// IsPending reports whether err means "the gateway may still deliver" —
// a timeout raced the response, so the outcome is unknown, not failed.
func IsPending(err error) bool {
	return KindOf(err) == KindResponsePending
}
