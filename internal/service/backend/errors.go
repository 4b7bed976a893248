package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies adapter failures. The orchestrator treats them all
// as a failed generation; the distinction is kept for logs and metrics.
type ErrorKind string

const (
	KindTimeout         ErrorKind = "timeout"
	KindRateLimited     ErrorKind = "rate_limited"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindUnreachable     ErrorKind = "unreachable"
)

// Error is a typed backend failure.
type Error struct {
	Backend string
	Kind    ErrorKind
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with an explicit kind.
func NewError(backendID string, kind ErrorKind, err error) *Error {
	return &Error{Backend: backendID, Kind: kind, Err: err}
}

// Classify maps a raw transport error onto an ErrorKind. Deadline errors
// become Timeout, network errors Unreachable, everything else
// InvalidResponse.
func Classify(backendID string, err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	kind := KindInvalidResponse
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &netErr):
		kind = KindUnreachable
	}
	return &Error{Backend: backendID, Kind: kind, Err: err}
}
