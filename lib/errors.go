package lib

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kinds of request failure. Every *Error wraps exactly one of them.
var (
	ErrValidation    = errors.New("lib: request is invalid")
	ErrProofOfWork   = errors.New("lib: proof of work is invalid")
	ErrRateLimited   = errors.New("lib: client is rate limited")
	ErrNotFound      = errors.New("lib: not found")
	ErrConfiguration = errors.New("lib: server is misconfigured")
	ErrStorage       = errors.New("lib: storage failure")
)

var statusCodes = map[error]int{
	ErrValidation:    http.StatusBadRequest,
	ErrProofOfWork:   http.StatusBadRequest,
	ErrRateLimited:   http.StatusTooManyRequests,
	ErrNotFound:      http.StatusNotFound,
	ErrConfiguration: http.StatusInternalServerError,
	ErrStorage:       http.StatusInternalServerError,
}

// Error is a rejected request. PublicReason is sent to the client;
// PrivateReason is only logged.
type Error struct {
	Kind          error
	PublicReason  string
	PrivateReason error
	StatusCode    int
	RetryAfter    time.Duration
}

func NewError(kind error, publicReason string, privateReason error) *Error {
	status, ok := statusCodes[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	return &Error{
		Kind:          kind,
		PublicReason:  publicReason,
		PrivateReason: privateReason,
		StatusCode:    status,
	}
}

func (e *Error) Error() string {
	if e.PrivateReason == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.PublicReason)
	}

	return fmt.Sprintf("%v: %s: %v", e.Kind, e.PublicReason, e.PrivateReason)
}

func (e *Error) Unwrap() []error {
	if e.PrivateReason == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.PrivateReason}
}

// KindName is a short label for metrics.
func (e *Error) KindName() string {
	switch e.Kind {
	case ErrValidation:
		return "validation"
	case ErrProofOfWork:
		return "proof_of_work"
	case ErrRateLimited:
		return "rate_limited"
	case ErrNotFound:
		return "not_found"
	case ErrConfiguration:
		return "configuration"
	case ErrStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// RetryAfterSeconds is RetryAfter rounded up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	return int((e.RetryAfter + time.Second - 1) / time.Second)
}
