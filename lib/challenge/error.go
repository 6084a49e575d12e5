package challenge

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
)

var (
	ErrFailed        = errors.New("challenge: proof of work failed")
	ErrMissingField  = errors.New("challenge: missing field")
	ErrInvalidFormat = errors.New("challenge: field has invalid format")
	ErrUnknownNonce  = errors.New("challenge: nonce was not issued or was already used")
	ErrExpired       = errors.New("challenge: nonce has expired")
)

// Error is a challenge failure. PublicReason is English text that is safe to
// show the client; MessageID and Data name the same text in the locale
// bundle. PrivateReason is only logged.
type Error struct {
	PrivateReason error
	Verb          string
	PublicReason  string
	MessageID     string
	Data          map[string]any
	StatusCode    int
}

func NewError(verb, publicReason string, privateReason error) *Error {
	return &Error{
		Verb:          verb,
		PublicReason:  publicReason,
		PrivateReason: privateReason,
		StatusCode:    http.StatusBadRequest,
	}
}

// Translated returns a copy of e that names its public reason by messageID.
func (e *Error) Translated(messageID string, data map[string]any) *Error {
	result := *e
	result.MessageID = messageID
	result.Data = maps.Clone(data)
	return &result
}

func (e *Error) Error() string {
	return fmt.Sprintf("challenge: %s: %v", e.Verb, e.PrivateReason)
}

func (e *Error) Unwrap() error {
	return e.PrivateReason
}

func (e *Error) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("verb", e.Verb),
		slog.String("public", e.PublicReason),
		slog.Any("private", e.PrivateReason),
	)
}
