package lib

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/TecharoHQ/wall/lib/message"
)

func TestError(t *testing.T) {
	err := NewError(ErrValidation, "message must not be empty", message.ErrEmptyMessage)

	if !errors.Is(err, ErrValidation) {
		t.Error("error does not match its kind")
	}

	if !errors.Is(err, message.ErrEmptyMessage) {
		t.Error("error does not match its private reason")
	}

	if err.StatusCode != http.StatusBadRequest {
		t.Errorf("wanted 400, got %d", err.StatusCode)
	}

	var e *Error
	if !errors.As(error(err), &e) || e.KindName() != "validation" {
		t.Errorf("errors.As failed or wrong kind name: %+v", e)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	for kind, want := range map[error]int{
		ErrValidation:    400,
		ErrProofOfWork:   400,
		ErrRateLimited:   429,
		ErrNotFound:      404,
		ErrConfiguration: 500,
		ErrStorage:       500,
	} {
		if got := NewError(kind, "", nil).StatusCode; got != want {
			t.Errorf("%v: wanted %d, got %d", kind, want, got)
		}
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	err := NewError(ErrRateLimited, "slow down", nil)
	err.RetryAfter = 59*time.Second + time.Millisecond

	if got := err.RetryAfterSeconds(); got != 60 {
		t.Errorf("wanted 60, got %d", got)
	}
}
