// Package ratelimit enforces the per-client posting cooldown and hourly cap.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/internal/registry"
)

var (
	ErrBadConfig = errors.New("ratelimit: configuration is invalid")
	ErrBackend   = errors.New("ratelimit: backend failure")
)

// Reason says which limit denied a request.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonCooldown Reason = "cooldown"
	ReasonHourly   Reason = "hourly_limit"
)

// Decision is the outcome of one CheckAndConsume call.
type Decision struct {
	Allowed    bool
	Reason     Reason
	RetryAfter time.Duration // zero when Allowed
	Remaining  int           // posts left in the current window
}

// RetryAfterSeconds is RetryAfter as whole seconds.
func (d Decision) RetryAfterSeconds() int {
	return int(d.RetryAfter / time.Second)
}

// Limiter is implemented by every rate limit backend.
type Limiter interface {
	// CheckAndConsume decides whether clientKey may post at now and, if so,
	// records the post. The read-modify-write is atomic per key.
	CheckAndConsume(ctx context.Context, clientKey string, now time.Time) (Decision, error)

	// Sweep evicts records whose window has ended and that have not posted in
	// the trailing window. It reports how many were evicted.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Limits are the knobs shared by all backends.
type Limits struct {
	MaxPerHour int
	Cooldown   time.Duration
	Window     time.Duration
}

// DefaultLimits allows 10 posts per hour, at most one per minute.
func DefaultLimits() Limits {
	return Limits{
		MaxPerHour: wall.MaxPostsPerHour,
		Cooldown:   wall.PostCooldown,
		Window:     wall.RateLimitWindow,
	}
}

func (l Limits) Valid() error {
	var errs []error

	if l.MaxPerHour <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_per_hour must be positive, got %d", ErrBadConfig, l.MaxPerHour))
	}

	if l.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("%w: cooldown must not be negative, got %s", ErrBadConfig, l.Cooldown))
	}

	if l.Window <= 0 {
		errs = append(errs, fmt.Errorf("%w: window must be positive, got %s", ErrBadConfig, l.Window))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// CooldownRetry rounds the remaining cooldown up to whole seconds.
func CooldownRetry(wait time.Duration) time.Duration {
	return roundUp(wait, time.Second)
}

// HourlyRetry rounds the time until the window resets up to whole minutes.
func HourlyRetry(wait time.Duration) time.Duration {
	return roundUp(wait, time.Minute)
}

func roundUp(d, unit time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}

	return ((d + unit - 1) / unit) * unit
}

// Allow builds an Allowed decision.
func Allow(remaining int) Decision {
	return Decision{Allowed: true, Remaining: remaining}
}

// Deny builds a Denied decision.
func Deny(reason Reason, retryAfter time.Duration, remaining int) Decision {
	return Decision{
		Reason:     reason,
		RetryAfter: retryAfter,
		Remaining:  remaining,
	}
}

var backends = registry.New[Factory]("ratelimit")

// Factory builds a Limiter from its JSON parameters.
type Factory interface {
	Build(ctx context.Context, limits Limits, config json.RawMessage) (Limiter, error)
	Valid(config json.RawMessage) error
}

func Register(name string, impl Factory) { backends.Register(name, impl) }

func Get(name string) (Factory, bool) { return backends.Get(name) }

func Methods() []string { return backends.Methods() }
