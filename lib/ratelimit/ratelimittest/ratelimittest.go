// Package ratelimittest is a conformance suite every rate limit backend must pass.
package ratelimittest

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TecharoHQ/wall/lib/ratelimit"
)

// Common runs the shared scenarios. newLimiter must return an empty limiter
// configured with ratelimit.DefaultLimits.
func Common(t *testing.T, newLimiter func(t *testing.T) ratelimit.Limiter) {
	start := time.Unix(1_700_000_000, 0)

	for _, tt := range []struct {
		name string
		doer func(t *testing.T, l ratelimit.Limiter)
	}{
		{
			name: "first call is allowed",
			doer: func(t *testing.T, l ratelimit.Limiter) {
				d := mustCheck(t, l, t.Name(), start)
				if !d.Allowed {
					t.Fatalf("first call from a new key was denied: %+v", d)
				}

				if d.Remaining != 9 {
					t.Errorf("wanted 9 posts remaining, got %d", d.Remaining)
				}
			},
		},
		{
			name: "cooldown",
			doer: func(t *testing.T, l ratelimit.Limiter) {
				mustCheck(t, l, t.Name(), start)

				d := mustCheck(t, l, t.Name(), start.Add(100*time.Millisecond))
				if d.Allowed {
					t.Fatal("second call within the cooldown was allowed")
				}

				if d.Reason != ratelimit.ReasonCooldown {
					t.Errorf("wanted reason %q, got %q", ratelimit.ReasonCooldown, d.Reason)
				}

				if got := d.RetryAfterSeconds(); got != 60 {
					t.Errorf("wanted retry after 60s, got %ds", got)
				}

				d = mustCheck(t, l, t.Name(), start.Add(30500*time.Millisecond))
				if got := d.RetryAfterSeconds(); got != 30 {
					t.Errorf("wanted retry after 30s, got %ds", got)
				}

				d = mustCheck(t, l, t.Name(), start.Add(60*time.Second))
				if !d.Allowed {
					t.Errorf("call after the cooldown was denied: %+v", d)
				}
			},
		},
		{
			name: "denied calls do not move the cooldown",
			doer: func(t *testing.T, l ratelimit.Limiter) {
				mustCheck(t, l, t.Name(), start)
				mustCheck(t, l, t.Name(), start.Add(59*time.Second))

				if d := mustCheck(t, l, t.Name(), start.Add(61*time.Second)); !d.Allowed {
					t.Errorf("denied call extended the cooldown: %+v", d)
				}
			},
		},
		{
			name: "hourly cap",
			doer: func(t *testing.T, l ratelimit.Limiter) {
				now := start
				for i := range 10 {
					d := mustCheck(t, l, t.Name(), now)
					if !d.Allowed {
						t.Fatalf("call %d was denied: %+v", i+1, d)
					}
					now = now.Add(61 * time.Second)
				}

				d := mustCheck(t, l, t.Name(), now)
				if d.Allowed {
					t.Fatal("11th call within the hour was allowed")
				}

				if d.Reason != ratelimit.ReasonHourly {
					t.Errorf("wanted reason %q, got %q", ratelimit.ReasonHourly, d.Reason)
				}

				// The window resets at start+1h, 49m50s from now: 50 whole minutes.
				if got := d.RetryAfterSeconds(); got != 50*60 {
					t.Errorf("wanted retry after %ds, got %ds", 50*60, got)
				}

				if d.Remaining != 0 {
					t.Errorf("wanted 0 posts remaining, got %d", d.Remaining)
				}
			},
		},
		{
			name: "window reset",
			doer: func(t *testing.T, l ratelimit.Limiter) {
				now := start
				for range 10 {
					mustCheck(t, l, t.Name(), now)
					now = now.Add(61 * time.Second)
				}

				d := mustCheck(t, l, t.Name(), start.Add(time.Hour+time.Second))
				if !d.Allowed {
					t.Fatalf("call after the window reset was denied: %+v", d)
				}

				if d.Remaining != 9 {
					t.Errorf("wanted a fresh window with 9 posts remaining, got %d", d.Remaining)
				}
			},
		},
		{
			name: "keys are independent",
			doer: func(t *testing.T, l ratelimit.Limiter) {
				mustCheck(t, l, t.Name()+"/a", start)

				if d := mustCheck(t, l, t.Name()+"/b", start); !d.Allowed {
					t.Errorf("a different key shared the cooldown: %+v", d)
				}
			},
		},
		{
			name: "concurrent calls admit one",
			doer: func(t *testing.T, l ratelimit.Limiter) {
				var (
					allowed atomic.Int32
					wg      sync.WaitGroup
				)

				for range 16 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						d, err := l.CheckAndConsume(t.Context(), t.Name(), start)
						if err != nil {
							t.Error(err)
							return
						}
						if d.Allowed {
							allowed.Add(1)
						}
					}()
				}
				wg.Wait()

				if got := allowed.Load(); got != 1 {
					t.Errorf("wanted exactly one concurrent call allowed, got %d", got)
				}
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			tt.doer(t, newLimiter(t))
		})
	}
}

func mustCheck(t *testing.T, l ratelimit.Limiter, key string, now time.Time) ratelimit.Decision {
	t.Helper()

	d, err := l.CheckAndConsume(t.Context(), key, now)
	if err != nil {
		t.Fatal(err)
	}

	return d
}
