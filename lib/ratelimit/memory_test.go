package ratelimit_test

import (
	"testing"
	"time"

	"github.com/TecharoHQ/wall/lib/ratelimit"
	"github.com/TecharoHQ/wall/lib/ratelimit/ratelimittest"
)

func TestMemory(t *testing.T) {
	ratelimittest.Common(t, func(t *testing.T) ratelimit.Limiter {
		return ratelimit.NewMemory(ratelimit.DefaultLimits())
	})
}

func TestMemorySweep(t *testing.T) {
	l := ratelimit.NewMemory(ratelimit.DefaultLimits())
	start := time.Unix(1_700_000_000, 0)

	for _, key := range []string{"idle", "busy"} {
		if _, err := l.CheckAndConsume(t.Context(), key, start); err != nil {
			t.Fatal(err)
		}
	}

	// busy posts again at +50m, keeping it within the trailing hour.
	if _, err := l.CheckAndConsume(t.Context(), "busy", start.Add(50*time.Minute)); err != nil {
		t.Fatal(err)
	}

	n, err := l.Sweep(t.Context(), start.Add(30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("nothing should be swept while windows are open, swept %d", n)
	}

	n, err = l.Sweep(t.Context(), start.Add(time.Hour+time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("wanted only the idle key swept, swept %d", n)
	}

	if l.Len() != 1 {
		t.Errorf("wanted 1 record left, got %d", l.Len())
	}
}

func TestRetryRounding(t *testing.T) {
	for _, tt := range []struct {
		name string
		fn   func(time.Duration) time.Duration
		in   time.Duration
		want time.Duration
	}{
		{"cooldown exact", ratelimit.CooldownRetry, 60 * time.Second, 60 * time.Second},
		{"cooldown fraction", ratelimit.CooldownRetry, 59*time.Second + time.Millisecond, 60 * time.Second},
		{"cooldown zero", ratelimit.CooldownRetry, 0, 0},
		{"hourly exact", ratelimit.HourlyRetry, 5 * time.Minute, 5 * time.Minute},
		{"hourly fraction", ratelimit.HourlyRetry, 4*time.Minute + time.Second, 5 * time.Minute},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLimitsValid(t *testing.T) {
	if err := ratelimit.DefaultLimits().Valid(); err != nil {
		t.Errorf("default limits are invalid: %v", err)
	}

	if err := (ratelimit.Limits{}).Valid(); err == nil {
		t.Error("zero limits should be invalid")
	}
}

func TestRegistry(t *testing.T) {
	f, ok := ratelimit.Get("memory")
	if !ok {
		t.Fatalf("memory limiter is not registered, have: %v", ratelimit.Methods())
	}

	l, err := f.Build(t.Context(), ratelimit.DefaultLimits(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := l.(*ratelimit.Memory); !ok {
		t.Errorf("wanted *ratelimit.Memory, got %T", l)
	}
}
