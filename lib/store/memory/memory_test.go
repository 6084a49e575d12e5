package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/TecharoHQ/wall/lib/store"
	"github.com/TecharoHQ/wall/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	storetest.Common(t, factory{}, nil)
}

func TestSweepWithClock(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	s := NewWithClock(t.Context(), clock)

	if err := s.Set(t.Context(), "a", []byte("a"), time.Minute); err != nil {
		t.Fatal(err)
	}

	if err := s.Set(t.Context(), "b", []byte("b"), time.Hour); err != nil {
		t.Fatal(err)
	}

	n, err := store.Sweep(t.Context(), s, now.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	if n != 1 {
		t.Errorf("wanted 1 value swept, got %d", n)
	}

	if _, err := s.Get(t.Context(), "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("swept value is still readable: %v", err)
	}

	if _, err := s.Get(t.Context(), "b"); err != nil {
		t.Errorf("live value was swept: %v", err)
	}
}
