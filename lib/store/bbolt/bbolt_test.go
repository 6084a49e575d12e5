package bbolt

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/TecharoHQ/wall/lib/store"
	"github.com/TecharoHQ/wall/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	t.Log(path)
	data, err := json.Marshal(Config{
		Path: path,
	})
	if err != nil {
		t.Fatal(err)
	}

	storetest.Common(t, Factory{}, json.RawMessage(data))
}

func TestSweep(t *testing.T) {
	data, err := json.Marshal(Config{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	if err != nil {
		t.Fatal(err)
	}

	s, err := Factory{}.Build(t.Context(), json.RawMessage(data))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Set(t.Context(), "short", []byte("short"), time.Minute); err != nil {
		t.Fatal(err)
	}

	if err := s.Set(t.Context(), "long", []byte("long"), time.Hour); err != nil {
		t.Fatal(err)
	}

	n, err := store.Sweep(t.Context(), s, time.Now().Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	if n != 1 {
		t.Errorf("wanted 1 bucket swept, got %d", n)
	}

	if err := s.Delete(t.Context(), "short"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("swept key can still be deleted: %v", err)
	}

	if _, err := s.Get(t.Context(), "long"); err != nil {
		t.Errorf("live key was swept: %v", err)
	}
}
