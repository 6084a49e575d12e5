package lib

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildOptionsDefault(t *testing.T) {
	cfg, err := LoadConfigOrDefault("", 0)
	if err != nil {
		t.Fatal(err)
	}

	opts, err := BuildOptions(t.Context(), cfg)
	if err != nil {
		t.Fatalf("can't build options from the default config: %v", err)
	}

	if opts.Issuer.Difficulty() != cfg.Challenge.Difficulty {
		t.Errorf("wanted difficulty %d, got %d", cfg.Challenge.Difficulty, opts.Issuer.Difficulty())
	}

	if opts.Policy == nil || opts.Policy.Len() == 0 {
		t.Error("default policy rules were not compiled")
	}

	s, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if rr := do(t, s, http.MethodGet, "/challenge", "", nil); rr.Code != http.StatusOK {
		t.Errorf("wanted 200, got %d", rr.Code)
	}
}

func TestLoadConfigOrDefault(t *testing.T) {
	t.Run("difficulty override", func(t *testing.T) {
		cfg, err := LoadConfigOrDefault("", 3)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Challenge.Difficulty != 3 {
			t.Errorf("wanted difficulty 3, got %d", cfg.Challenge.Difficulty)
		}
	})

	t.Run("difficulty out of range", func(t *testing.T) {
		if _, err := LoadConfigOrDefault("", 65); err == nil {
			t.Error("wanted an error for difficulty 65")
		}
	})

	t.Run("bbolt backends", func(t *testing.T) {
		dir := t.TempDir()
		fname := filepath.Join(dir, "wall.yaml")
		doc := "store:\n  backend: bbolt\n  parameters:\n    path: " + filepath.Join(dir, "challenges.db") + "\n" +
			"wall:\n  backend: bbolt\n  parameters:\n    path: " + filepath.Join(dir, "wall.db") + "\n"
		if err := os.WriteFile(fname, []byte(doc), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfigOrDefault(fname, 0)
		if err != nil {
			t.Fatal(err)
		}

		if _, err := BuildOptions(t.Context(), cfg); err != nil {
			t.Fatalf("can't build bbolt-backed options: %v", err)
		}
	})
}
