package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/lib/store/valkey"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	if c.Challenge.Difficulty != wall.DefaultDifficulty {
		t.Errorf("wanted difficulty %d, got %d", wall.DefaultDifficulty, c.Challenge.Difficulty)
	}

	if c.Challenge.RequireIssued {
		t.Error("default config should be nonce-agnostic")
	}

	limits := c.RateLimit.Limits()
	if limits.MaxPerHour != 10 || limits.Cooldown != time.Minute || limits.Window != time.Hour {
		t.Errorf("wrong default limits: %+v", limits)
	}

	if c.Store.Backend != "memory" || c.Wall.Backend != "memory" {
		t.Errorf("wrong default backends: store=%q wall=%q", c.Store.Backend, c.Wall.Backend)
	}

	if len(c.Policy) == 0 {
		t.Error("default config should ship at least one policy rule")
	}
}

func TestLoad(t *testing.T) {
	for _, tt := range []struct {
		name string
		doc  string
		err  error
		chk  func(t *testing.T, c *Config)
	}{
		{
			name: "empty document keeps defaults",
			doc:  "",
			chk: func(t *testing.T, c *Config) {
				if c.Challenge.Difficulty != wall.DefaultDifficulty {
					t.Errorf("wanted default difficulty, got %d", c.Challenge.Difficulty)
				}
			},
		},
		{
			name: "partial override",
			doc: `
challenge:
  difficulty: 3
  require_issued: true
rate_limit:
  cooldown_seconds: 5
`,
			chk: func(t *testing.T, c *Config) {
				if c.Challenge.Difficulty != 3 || !c.Challenge.RequireIssued {
					t.Errorf("challenge section not applied: %+v", c.Challenge)
				}
				if c.RateLimit.CooldownSeconds != 5 || c.RateLimit.MaxPerHour != 10 {
					t.Errorf("rate limit section not merged with defaults: %+v", c.RateLimit)
				}
			},
		},
		{
			name: "bbolt wall",
			doc: `
wall:
  backend: bbolt
  parameters:
    path: ` + filepath.Join(t.TempDir(), "wall.db") + `
`,
			chk: func(t *testing.T, c *Config) {
				if !strings.Contains(string(c.Wall.Parameters), "wall.db") {
					t.Errorf("parameters not carried as JSON: %s", c.Wall.Parameters)
				}
			},
		},
		{
			name: "difficulty too high",
			doc:  "challenge:\n  difficulty: 65\n",
			err:  ErrDifficultyTooHigh,
		},
		{
			name: "difficulty too low",
			doc:  "challenge:\n  difficulty: 0\n",
			err:  ErrDifficultyTooLow,
		},
		{
			name: "unknown store",
			doc:  "store:\n  backend: floppy\n",
			err:  ErrUnknownBackend,
		},
		{
			name: "unknown wall backend",
			doc:  "wall:\n  backend: floppy\n",
			err:  ErrUnknownBackend,
		},
		{
			name: "valkey rate limit without url",
			doc:  "rate_limit:\n  backend: valkey\n  parameters: {}\n",
			err:  valkey.ErrNoURL,
		},
		{
			name: "bad trusted proxy",
			doc:  "rate_limit:\n  trusted_proxies: [\"10.0.0.0/33\"]\n",
			err:  ErrInvalidTrustedProxy,
		},
		{
			name: "rule without name",
			doc:  "policy:\n  - expression: 'true'\n",
			err:  ErrRuleMustHaveName,
		},
		{
			name: "rule without expression",
			doc:  "policy:\n  - name: empty\n",
			err:  ErrRuleMustHaveExpression,
		},
		{
			name: "rule with two expression kinds",
			doc:  "policy:\n  - name: both\n    expression: 'true'\n    any: ['false']\n",
			err:  ErrRuleCantHaveBoth,
		},
		{
			name: "duplicate rule names",
			doc:  "policy:\n  - name: a\n    expression: 'true'\n  - name: a\n    expression: 'false'\n",
			err:  ErrDuplicateRuleName,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(strings.NewReader(tt.doc), tt.name)
			if !errors.Is(err, tt.err) {
				t.Fatalf("wanted %v, got: %v", tt.err, err)
			}

			if tt.chk != nil {
				tt.chk(t, c)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "wall.yaml")
	if err := os.WriteFile(fname, []byte("challenge:\n  difficulty: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(fname)
	if err != nil {
		t.Fatal(err)
	}

	if c.Challenge.Difficulty != 2 {
		t.Errorf("wanted difficulty 2, got %d", c.Challenge.Difficulty)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("loading a missing file succeeded")
	}

	if _, err := LoadFile(""); err != nil {
		t.Errorf("empty file name should load the default: %v", err)
	}
}
