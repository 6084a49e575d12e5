// Package config loads the wall's YAML configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/data"
	"github.com/TecharoHQ/wall/lib/message"
	_ "github.com/TecharoHQ/wall/lib/message/all"
	"github.com/TecharoHQ/wall/lib/ratelimit"
	_ "github.com/TecharoHQ/wall/lib/ratelimit/valkey"
	"github.com/TecharoHQ/wall/lib/store"
	_ "github.com/TecharoHQ/wall/lib/store/all"
	"k8s.io/apimachinery/pkg/util/yaml"
)

var (
	ErrDifficultyTooLow       = errors.New("config.Challenge: difficulty is too low (must be >= 1)")
	ErrDifficultyTooHigh      = errors.New("config.Challenge: difficulty is too high (must be <= 64)")
	ErrNoBackend              = errors.New("config: no backend defined")
	ErrUnknownBackend         = errors.New("config: unknown backend")
	ErrMaxPerHourTooLow       = errors.New("config.RateLimit: max_per_hour must be >= 1")
	ErrCooldownNegative       = errors.New("config.RateLimit: cooldown_seconds must not be negative")
	ErrInvalidTrustedProxy    = errors.New("config.RateLimit: invalid trusted proxy CIDR")
	ErrRuleMustHaveName       = errors.New("config.Rule: must set name")
	ErrRuleMustHaveExpression = errors.New("config.Rule: must set one of expression, all or any")
	ErrRuleCantHaveBoth       = errors.New("config.Rule: can't set more than one of expression, all or any")
	ErrDuplicateRuleName      = errors.New("config: duplicate policy rule name")
)

// Config is the whole configuration document.
type Config struct {
	Challenge Challenge `json:"challenge"`
	RateLimit RateLimit `json:"rate_limit"`
	Store     Store     `json:"store"`
	Wall      Wall      `json:"wall"`
	Policy    []Rule    `json:"policy,omitempty"`
}

// Challenge configures proof-of-work challenges.
type Challenge struct {
	Difficulty    int  `json:"difficulty"`
	RequireIssued bool `json:"require_issued"`
}

func (c Challenge) Valid() error {
	var errs []error

	if c.Difficulty < 1 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrDifficultyTooLow, c.Difficulty))
	}

	if c.Difficulty > 64 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrDifficultyTooHigh, c.Difficulty))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// RateLimit configures per-client posting limits.
type RateLimit struct {
	Backend         string          `json:"backend"`
	Parameters      json.RawMessage `json:"parameters,omitempty"`
	MaxPerHour      int             `json:"max_per_hour"`
	CooldownSeconds int             `json:"cooldown_seconds"`
	TrustedProxies  []string        `json:"trusted_proxies,omitempty"`
}

// Limits converts the document form to ratelimit.Limits.
func (r RateLimit) Limits() ratelimit.Limits {
	return ratelimit.Limits{
		MaxPerHour: r.MaxPerHour,
		Cooldown:   time.Duration(r.CooldownSeconds) * time.Second,
		Window:     wall.RateLimitWindow,
	}
}

func (r RateLimit) Valid() error {
	var errs []error

	if r.Backend == "" {
		errs = append(errs, fmt.Errorf("rate_limit: %w", ErrNoBackend))
	} else if fac, ok := ratelimit.Get(r.Backend); !ok {
		errs = append(errs, fmt.Errorf("rate_limit: %w: %q, have %v", ErrUnknownBackend, r.Backend, ratelimit.Methods()))
	} else if err := fac.Valid(r.Parameters); err != nil {
		errs = append(errs, err)
	}

	if r.MaxPerHour < 1 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrMaxPerHourTooLow, r.MaxPerHour))
	}

	if r.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrCooldownNegative, r.CooldownSeconds))
	}

	for _, cidr := range r.TrustedProxies {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %w", ErrInvalidTrustedProxy, cidr, err))
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Store selects the key/value backend for outstanding challenges.
type Store struct {
	Backend    string          `json:"backend"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (s Store) Valid() error {
	if s.Backend == "" {
		return fmt.Errorf("store: %w", ErrNoBackend)
	}

	fac, ok := store.Get(s.Backend)
	if !ok {
		return fmt.Errorf("store: %w: %q, have %v", ErrUnknownBackend, s.Backend, store.Methods())
	}

	return fac.Valid(s.Parameters)
}

// Wall selects the durable message backend.
type Wall struct {
	Backend    string          `json:"backend"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (w Wall) Valid() error {
	if w.Backend == "" {
		return fmt.Errorf("wall: %w", ErrNoBackend)
	}

	fac, ok := message.Get(w.Backend)
	if !ok {
		return fmt.Errorf("wall: %w: %q, have %v", ErrUnknownBackend, w.Backend, message.Methods())
	}

	return fac.Valid(w.Parameters)
}

// Rule is a content policy rule. A message matching it is rejected.
type Rule struct {
	Name       string   `json:"name"`
	Expression string   `json:"expression,omitempty"`
	All        []string `json:"all,omitempty"`
	Any        []string `json:"any,omitempty"`

	// Message is shown to the client when the rule matches.
	Message string `json:"message,omitempty"`
}

func (r Rule) Valid() error {
	var errs []error

	if r.Name == "" {
		errs = append(errs, ErrRuleMustHaveName)
	}

	set := 0
	for _, cond := range []bool{r.Expression != "", len(r.All) != 0, len(r.Any) != 0} {
		if cond {
			set++
		}
	}

	switch set {
	case 0:
		errs = append(errs, ErrRuleMustHaveExpression)
	case 1:
	default:
		errs = append(errs, ErrRuleCantHaveBoth)
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: policy rule %q is not valid:\n%w", r.Name, errors.Join(errs...))
	}

	return nil
}

func (c *Config) Valid() error {
	var errs []error

	for _, v := range []interface{ Valid() error }{c.Challenge, c.RateLimit, c.Store, c.Wall} {
		if err := v.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	seen := map[string]struct{}{}
	for i, r := range c.Policy {
		if err := r.Valid(); err != nil {
			errs = append(errs, fmt.Errorf("policy %d: %w", i, err))
		}

		if _, ok := seen[r.Name]; ok && r.Name != "" {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateRuleName, r.Name))
		}
		seen[r.Name] = struct{}{}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

func defaults() *Config {
	return &Config{
		Challenge: Challenge{
			Difficulty: wall.DefaultDifficulty,
		},
		RateLimit: RateLimit{
			Backend:         "memory",
			MaxPerHour:      wall.MaxPostsPerHour,
			CooldownSeconds: int(wall.PostCooldown / time.Second),
		},
		Store: Store{Backend: "memory"},
		Wall:  Wall{Backend: "memory"},
	}
}

// Load decodes a YAML document on top of the built-in defaults and validates
// the result.
func Load(fin io.Reader, fname string) (*Config, error) {
	c := defaults()

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't parse config YAML %s: %w", fname, err)
	}

	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("config %s: %w", fname, err)
	}

	return c, nil
}

// LoadFile loads fname, or the embedded default when fname is empty.
func LoadFile(fname string) (*Config, error) {
	if fname == "" {
		return Default()
	}

	fin, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("can't open config %s: %w", fname, err)
	}
	defer fin.Close()

	return Load(fin, fname)
}

// Default loads the configuration compiled into the binary.
func Default() (*Config, error) {
	fin, err := data.Config.Open(data.DefaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("[unexpected] can't open embedded config: %w", err)
	}
	defer fin.Close()

	return Load(fin, "(data)/"+data.DefaultConfigName)
}
