package lib

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/wall/internal"
	"github.com/TecharoHQ/wall/lib/challenge"
	"github.com/TecharoHQ/wall/lib/config"
	"github.com/TecharoHQ/wall/lib/message"
	"github.com/TecharoHQ/wall/lib/policy"
	"github.com/TecharoHQ/wall/lib/ratelimit"
	"github.com/TecharoHQ/wall/lib/realtime"
	"github.com/TecharoHQ/wall/lib/store"
)

// Options is the process-scoped state a Server is built from.
type Options struct {
	Issuer        *challenge.Issuer
	Limiter       ratelimit.Limiter
	Limits        ratelimit.Limits
	Messages      *message.Store
	Hub           *realtime.Hub
	Policy        *policy.Engine // optional
	ClientKeys    *internal.ClientKeyer
	RequireIssued bool
	BasePrefix    string
	Now           func() time.Time // defaults to time.Now
}

// LoadConfigOrDefault loads fname, or the embedded default configuration
// when fname is empty. A non-zero difficulty overrides the file.
func LoadConfigOrDefault(fname string, difficulty int) (*config.Config, error) {
	cfg, err := config.LoadFile(fname)
	if err != nil {
		return nil, err
	}

	if difficulty != 0 {
		cfg.Challenge.Difficulty = difficulty
		if err := cfg.Challenge.Valid(); err != nil {
			return nil, fmt.Errorf("-difficulty: %w", err)
		}
	}

	return cfg, nil
}

// BuildOptions connects every backend named in cfg. Backends stay open until
// ctx is cancelled.
func BuildOptions(ctx context.Context, cfg *config.Config) (Options, error) {
	kvFactory, ok := store.Get(cfg.Store.Backend)
	if !ok {
		return Options{}, fmt.Errorf("%w: store backend %q", config.ErrUnknownBackend, cfg.Store.Backend)
	}

	kv, err := kvFactory.Build(ctx, cfg.Store.Parameters)
	if err != nil {
		return Options{}, fmt.Errorf("can't build challenge store %q: %w", cfg.Store.Backend, err)
	}

	limits := cfg.RateLimit.Limits()
	rlFactory, ok := ratelimit.Get(cfg.RateLimit.Backend)
	if !ok {
		return Options{}, fmt.Errorf("%w: rate limit backend %q", config.ErrUnknownBackend, cfg.RateLimit.Backend)
	}

	limiter, err := rlFactory.Build(ctx, limits, cfg.RateLimit.Parameters)
	if err != nil {
		return Options{}, fmt.Errorf("can't build rate limiter %q: %w", cfg.RateLimit.Backend, err)
	}

	msgFactory, ok := message.Get(cfg.Wall.Backend)
	if !ok {
		return Options{}, fmt.Errorf("%w: wall backend %q", config.ErrUnknownBackend, cfg.Wall.Backend)
	}

	backend, err := msgFactory.Build(ctx, cfg.Wall.Parameters)
	if err != nil {
		return Options{}, fmt.Errorf("can't build wall backend %q: %w", cfg.Wall.Backend, err)
	}

	engine, err := policy.New(cfg.Policy)
	if err != nil {
		return Options{}, err
	}

	keys, err := internal.NewClientKeyer(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return Options{}, err
	}

	slog.Debug("backends ready",
		"store", cfg.Store.Backend,
		"rate_limit", cfg.RateLimit.Backend,
		"wall", cfg.Wall.Backend,
		"policy_rules", engine.Len(),
	)

	return Options{
		Issuer: challenge.NewIssuer(challenge.IssuerOptions{
			Store:      kv,
			Difficulty: cfg.Challenge.Difficulty,
		}),
		Limiter:       limiter,
		Limits:        limits,
		Messages:      message.New(message.Options{Backend: backend}),
		Hub:           realtime.NewHub(),
		Policy:        engine,
		ClientKeys:    keys,
		RequireIssued: cfg.Challenge.RequireIssued,
	}, nil
}
