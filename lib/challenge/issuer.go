package challenge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/lib/store"
)

// nonceBytes is 128 bits of randomness.
const nonceBytes = 16

// Issuer hands out challenges and tracks the live ones in a store.Interface.
type Issuer struct {
	underlying store.Interface
	db         store.JSON[Challenge]
	difficulty int
	ttl        time.Duration
	now        func() time.Time
}

type IssuerOptions struct {
	Store      store.Interface
	Difficulty int
	TTL        time.Duration    // defaults to wall.ChallengeTTL
	Now        func() time.Time // defaults to time.Now
}

func NewIssuer(opts IssuerOptions) *Issuer {
	if opts.TTL <= 0 {
		opts.TTL = wall.ChallengeTTL
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Issuer{
		underlying: opts.Store,
		db: store.JSON[Challenge]{
			Underlying: opts.Store,
			Prefix:     "challenge:",
		},
		difficulty: opts.Difficulty,
		ttl:        opts.TTL,
		now:        opts.Now,
	}
}

// Difficulty is the difficulty every issued challenge carries.
func (i *Issuer) Difficulty() int {
	return i.difficulty
}

// Issue creates a fresh challenge and records it until it expires.
func (i *Issuer) Issue(ctx context.Context) (*Challenge, error) {
	nonce, err := i.freshNonce(ctx)
	if err != nil {
		return nil, err
	}

	now := i.now()
	chall := &Challenge{
		Nonce:      nonce,
		Difficulty: i.difficulty,
		IssuedAt:   now,
		ExpiresAt:  now.Add(i.ttl),
	}

	if err := i.db.Set(ctx, nonce, *chall, i.ttl); err != nil {
		return nil, fmt.Errorf("challenge: can't store challenge: %w", err)
	}

	challengesIssued.Inc()

	return chall, nil
}

// freshNonce draws nonces until one is not already live. A collision among
// 128-bit nonces is not expected in practice.
func (i *Issuer) freshNonce(ctx context.Context) (string, error) {
	buf := make([]byte, nonceBytes)

	for range 3 {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("challenge: can't read random bytes: %w", err)
		}

		nonce := hex.EncodeToString(buf)

		_, err := i.db.Get(ctx, nonce)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nonce, nil
		case err != nil:
			return "", fmt.Errorf("challenge: can't check nonce uniqueness: %w", err)
		}
	}

	return "", errors.New("challenge: could not draw a unique nonce")
}

// Consume marks a live challenge as used. A nonce can be consumed at most
// once; later attempts fail with ErrUnknownNonce.
func (i *Issuer) Consume(ctx context.Context, nonce string) error {
	chall, err := i.db.Get(ctx, nonce)
	if errors.Is(err, store.ErrNotFound) {
		challengesConsumed.WithLabelValues("unknown").Inc()
		return fmt.Errorf("%w: %q", ErrUnknownNonce, nonce)
	}
	if err != nil {
		return fmt.Errorf("challenge: can't look up nonce: %w", err)
	}

	if chall.Expired(i.now()) {
		challengesConsumed.WithLabelValues("expired").Inc()
		return fmt.Errorf("%w: %q expired at %s", ErrExpired, nonce, chall.ExpiresAt.Format(time.RFC3339))
	}

	// Whoever deletes the record owns the nonce.
	if err := i.db.Delete(ctx, nonce); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			challengesConsumed.WithLabelValues("raced").Inc()
			return fmt.Errorf("%w: %q", ErrUnknownNonce, nonce)
		}

		return fmt.Errorf("challenge: can't consume nonce: %w", err)
	}

	challengesConsumed.WithLabelValues("ok").Inc()

	return nil
}

// SweepExpired removes every challenge that expired before now.
func (i *Issuer) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := store.Sweep(ctx, i.underlying, now)
	if err != nil {
		return n, fmt.Errorf("challenge: can't sweep expired challenges: %w", err)
	}

	challengesSwept.Add(float64(n))

	return n, nil
}
