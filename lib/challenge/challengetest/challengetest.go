// Package challengetest builds challenges for tests without going through a store.
package challengetest

import (
	"testing"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/internal"
	"github.com/TecharoHQ/wall/lib/challenge"
)

// New returns a live challenge at difficulty whose nonce is derived from the
// test name.
func New(t *testing.T, difficulty int) *challenge.Challenge {
	t.Helper()

	now := time.Now()

	return &challenge.Challenge{
		Nonce:      internal.SHA256sum(t.Name() + now.String())[:32],
		Difficulty: difficulty,
		IssuedAt:   now,
		ExpiresAt:  now.Add(wall.ChallengeTTL),
	}
}
