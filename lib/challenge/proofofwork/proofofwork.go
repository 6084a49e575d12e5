// Package proofofwork implements the hash-prefix puzzle that gates writes.
//
// A solution is valid when the lowercase hex SHA-256 of nonce+solution starts
// with difficulty '0' characters. Finding one takes about 16^difficulty
// digests; checking it takes one.
package proofofwork

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/TecharoHQ/wall/internal"
	chall "github.com/TecharoHQ/wall/lib/challenge"
)

// MaxDifficulty is the length of a hex SHA-256 digest.
const MaxDifficulty = 64

// hashPreview is how many digest characters Check shows the client.
const hashPreview = 16

// Digest is the lowercase hex SHA-256 of nonce immediately followed by solution.
func Digest(nonce, solution string) string {
	return internal.SHA256sum(nonce + solution)
}

// Verify reports whether solution solves the puzzle for nonce at difficulty.
func Verify(nonce, solution string, difficulty int) bool {
	switch {
	case difficulty <= 0:
		return true
	case difficulty > MaxDifficulty:
		return false
	}

	return hasZeroPrefix(Digest(nonce, solution), difficulty)
}

func hasZeroPrefix(digest string, difficulty int) bool {
	for i := range difficulty {
		if digest[i] != '0' {
			return false
		}
	}

	return true
}

// Check is Verify with a diagnostic. The returned *chall.Error carries a
// truncated digest in its public reason so that a client can debug its solver.
func Check(nonce, solution string, difficulty int) error {
	if nonce == "" {
		return chall.NewError("verify", "nonce is required", fmt.Errorf("%w: nonce", chall.ErrMissingField)).
			Translated("nonce_required", nil)
	}

	if solution == "" {
		return chall.NewError("verify", "solution is required", fmt.Errorf("%w: solution", chall.ErrMissingField)).
			Translated("solution_required", nil)
	}

	if difficulty > MaxDifficulty {
		return chall.NewError("verify", "server difficulty is unsatisfiable", fmt.Errorf("%w: difficulty %d exceeds %d", chall.ErrInvalidFormat, difficulty, MaxDifficulty)).
			Translated("internal_error", nil)
	}

	if Verify(nonce, solution, difficulty) {
		return nil
	}

	digest := Digest(nonce, solution)
	preview := digest[:hashPreview] + "..."
	want := strings.Repeat("0", difficulty)

	return chall.NewError(
		"verify",
		fmt.Sprintf("invalid proof of work: sha256(nonce+solution) = %s does not start with %q", preview, want),
		fmt.Errorf("%w: wanted %d leading zeros but got %s", chall.ErrFailed, difficulty, digest),
	).Translated("pow_failed", map[string]any{"Hash": preview, "Want": want})
}

// Solve brute-forces a decimal solution for nonce at difficulty. It gives up
// when ctx is done.
func Solve(ctx context.Context, nonce string, difficulty int) (string, error) {
	if difficulty > MaxDifficulty {
		return "", fmt.Errorf("%w: difficulty %d exceeds %d", chall.ErrInvalidFormat, difficulty, MaxDifficulty)
	}

	for i := uint64(0); ; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}

		solution := strconv.FormatUint(i, 10)
		if Verify(nonce, solution, difficulty) {
			return solution, nil
		}
	}
}
