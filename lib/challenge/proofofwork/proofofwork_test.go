package proofofwork

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/TecharoHQ/wall/lib/challenge"
	"github.com/TecharoHQ/wall/lib/challenge/challengetest"
)

func TestVerifyKnownDigest(t *testing.T) {
	// sha256("hunter0") = 2652bdba...
	for _, tt := range []struct {
		name       string
		nonce      string
		solution   string
		difficulty int
		want       bool
	}{
		{name: "zero difficulty", nonce: "hunter", solution: "0", difficulty: 0, want: true},
		{name: "negative difficulty", nonce: "hunter", solution: "0", difficulty: -3, want: true},
		{name: "first char is not zero", nonce: "hunter", solution: "0", difficulty: 1, want: false},
		{name: "over 64", nonce: "hunter", solution: "0", difficulty: 65, want: false},
		{name: "order matters", nonce: "0", solution: "hunter", difficulty: 0, want: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.nonce, tt.solution, tt.difficulty); got != tt.want {
				t.Errorf("Verify(%q, %q, %d) = %v, want %v", tt.nonce, tt.solution, tt.difficulty, got, tt.want)
			}
		})
	}

	if got := Digest("hunter", "0"); got != "2652bdba8fb4d2ab39ef28d8534d7694c557a4ae146c1e9237bd8d950280500e" {
		t.Errorf("Digest concatenates without a separator, got %s", got)
	}
}

func TestVerifyMatchesDigestPrefix(t *testing.T) {
	const nonce = "abc123"

	for i := range 5000 {
		solution := strconv.Itoa(i)
		digest := Digest(nonce, solution)

		for d := 0; d <= 4; d++ {
			want := strings.HasPrefix(digest, strings.Repeat("0", d))
			if got := Verify(nonce, solution, d); got != want {
				t.Fatalf("Verify(%q, %q, %d) = %v, digest %s", nonce, solution, d, got, digest)
			}
		}
	}
}

func TestVerifyMonotonic(t *testing.T) {
	const nonce = "monotonic"

	for i := range 5000 {
		solution := strconv.Itoa(i)
		for d := 1; d <= 6; d++ {
			if Verify(nonce, solution, d) && !Verify(nonce, solution, d-1) {
				t.Fatalf("solution %q passes difficulty %d but not %d", solution, d, d-1)
			}
		}
	}
}

func TestCheck(t *testing.T) {
	const nonce = "hunter"

	good, err := Solve(t.Context(), nonce, 2)
	if err != nil {
		t.Fatal(err)
	}

	bad := "0" // 2652bdba...

	for _, tt := range []struct {
		name     string
		nonce    string
		solution string
		err      error
	}{
		{name: "allgood", nonce: nonce, solution: good},
		{name: "missing-nonce", nonce: "", solution: good, err: challenge.ErrMissingField},
		{name: "missing-solution", nonce: nonce, solution: "", err: challenge.ErrMissingField},
		{name: "invalid-solution", nonce: nonce, solution: bad, err: challenge.ErrFailed},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.nonce, tt.solution, 2)
			if !errors.Is(err, tt.err) {
				t.Errorf("got wrong error from Check, got %v but wanted %v", err, tt.err)
			}
		})
	}

	t.Run("public reason shows a truncated hash", func(t *testing.T) {
		err := Check(nonce, bad, 2)

		var cErr *challenge.Error
		if !errors.As(err, &cErr) {
			t.Fatalf("wanted *challenge.Error, got %T", err)
		}

		if !strings.Contains(cErr.PublicReason, "2652bdba8fb4d2ab...") {
			t.Errorf("public reason does not show the hash prefix: %q", cErr.PublicReason)
		}

		if strings.Contains(cErr.PublicReason, "2652bdba8fb4d2ab39ef28d8534d7694c557a4ae146c1e9237bd8d950280500e") {
			t.Errorf("public reason shows the whole hash: %q", cErr.PublicReason)
		}

		if cErr.MessageID != "pow_failed" {
			t.Errorf("wanted message id pow_failed, got %q", cErr.MessageID)
		}
		if cErr.Data["Hash"] != "2652bdba8fb4d2ab..." || cErr.Data["Want"] != "00" {
			t.Errorf("wrong template data: %v", cErr.Data)
		}
	})
}

func TestSolve(t *testing.T) {
	chall := challengetest.New(t, 3)

	solution, err := Solve(t.Context(), chall.Nonce, chall.Difficulty)
	if err != nil {
		t.Fatal(err)
	}

	if !Verify(chall.Nonce, solution, chall.Difficulty) {
		t.Errorf("Solve returned %q which does not verify", solution)
	}
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := Solve(ctx, "nonce", 64); !errors.Is(err, context.Canceled) {
		t.Errorf("wanted context.Canceled, got: %v", err)
	}

	if _, err := Solve(t.Context(), "nonce", 65); !errors.Is(err, challenge.ErrInvalidFormat) {
		t.Errorf("wanted ErrInvalidFormat for an unsatisfiable difficulty, got: %v", err)
	}
}

func BenchmarkVerify(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		Verify("abc123", strconv.Itoa(i), 5)
	}
}
