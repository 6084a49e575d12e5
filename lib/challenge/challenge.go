package challenge

import (
	"fmt"
	"time"
)

// Challenge is the metadata about a single challenge issuance.
type Challenge struct {
	Nonce      string    `json:"nonce"`      // 128 random bits, hex encoded
	Difficulty int       `json:"difficulty"` // Leading zero hex characters the digest needs
	IssuedAt   time.Time `json:"issued_at"`  // When the challenge was issued
	ExpiresAt  time.Time `json:"expires_at"` // When the challenge stops being accepted
}

// ExpiresIn is how long the challenge stays live, measured from issuance.
func (c *Challenge) ExpiresIn() time.Duration {
	return c.ExpiresAt.Sub(c.IssuedAt)
}

// Expired reports whether the challenge is no longer live at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Hint explains to a human or an agent how to solve the challenge.
func (c *Challenge) Hint() string {
	return fmt.Sprintf(
		"Find a string solution such that the lowercase hex SHA-256 of %q+solution starts with %d zeros, then POST /wall with {\"message\": \"...\", \"nonce\": %q, \"solution\": \"...\"}.",
		c.Nonce, c.Difficulty, c.Nonce,
	)
}
