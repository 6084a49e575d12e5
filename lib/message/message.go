// Package message owns the wall's messages: identity, placement and the
// read path. Durability is delegated to a Backend.
package message

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TecharoHQ/wall"
)

var (
	ErrEmptyMessage   = errors.New("message: message is empty")
	ErrMessageTooLong = errors.New("message: message is too long")
	ErrStorage        = errors.New("message: storage failure")
	ErrNotFound       = errors.New("message: not found")
	ErrBadOrder       = errors.New("message: order must be asc or desc")
)

// Position is where a message is drawn on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Message is one immutable entry on the wall.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Position  Position  `json:"position"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is the direction List walks the wall in.
type Order string

const (
	OrderNewestFirst Order = "desc"
	OrderOldestFirst Order = "asc"
)

// ParseOrder maps a query value to an Order. The empty string is newest
// first.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(s)) {
	case "", OrderNewestFirst:
		return OrderNewestFirst, nil
	case OrderOldestFirst:
		return OrderOldestFirst, nil
	default:
		return "", fmt.Errorf("%w, got %q", ErrBadOrder, s)
	}
}

// Normalize trims surrounding whitespace and enforces the length limits.
// Length is counted in Unicode code points.
func Normalize(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	if text == "" {
		return "", ErrEmptyMessage
	}

	if n := utf8.RuneCountInString(text); n > wall.MaxMessageLength {
		return "", fmt.Errorf("%w: %d characters, the limit is %d", ErrMessageTooLong, n, wall.MaxMessageLength)
	}

	return text, nil
}

// ClampLimit forces a read limit into [1, wall.MaxListLimit].
func ClampLimit(limit int) int {
	return max(1, min(limit, wall.MaxListLimit))
}
