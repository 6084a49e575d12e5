// Package messagetest is a conformance suite every message backend must pass.
package messagetest

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/lib/message"
	"github.com/google/uuid"
)

// Fixture returns n messages created one second apart, oldest first.
func Fixture(n int) []message.Message {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	result := make([]message.Message, 0, n)

	for i := range n {
		result = append(result, message.Message{
			ID:   uuid.NewString(),
			Text: "message " + string(rune('a'+i)),
			Position: message.Position{
				X: wall.CanvasMin + float64(i),
				Y: wall.CanvasMax - float64(i),
			},
			Color:     wall.Palette[i%len(wall.Palette)],
			CreatedAt: start.Add(time.Duration(i) * time.Second),
		})
	}

	return result
}

func Common(t *testing.T, f message.Factory, config json.RawMessage) {
	if err := f.Valid(config); err != nil {
		t.Fatal(err)
	}

	b, err := f.Build(t.Context(), config)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("empty", func(t *testing.T) {
		msgs, err := b.List(t.Context(), 10, message.OrderNewestFirst)
		if err != nil {
			t.Fatal(err)
		}

		if len(msgs) != 0 {
			t.Errorf("wanted an empty wall, got %d messages", len(msgs))
		}
	})

	fixture := Fixture(5)
	for _, msg := range fixture {
		if err := b.Insert(t.Context(), msg); err != nil {
			t.Fatal(err)
		}
	}

	for _, tt := range []struct {
		name  string
		limit int
		order message.Order
		want  []int
	}{
		{name: "newest first", limit: 3, order: message.OrderNewestFirst, want: []int{4, 3, 2}},
		{name: "oldest first", limit: 3, order: message.OrderOldestFirst, want: []int{0, 1, 2}},
		{name: "limit over count", limit: 100, order: message.OrderNewestFirst, want: []int{4, 3, 2, 1, 0}},
		{name: "limit one", limit: 1, order: message.OrderOldestFirst, want: []int{0}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := b.List(t.Context(), tt.limit, tt.order)
			if err != nil {
				t.Fatal(err)
			}

			if len(msgs) != len(tt.want) {
				t.Fatalf("wanted %d messages, got %d", len(tt.want), len(msgs))
			}

			for i, idx := range tt.want {
				if msgs[i].ID != fixture[idx].ID {
					t.Errorf("position %d: wanted %q, got %q", i, fixture[idx].Text, msgs[i].Text)
				}
			}
		})
	}

	t.Run("get", func(t *testing.T) {
		want := fixture[2]

		got, err := b.Get(t.Context(), want.ID)
		if err != nil {
			t.Fatal(err)
		}

		if got.ID != want.ID || got.Text != want.Text || got.Color != want.Color {
			t.Errorf("wanted %+v, got %+v", want, got)
		}

		if got.Position != want.Position {
			t.Errorf("wanted position %+v, got %+v", want.Position, got.Position)
		}

		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("wanted created at %s, got %s", want.CreatedAt, got.CreatedAt)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		if _, err := b.Get(t.Context(), uuid.NewString()); !errors.Is(err, message.ErrNotFound) {
			t.Errorf("wanted ErrNotFound, got: %v", err)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		if err := b.Insert(t.Context(), fixture[0]); err == nil {
			t.Error("inserting a duplicate id succeeded")
		}
	})
}
