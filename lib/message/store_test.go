package message_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/lib/message"
	"github.com/TecharoHQ/wall/lib/message/memory"
	"github.com/TecharoHQ/wall/lib/message/messagetest"
	"github.com/google/uuid"
)

type countingBackend struct {
	message.Backend
	inserts int
	fail    error
}

func (c *countingBackend) Insert(ctx context.Context, msg message.Message) error {
	c.inserts++
	if c.fail != nil {
		return c.fail
	}
	return c.Backend.Insert(ctx, msg)
}

func (c *countingBackend) List(ctx context.Context, limit int, order message.Order) ([]message.Message, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Backend.List(ctx, limit, order)
}

func newStore(t *testing.T) (*message.Store, *countingBackend) {
	t.Helper()

	b := &countingBackend{Backend: memory.New()}
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	return message.New(message.Options{
		Backend: b,
		Now:     func() time.Time { return now },
	}), b
}

func TestAppend(t *testing.T) {
	s, b := newStore(t)

	msg, err := s.Append(t.Context(), "  hello wall \n")
	if err != nil {
		t.Fatal(err)
	}

	if msg.Text != "hello wall" {
		t.Errorf("text was not trimmed: %q", msg.Text)
	}

	if _, err := uuid.Parse(msg.ID); err != nil {
		t.Errorf("id %q is not a uuid: %v", msg.ID, err)
	}

	if b.inserts != 1 {
		t.Errorf("wanted 1 backend insert, got %d", b.inserts)
	}

	got, err := s.Get(t.Context(), msg.ID)
	if err != nil {
		t.Fatal(err)
	}

	if got.Text != msg.Text {
		t.Errorf("Get returned %q, wanted %q", got.Text, msg.Text)
	}
}

func TestAppendPlacement(t *testing.T) {
	s, _ := newStore(t)
	colors := map[string]struct{}{}

	for range 500 {
		msg, err := s.Append(t.Context(), "x")
		if err != nil {
			t.Fatal(err)
		}

		for _, v := range []float64{msg.Position.X, msg.Position.Y} {
			if v < wall.CanvasMin || v > wall.CanvasMax {
				t.Fatalf("coordinate %f is outside [%v, %v]", v, wall.CanvasMin, wall.CanvasMax)
			}
		}

		if !slices.Contains(wall.Palette[:], msg.Color) {
			t.Fatalf("color %q is not in the palette", msg.Color)
		}

		colors[msg.Color] = struct{}{}
	}

	if len(colors) < 5 {
		t.Errorf("500 messages only used %d colors", len(colors))
	}
}

func TestAppendValidation(t *testing.T) {
	for _, tt := range []struct {
		name string
		raw  string
		err  error
	}{
		{name: "empty", raw: "", err: message.ErrEmptyMessage},
		{name: "whitespace only", raw: " \t\n ", err: message.ErrEmptyMessage},
		{name: "281 code points", raw: strings.Repeat("é", 281), err: message.ErrMessageTooLong},
		{name: "280 code points", raw: strings.Repeat("é", 280)},
		{name: "280 after trim", raw: "   " + strings.Repeat("a", 280) + "   "},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s, b := newStore(t)

			_, err := s.Append(t.Context(), tt.raw)
			if !errors.Is(err, tt.err) {
				t.Fatalf("wanted %v, got: %v", tt.err, err)
			}

			wantInserts := 1
			if tt.err != nil {
				wantInserts = 0
			}

			if b.inserts != wantInserts {
				t.Errorf("wanted %d backend inserts, got %d", wantInserts, b.inserts)
			}
		})
	}
}

func TestAppendStorageFailure(t *testing.T) {
	s, b := newStore(t)
	b.fail = errors.New("disk on fire")

	if _, err := s.Append(t.Context(), "hi"); !errors.Is(err, message.ErrStorage) {
		t.Errorf("wanted ErrStorage, got: %v", err)
	}

	if b.inserts != 1 {
		t.Errorf("storage failures must not be retried, got %d inserts", b.inserts)
	}

	if _, err := s.List(t.Context(), 10, message.OrderNewestFirst); !errors.Is(err, message.ErrStorage) {
		t.Errorf("wanted ErrStorage from List, got: %v", err)
	}
}

func TestListClamp(t *testing.T) {
	b := memory.New()
	for _, msg := range messagetest.Fixture(120) {
		if err := b.Insert(t.Context(), msg); err != nil {
			t.Fatal(err)
		}
	}

	s := message.New(message.Options{Backend: b})

	for _, tt := range []struct {
		limit int
		want  int
	}{
		{limit: -5, want: 1},
		{limit: 0, want: 1},
		{limit: 50, want: 50},
		{limit: 100, want: 100},
		{limit: 1000, want: 100},
	} {
		msgs, err := s.List(t.Context(), tt.limit, "")
		if err != nil {
			t.Fatal(err)
		}

		if len(msgs) != tt.want {
			t.Errorf("limit %d: wanted %d messages, got %d", tt.limit, tt.want, len(msgs))
		}
	}
}

func TestGetNotFound(t *testing.T) {
	s, _ := newStore(t)

	for _, id := range []string{"not-a-uuid", uuid.NewString()} {
		if _, err := s.Get(t.Context(), id); !errors.Is(err, message.ErrNotFound) {
			t.Errorf("Get(%q): wanted ErrNotFound, got: %v", id, err)
		}
	}
}

func TestRenderText(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := message.RenderText(nil)
		if got != "The wall is empty. Be the first to write on it!\n" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("lines", func(t *testing.T) {
		msgs := []message.Message{
			{Text: "hi", Position: message.Position{X: 200.4, Y: 2799.5}},
			{Text: "there", Position: message.Position{X: 1000, Y: 1500.49}},
		}

		want := "[1] \"hi\" (at 200, 2800)\n[2] \"there\" (at 1000, 1500)\n"
		if got := message.RenderText(msgs); got != want {
			t.Errorf("wanted:\n%s\ngot:\n%s", want, got)
		}
	})

	t.Run("line breaks are escaped", func(t *testing.T) {
		msgs := []message.Message{
			{Text: "line one\nline two\n\nline four", Position: message.Position{X: 300, Y: 300}},
			{Text: "crlf\r\nand\rcr", Position: message.Position{X: 400, Y: 400}},
			{Text: "unicode\u2028separators\u2029too\u0085", Position: message.Position{X: 500, Y: 500}},
		}

		got := message.RenderText(msgs)
		lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
		if len(lines) != len(msgs) {
			t.Fatalf("wanted %d lines, got %d: %q", len(msgs), len(lines), got)
		}

		for i, want := range []string{
			`[1] "line one\nline two\n\nline four" (at 300, 300)`,
			`[2] "crlf\nand\rcr" (at 400, 400)`,
			`[3] "unicode\u2028separators\u2029too\u0085" (at 500, 500)`,
		} {
			if lines[i] != want {
				t.Errorf("line %d: wanted %q, got %q", i+1, want, lines[i])
			}
		}
	})
}

func TestParseOrder(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want message.Order
		err  error
	}{
		{in: "", want: message.OrderNewestFirst},
		{in: "desc", want: message.OrderNewestFirst},
		{in: "ASC", want: message.OrderOldestFirst},
		{in: "sideways", err: message.ErrBadOrder},
	} {
		got, err := message.ParseOrder(tt.in)
		if !errors.Is(err, tt.err) {
			t.Errorf("ParseOrder(%q): wanted error %v, got %v", tt.in, tt.err, err)
		}
		if got != tt.want {
			t.Errorf("ParseOrder(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
