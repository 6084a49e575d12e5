package message

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EmptyWall is rendered instead of an empty body.
const EmptyWall = "The wall is empty. Be the first to write on it!"

var (
	messagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wall_messages_appended_total",
		Help: "The total number of messages written to the wall",
	})

	storageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wall_message_storage_failures_total",
		Help: "The total number of failed backend calls, by operation",
	}, []string{"op"})
)

// Store assigns identity and placement to new messages and reads them back.
type Store struct {
	backend Backend
	now     func() time.Time
}

type Options struct {
	Backend Backend
	Now     func() time.Time // defaults to time.Now
}

func New(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		backend: opts.Backend,
		now:     opts.Now,
	}
}

// Append validates raw, places it on the canvas and persists it. Validation
// failures never reach the backend. Backend failures wrap ErrStorage and are
// not retried.
func (s *Store) Append(ctx context.Context, raw string) (*Message, error) {
	text, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("message: can't generate id: %w", err)
	}

	msg := Message{
		ID:   id.String(),
		Text: text,
		Position: Position{
			X: randomCoordinate(),
			Y: randomCoordinate(),
		},
		Color:     wall.Palette[rand.IntN(len(wall.Palette))],
		CreatedAt: s.now().UTC(),
	}

	if err := s.backend.Insert(ctx, msg); err != nil {
		storageFailures.WithLabelValues("insert").Inc()
		return nil, fmt.Errorf("%w: insert: %w", ErrStorage, err)
	}

	messagesAppended.Inc()

	return &msg, nil
}

func randomCoordinate() float64 {
	return wall.CanvasMin + rand.Float64()*(wall.CanvasMax-wall.CanvasMin)
}

// List returns up to limit messages. The limit is clamped to
// [1, wall.MaxListLimit].
func (s *Store) List(ctx context.Context, limit int, order Order) ([]Message, error) {
	if order == "" {
		order = OrderNewestFirst
	}

	msgs, err := s.backend.List(ctx, ClampLimit(limit), order)
	if err != nil {
		storageFailures.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("%w: list: %w", ErrStorage, err)
	}

	return msgs, nil
}

// Get returns one message by id.
func (s *Store) Get(ctx context.Context, id string) (*Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q is not a message id", ErrNotFound, id)
	}

	msg, err := s.backend.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, err
	case err != nil:
		storageFailures.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: get: %w", ErrStorage, err)
	}

	return &msg, nil
}

// lineBreaks escapes everything a terminal or a line-oriented reader would
// treat as the end of a line.
var lineBreaks = strings.NewReplacer(
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\r`,
	"\v", `\v`,
	"\f", `\f`,
	"\u0085", `\u0085`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// RenderText formats messages one per line, numbered from 1. Line breaks
// inside a message are escaped so that n messages are always n lines.
func RenderText(msgs []Message) string {
	if len(msgs) == 0 {
		return EmptyWall + "\n"
	}

	var sb strings.Builder
	for i, msg := range msgs {
		fmt.Fprintf(&sb, "[%d] \"%s\" (at %d, %d)\n", i+1, lineBreaks.Replace(msg.Text), int(math.Round(msg.Position.X)), int(math.Round(msg.Position.Y)))
	}

	return sb.String()
}
