// Package memory keeps the wall in process memory. Messages are lost on
// restart.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/TecharoHQ/wall/lib/message"
)

type factory struct{}

func (factory) Build(context.Context, json.RawMessage) (message.Backend, error) {
	return New(), nil
}

func (factory) Valid(json.RawMessage) error { return nil }

func init() {
	message.Register("memory", factory{})
}

// Backend is an append-only slice guarded by a RWMutex.
type Backend struct {
	lock sync.RWMutex
	msgs []message.Message
	byID map[string]int
}

func New() *Backend {
	return &Backend{
		byID: map[string]int{},
	}
}

func (b *Backend) Insert(_ context.Context, msg message.Message) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if _, ok := b.byID[msg.ID]; ok {
		return fmt.Errorf("memory: duplicate message id %q", msg.ID)
	}

	b.byID[msg.ID] = len(b.msgs)
	b.msgs = append(b.msgs, msg)

	return nil
}

func (b *Backend) List(_ context.Context, limit int, order message.Order) ([]message.Message, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	n := min(limit, len(b.msgs))
	result := make([]message.Message, 0, n)

	switch order {
	case message.OrderOldestFirst:
		result = append(result, b.msgs[:n]...)
	default:
		for i := len(b.msgs) - 1; i >= len(b.msgs)-n; i-- {
			result = append(result, b.msgs[i])
		}
	}

	return result, nil
}

func (b *Backend) Get(_ context.Context, id string) (message.Message, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	i, ok := b.byID[id]
	if !ok {
		return message.Message{}, fmt.Errorf("%w: %q", message.ErrNotFound, id)
	}

	return b.msgs[i], nil
}
