package message

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/TecharoHQ/wall/internal/registry"
)

var (
	ErrBadConfig = errors.New("message: backend configuration is invalid")
)

// Backend durably stores messages. Implementations must return messages from
// List in insertion order (or its reverse) and wrap ErrNotFound from Get.
type Backend interface {
	Insert(ctx context.Context, msg Message) error
	List(ctx context.Context, limit int, order Order) ([]Message, error)
	Get(ctx context.Context, id string) (Message, error)
}

var backends = registry.New[Factory]("message")

// Factory builds a Backend from its JSON parameters.
type Factory interface {
	Build(ctx context.Context, config json.RawMessage) (Backend, error)
	Valid(config json.RawMessage) error
}

func Register(name string, impl Factory) { backends.Register(name, impl) }

func Get(name string) (Factory, bool) { return backends.Get(name) }

func Methods() []string { return backends.Methods() }
