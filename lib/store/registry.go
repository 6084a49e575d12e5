package store

import (
	"context"
	"encoding/json"

	"github.com/TecharoHQ/wall/internal/registry"
)

var backends = registry.New[Factory]("store")

// Factory builds a store backend from its JSON parameters.
type Factory interface {
	Build(ctx context.Context, config json.RawMessage) (Interface, error)
	Valid(config json.RawMessage) error
}

func Register(name string, impl Factory) { backends.Register(name, impl) }

func Get(name string) (Factory, bool) { return backends.Get(name) }

func Methods() []string { return backends.Methods() }
