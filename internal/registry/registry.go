// Package registry holds named backend factories. The challenge store, the
// rate limiter and the message backends each keep one, filled from init
// functions and read when the config is validated.
package registry

import (
	"fmt"
	"slices"
	"sync"
)

type Registry[F any] struct {
	kind  string
	lock  sync.RWMutex
	impls map[string]F
}

// New makes an empty registry. kind names the backend family in panics.
func New[F any](kind string) *Registry[F] {
	return &Registry[F]{
		kind:  kind,
		impls: map[string]F{},
	}
}

// Register adds impl under name. Registering a name twice is a programming
// error and panics.
func (r *Registry[F]) Register(name string, impl F) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.impls[name]; ok {
		panic(fmt.Sprintf("%s: backend %q registered twice", r.kind, name))
	}

	r.impls[name] = impl
}

func (r *Registry[F]) Get(name string) (F, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	result, ok := r.impls[name]
	return result, ok
}

// Methods lists the registered names in sorted order.
func (r *Registry[F]) Methods() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	result := make([]string, 0, len(r.impls))
	for name := range r.impls {
		result = append(result, name)
	}
	slices.Sort(result)

	return result
}
