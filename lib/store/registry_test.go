package store_test

import (
	"slices"
	"testing"

	"github.com/TecharoHQ/wall/lib/store"
	_ "github.com/TecharoHQ/wall/lib/store/all"
)

func TestMethods(t *testing.T) {
	methods := store.Methods()

	for _, want := range []string{"bbolt", "memory", "valkey"} {
		if !slices.Contains(methods, want) {
			t.Errorf("backend %q is not registered, have: %v", want, methods)
		}

		if _, ok := store.Get(want); !ok {
			t.Errorf("store.Get(%q) found nothing", want)
		}
	}

	if !slices.IsSorted(methods) {
		t.Errorf("methods are not sorted: %v", methods)
	}
}
