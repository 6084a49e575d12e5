package valkey

import (
	"encoding/json"
	"testing"

	"github.com/TecharoHQ/wall/internal/containertest"
	"github.com/TecharoHQ/wall/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	data, err := json.Marshal(Config{
		URL: containertest.Valkey(t),
	})
	if err != nil {
		t.Fatal(err)
	}

	storetest.Common(t, Factory{}, json.RawMessage(data))
}
