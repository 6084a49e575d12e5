package containertest

import (
	"net/url"
	"testing"
)

func TestValkeyURL(t *testing.T) {
	u, err := url.Parse(Valkey(t))
	if err != nil {
		t.Fatal(err)
	}

	if u.Scheme != "redis" || u.Port() == "" || u.Hostname() == "" {
		t.Errorf("wanted redis://host:port/0, got %s", u)
	}
}
