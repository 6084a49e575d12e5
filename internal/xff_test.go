package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestXForwardedForUpdate(t *testing.T) {
	for _, tt := range []struct {
		name         string
		stripPrivate bool
		remoteAddr   string
		xff          string
		want         string
	}{
		{
			name:       "no header",
			remoteAddr: "203.0.113.9:4242",
			want:       "203.0.113.9",
		},
		{
			name:       "existing chain",
			remoteAddr: "198.51.100.1:4242",
			xff:        "203.0.113.9",
			want:       "203.0.113.9, 198.51.100.1",
		},
		{
			name:         "strip private peer",
			stripPrivate: true,
			remoteAddr:   "10.0.0.2:4242",
			xff:          "203.0.113.9",
			want:         "203.0.113.9",
		},
		{
			name:         "strip everything",
			stripPrivate: true,
			remoteAddr:   "127.0.0.1:4242",
			want:         "",
		},
		{
			name:       "unix socket",
			remoteAddr: "@",
			xff:        "203.0.113.9",
			want:       "203.0.113.9",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := XForwardedForUpdate(tt.stripPrivate, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("X-Forwarded-For")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("wanted X-Forwarded-For %q, got %q", tt.want, got)
			}
		})
	}
}

func TestXForwardedForToXRealIP(t *testing.T) {
	var got string
	h := XForwardedForToXRealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Real-Ip")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "203.0.113.9" {
		t.Errorf("wanted X-Real-Ip 203.0.113.9, got %q", got)
	}
}

func TestRemoteXRealIP(t *testing.T) {
	for _, tt := range []struct {
		name    string
		use     bool
		network string
		want    string
	}{
		{name: "disabled", use: false, network: "tcp", want: ""},
		{name: "tcp", use: true, network: "tcp", want: "192.0.2.1"},
		{name: "unix", use: true, network: "unix", want: "127.0.0.1"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := RemoteXRealIP(tt.use, tt.network, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("X-Real-Ip")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil) // RemoteAddr is 192.0.2.1:1234
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("wanted X-Real-Ip %q, got %q", tt.want, got)
			}
		})
	}
}
