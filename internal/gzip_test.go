package internal

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGzipMiddleware(t *testing.T) {
	const body = "[1] \"hi\" (at 400, 1200)\n"

	h := GzipMiddleware(1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))

	t.Run("plain", func(t *testing.T) {
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/wall", nil))

		if rw.Header().Get("Content-Encoding") != "" {
			t.Errorf("unexpected Content-Encoding %q", rw.Header().Get("Content-Encoding"))
		}

		if rw.Body.String() != body {
			t.Errorf("wrong body: %q", rw.Body.String())
		}
	})

	t.Run("gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/wall", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate")
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)

		if rw.Header().Get("Content-Encoding") != "gzip" {
			t.Fatalf("wanted gzip encoding, got %q", rw.Header().Get("Content-Encoding"))
		}

		gz, err := gzip.NewReader(rw.Body)
		if err != nil {
			t.Fatal(err)
		}

		got, err := io.ReadAll(gz)
		if err != nil {
			t.Fatal(err)
		}

		if string(got) != body {
			t.Errorf("wrong body: %q", string(got))
		}
	})
}

func TestAcceptsGzip(t *testing.T) {
	for _, tt := range []struct {
		header string
		want   bool
	}{
		{header: "", want: false},
		{header: "gzip", want: true},
		{header: "GZIP", want: true},
		{header: "deflate, gzip;q=0.5", want: true},
		{header: "gzip;q=0", want: false},
		{header: "*", want: true},
		{header: "*;q=0", want: false},
		{header: "*, gzip;q=0", want: false},
		{header: "br, deflate", want: false},
		{header: "gzip;q=nonsense", want: false},
	} {
		t.Run(tt.header, func(t *testing.T) {
			if got := AcceptsGzip(tt.header); got != tt.want {
				t.Errorf("AcceptsGzip(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestGzipMiddlewareErrorStatus(t *testing.T) {
	h := GzipMiddleware(1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "11")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "hello world")
	}))

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/wall", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)

		if rw.Code != http.StatusInternalServerError {
			t.Errorf("wanted 500, got %d", rw.Code)
		}
		if rw.Header().Get("Content-Length") != "" {
			t.Error("Content-Length of the uncompressed body leaked through")
		}
		if rw.Header().Get("Vary") != "Accept-Encoding" {
			t.Errorf("wanted Vary: Accept-Encoding, got %q", rw.Header().Get("Vary"))
		}

		gz, err := gzip.NewReader(rw.Body)
		if err != nil {
			t.Fatal(err)
		}
		got, err := io.ReadAll(gz)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "hello world" {
			t.Errorf("wrong body from a pooled writer: %q", got)
		}
	}
}
