package internal

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// GzipMiddleware compresses responses for clients that accept gzip. Writers
// are pooled per middleware. It must not wrap handlers that hijack the
// connection.
func GzipMiddleware(level int, next http.Handler) http.Handler {
	if _, err := gzip.NewWriterLevel(io.Discard, level); err != nil {
		panic(err)
	}

	pool := sync.Pool{
		New: func() any {
			gz, _ := gzip.NewWriterLevel(io.Discard, level)
			return gz
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")

		if !AcceptsGzip(r.Header.Get("Accept-Encoding")) {
			next.ServeHTTP(w, r)
			return
		}

		gz := pool.Get().(*gzip.Writer)
		gz.Reset(w)

		grw := &gzipResponseWriter{ResponseWriter: w, sink: gz}
		defer func() {
			// A handler that never wrote gets no gzip trailer either.
			if grw.wroteHeader {
				gz.Close()
			}
			gz.Reset(io.Discard)
			pool.Put(gz)
		}()

		next.ServeHTTP(grw, r)
	})
}

// AcceptsGzip reports whether an Accept-Encoding header allows gzip. An
// explicit q=0 for gzip wins over a wildcard.
func AcceptsGzip(header string) bool {
	wildcard := false

	for part := range strings.SplitSeq(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != "gzip" && coding != "*" {
			continue
		}

		allowed := qvalue(params) > 0
		if coding == "gzip" {
			return allowed
		}
		wildcard = allowed
	}

	return wildcard
}

func qvalue(params string) float64 {
	for param := range strings.SplitSeq(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || strings.ToLower(strings.TrimSpace(k)) != "q" {
			continue
		}

		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return q
	}

	return 1
}

type gzipResponseWriter struct {
	http.ResponseWriter
	sink        *gzip.Writer
	wroteHeader bool
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.Header().Del("Content-Length")
		w.Header().Set("Content-Encoding", "gzip")
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.sink.Write(b)
}

func (w *gzipResponseWriter) Flush() {
	w.sink.Flush()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
