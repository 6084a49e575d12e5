package internal

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/sebest/xff"
)

// XForwardedForUpdate appends the direct peer to the X-Forwarded-For chain
// (creating the header when absent) so downstream handlers always see the
// originating address first.
func XForwardedForUpdate(stripPrivate bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer next.ServeHTTP(w, r)

		if r.RemoteAddr == "@" || r.RemoteAddr == "" {
			// unix socket, nothing to add
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		chain := splitXFF(r.Header.Get("X-Forwarded-For"))
		chain = append(chain, host)

		if stripPrivate {
			chain = stripPrivateAddrs(chain)
		}

		if len(chain) == 0 {
			r.Header.Del("X-Forwarded-For")
			return
		}

		r.Header.Set("X-Forwarded-For", strings.Join(chain, ", "))
	})
}

// XForwardedForToXRealIP sets X-Real-Ip to the first public address of the
// X-Forwarded-For chain when no proxy set it already.
func XForwardedForToXRealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if xffHeader := r.Header.Get("X-Forwarded-For"); r.Header.Get("X-Real-Ip") == "" && xffHeader != "" {
			if ip := xff.Parse(xffHeader); ip != "" {
				slog.Debug("setting x-real-ip", "val", ip)
				r.Header.Set("X-Real-Ip", ip)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RemoteXRealIP sets X-Real-Ip from the network peer. Useful when the wall is
// exposed directly without a reverse proxy in front.
func RemoteXRealIP(useRemoteAddress bool, bindNetwork string, next http.Handler) http.Handler {
	if !useRemoteAddress {
		slog.Debug("skipping middleware, useRemoteAddress is empty")
		return next
	}

	if bindNetwork == "unix" {
		// there is no peer address on a unix socket
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set("X-Real-Ip", "127.0.0.1")
			next.ServeHTTP(w, r)
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		r.Header.Set("X-Real-Ip", host)
		next.ServeHTTP(w, r)
	})
}

func splitXFF(header string) []string {
	var result []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		result = append(result, part)
	}
	return result
}

func stripPrivateAddrs(chain []string) []string {
	result := chain[:0]
	for _, entry := range chain {
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			// keep things we can't judge, proxies sometimes write hostnames
			result = append(result, entry)
			continue
		}

		if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
			continue
		}

		result = append(result, entry)
	}
	return result
}
