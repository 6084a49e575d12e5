package internal

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gaissmai/bart"
)

// UnknownClient is the key shared by every request that carries no usable
// address. All such requests land in the same rate limit bucket.
const UnknownClient = "unknown"

// ClientKeyer derives the rate limit identity of a request.
//
// The key is the first entry of X-Forwarded-For, then X-Real-Ip, then
// UnknownClient. When trusted proxies are configured, forwarding headers are
// only believed if the direct peer is one of them; otherwise the peer address
// is the key.
type ClientKeyer struct {
	trusted *bart.Table[bool]
}

func NewClientKeyer(trustedProxies []string) (*ClientKeyer, error) {
	if len(trustedProxies) == 0 {
		return &ClientKeyer{}, nil
	}

	tbl := &bart.Table[bool]{}
	for _, cidr := range trustedProxies {
		pfx, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("internal: trusted proxy %q is not a CIDR: %w", cidr, err)
		}
		tbl.Insert(pfx.Masked(), true)
	}

	return &ClientKeyer{trusted: tbl}, nil
}

func (ck *ClientKeyer) Key(r *http.Request) string {
	if ck != nil && ck.trusted != nil {
		peer, ok := peerAddr(r)
		if !ok {
			return UnknownClient
		}

		if _, trusted := ck.trusted.Lookup(peer); !trusted {
			return peer.String()
		}
	}

	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}

	return UnknownClient
}

func peerAddr(r *http.Request) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}

	return addr.Unmap(), true
}
