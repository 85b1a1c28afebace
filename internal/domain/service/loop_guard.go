package service

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

// LoopGuard detects requests that came back through this proxy and
// resolves the client address behind trusted proxies
type LoopGuard struct {
	trusted []netip.Prefix
}

// NewLoopGuard creates a LoopGuard trusting X-Forwarded-For only from the
// given CIDRs
func NewLoopGuard(trustedProxies []string) (*LoopGuard, error) {
	g := &LoopGuard{}
	for _, cidr := range trustedProxies {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", cidr, err)
		}
		g.trusted = append(g.trusted, prefix.Masked())
	}
	return g, nil
}

// ClientAddress returns the address of the client that originated the
// request. X-Forwarded-For is walked right to left only while hops are
// trusted proxies.
func (g *LoopGuard) ClientAddress(header http.Header, remoteAddr string) string {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	peer, err := netip.ParseAddr(host)
	if err != nil || !g.isTrusted(peer) {
		return host
	}

	var hops []string
	for _, value := range header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(value, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}

	candidate := host
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			break
		}
		candidate = addr.String()
		if !g.isTrusted(addr) {
			break
		}
	}
	return candidate
}

// IsSelfLoop reports whether the request carries this proxy's Via marker
// and originates from a loopback address
func (g *LoopGuard) IsSelfLoop(header http.Header, remoteAddr string) bool {
	if !HasViaMarker(header) {
		return false
	}

	addr, err := netip.ParseAddr(g.ClientAddress(header, remoteAddr))
	if err != nil {
		return false
	}
	return addr.Unmap().IsLoopback()
}

// ForwardedFor returns the X-Forwarded-For value to send upstream: the
// inbound chain with the direct peer appended
func ForwardedFor(header http.Header, remoteAddr string) string {
	peer := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		peer = h
	}

	var hops []string
	for _, value := range header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(value, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	if peer != "" {
		hops = append(hops, peer)
	}
	return strings.Join(hops, ", ")
}

// HasViaMarker reports whether any Via entry is this proxy's marker
func HasViaMarker(header http.Header) bool {
	for _, value := range header.Values("Via") {
		for _, entry := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(entry), model.ViaMarker) {
				return true
			}
		}
	}
	return false
}

func (g *LoopGuard) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range g.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
