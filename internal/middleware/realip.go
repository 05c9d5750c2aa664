package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RealIPMiddleware sets X-Real-IP to the client address that rate limiting
// and logging key on. Forwarding headers are honored only when the
// connection comes from a trusted proxy; any client supplied X-Real-IP is
// overwritten.
type RealIPMiddleware struct {
	trusted []netip.Prefix
}

// NewRealIPMiddleware creates a RealIPMiddleware. trustedProxies holds IP
// addresses ("192.168.1.1") or CIDRs ("10.0.0.0/8"); invalid entries are
// logged and skipped.
func NewRealIPMiddleware(trustedProxies []string) *RealIPMiddleware {
	m := &RealIPMiddleware{}
	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		prefix, err := parsePrefix(proxy)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy", slog.String("proxy", proxy), slog.Any("error", err))
			continue
		}
		m.trusted = append(m.trusted, prefix)
	}
	return m
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		return p.Masked(), err
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Handler returns the middleware handler
func (m *RealIPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del("X-Real-IP")
		if ip := m.clientIP(r); ip != "" {
			r.Header.Set("X-Real-IP", ip)
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the client address. Behind trusted proxies,
// CF-Connecting-IP wins; otherwise X-Forwarded-For is walked from the right
// and the first hop that is not a trusted proxy is the client, so a client
// cannot spoof its address by prepending entries.
func (m *RealIPMiddleware) clientIP(r *http.Request) string {
	remote, ok := parseRemoteAddr(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if !m.isTrusted(remote) {
		return remote.String()
	}

	if cf, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("CF-Connecting-IP"))); err == nil {
		return cf.Unmap().String()
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			// A malformed hop ends the trusted chain.
			break
		}
		hop = hop.Unmap()
		if !m.isTrusted(hop) {
			return hop.String()
		}
	}
	return remote.String()
}

func (m *RealIPMiddleware) isTrusted(addr netip.Addr) bool {
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr parses RemoteAddr, which is host:port or a bare IP.
func parseRemoteAddr(remoteAddr string) (netip.Addr, bool) {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
