package middleware

import (
	"net"
	"net/http"
	"net/netip"

	chimw "github.com/go-chi/chi/v5/middleware"

	"jarfeed/internal/infra"
)

// TrustedRealIP rewrites RemoteAddr from forwarding headers only when the
// connecting peer is one of the trusted proxies. Requests from anyone else
// keep their socket address, so spoofed headers cannot pick a client IP.
func TrustedRealIP(trusted []string) func(http.Handler) http.Handler {
	prefixes := make([]netip.Prefix, 0, len(trusted))
	for _, v := range trusted {
		if p, err := infra.ParseProxy(v); err == nil {
			prefixes = append(prefixes, p)
		}
	}
	return func(next http.Handler) http.Handler {
		forwarded := chimw.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peerTrusted(r.RemoteAddr, prefixes) {
				forwarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func peerTrusted(remoteAddr string, prefixes []netip.Prefix) bool {
	if len(prefixes) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(remoteHost(remoteAddr))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// remoteHost strips the port from RemoteAddr when there is one.
func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
