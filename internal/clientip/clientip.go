// Package clientip extracts the real client IP address from an inbound
// HTTP request, accounting for the reverse proxy in front of the service.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Resolve returns the client's IP address: the first entry of
// X-Forwarded-For if present, else X-Real-Ip, else the request's remote
// address. Behind a reverse proxy, r.RemoteAddr is the proxy's own address
// and would bucket every user under one rate-limit key, so the forwarded
// headers take priority.
func Resolve(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
