package goQR

import (
	"context"
	"net/netip"
	"strings"
)

type clientIPContextKey struct{}

// WithClientIP attaches the caller's address to ctx. The Engine keys its
// generate and failed-confirm throttles and its audit events on it.
//
// The address is canonicalized first: a port is stripped and IPv4-mapped
// IPv6 is unmapped, so "[::ffff:198.51.100.7]:443" and "198.51.100.7"
// share one throttle budget. Values that are not addresses are kept as
// given, trimmed.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, canonicalIP(ip))
}

func canonicalIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if addr, err := netip.ParseAddr(raw); err == nil {
		return addr.Unmap().WithZone("").String()
	}
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().Unmap().WithZone("").String()
	}
	return raw
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
