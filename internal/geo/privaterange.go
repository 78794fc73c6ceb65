package geo

import "net/netip"

// isPrivate reports whether addr is in a non-routable range: RFC1918,
// loopback, link-local, or IPv6 unique-local. These short-circuit to
// is_private=true without any external call.
func isPrivate(addr string) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}
