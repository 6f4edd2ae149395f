package reactor

import "net"

// parseIP resolves ip to its 4-byte IPv4 form for use in a
// unix.SockaddrInet4, or nil if ip is not a valid IPv4 address.
func parseIP(ip string) net.IP {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil
	}
	return parsed.To4()
}
