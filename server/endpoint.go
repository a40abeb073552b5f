package server

import "net"

// selfEndpoint formats bind the same way configured peer endpoint specs are
// written (host:port), substituting the loopback address for an unspecified
// bind IP so self can be matched against its own entry in the configured
// peer list (spec §4.4: "if it binds an unspecified address the loopback
// address is substituted for matching").
func selfEndpoint(bind *net.UDPAddr) string {
	ip := bind.IP
	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4(127, 0, 0, 1)
	}
	return (&net.UDPAddr{IP: ip, Port: bind.Port}).String()
}
