// Package resolver builds and periodically rebuilds a client's Server List
// (spec §3): the mapping from configured endpoint spec (host:port or
// address:port) to resolved IPv4 socket addresses.
package resolver

import (
	"fmt"
	"net"
)

// Resolve re-resolves every entry in specs via DNS, returning one
// *net.UDPAddr per spec that resolved successfully. A spec that fails to
// resolve (transient DNS hiccup) is dropped from the result rather than
// failing the whole rebuild — losing one server out of several for one
// resolution cycle is preferable to a client that stops broadcasting
// entirely because one name temporarily didn't resolve.
//
// The caller (client.resolveServers) is responsible for logging the specs that
// were dropped.
func Resolve(specs []string) (resolved []*net.UDPAddr, failed []string) {
	for _, spec := range specs {
		addr, err := net.ResolveUDPAddr("udp4", spec)
		if err != nil {
			failed = append(failed, spec)
			continue
		}
		resolved = append(resolved, addr)
	}
	return resolved, failed
}

// FirstActiveInterfaceIPv4 returns the IPv4 address of the first active,
// non-loopback network interface, used for the client's best-effort
// sourceAddress label when its configured bind address is unspecified (spec
// §4.2: "selects the IPv4 address of the first active interface... not a
// security boundary").
func FirstActiveInterfaceIPv4() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("resolver: list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4, nil
			}
		}
	}
	return nil, fmt.Errorf("resolver: no active non-loopback IPv4 interface found")
}
