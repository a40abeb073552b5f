// Package transport abstracts the UDP socket operations used by both the
// broadcast client and the broadcast server, so production code talks to a
// real socket and tests can inject a transport that drops or records
// everything instead (spec §9, design note on the "PauseNetwork" test hook).
package transport

import "net"

// Transport is the injectable seam between the client/server state machines
// and the network. Production code uses UDPTransport; tests use Mock.
type Transport interface {
	// SendTo transmits a single datagram to dest. Send failures are
	// transient-socket-error class (spec §7): the caller logs and
	// continues, it never propagates to the application.
	SendTo(frame []byte, dest *net.UDPAddr) error

	// Receive blocks for the next inbound datagram, returning its bytes
	// and the address it arrived from. It is the one blocking call in the
	// whole system (spec §5).
	Receive() ([]byte, *net.UDPAddr, error)

	// LocalAddr reports the address the transport is bound to.
	LocalAddr() *net.UDPAddr

	// Close releases the underlying socket. Close is idempotent.
	Close() error
}
