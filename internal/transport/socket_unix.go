//go:build unix

package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// tuneSocketOptions sets SO_REUSEADDR and SO_REUSEPORT on conn's underlying
// file descriptor. This lets a server process rebind its endpoint quickly
// after a restart without waiting out TIME_WAIT, and lets multiple local
// processes share a port during testing — neither changes protocol
// semantics (spec §1: "socket option tuning... do not change contracts").
func tuneSocketOptions(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("syscall conn: %w", err)
	}

	var opErr error
	err = raw.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
			opErr = e
			return
		}
		// SO_REUSEPORT is best-effort: some unix variants under test
		// sandboxes reject it even though the platform defines it.
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return fmt.Errorf("control: %w", err)
	}
	return opErr
}
