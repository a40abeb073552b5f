package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/mellum-net/broadcast/internal/wire"
)

// bufferPool recycles receive buffers sized for the largest legal envelope,
// migrated from the teacher's GetBuffer/PutBuffer pooling (there: 9KB/recv →
// near-zero after warmup; here the same idea applied to our larger
// MaxEnvelopeSize bound).
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, wire.MaxEnvelopeSize)
		return &buf
	},
}

func getBuffer() *[]byte  { return bufferPool.Get().(*[]byte) }
func putBuffer(b *[]byte) { bufferPool.Put(b) }

// UDPTransport is the production Transport backed by a real *net.UDPConn.
type UDPTransport struct {
	conn *net.UDPConn
}

// NewUDPTransport binds a UDP socket at bind (an unspecified address selects
// any interface; an unspecified port selects an ephemeral one) and applies
// the requested OS socket buffer hint. socketBufferSize of 0 leaves the OS
// default in place.
func NewUDPTransport(bind *net.UDPAddr, socketBufferSize int) (*UDPTransport, error) {
	conn, err := net.ListenUDP("udp4", bind)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", bind, err)
	}

	if socketBufferSize > 0 {
		_ = conn.SetReadBuffer(socketBufferSize)
		_ = conn.SetWriteBuffer(socketBufferSize)
	}

	// Socket option tuning does not affect protocol semantics (spec §1):
	// failure here is not fatal, only suboptimal.
	_ = tuneSocketOptions(conn)

	return &UDPTransport{conn: conn}, nil
}

func (t *UDPTransport) SendTo(frame []byte, dest *net.UDPAddr) error {
	_, err := t.conn.WriteToUDP(frame, dest)
	if err != nil {
		return fmt.Errorf("transport: send to %s: %w", dest, err)
	}
	return nil
}

func (t *UDPTransport) Receive() ([]byte, *net.UDPAddr, error) {
	bufPtr := getBuffer()
	defer putBuffer(bufPtr)
	buf := *bufPtr

	n, addr, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: receive: %w", err)
	}

	frame := make([]byte, n)
	copy(frame, buf[:n])
	return frame, addr, nil
}

func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	addr, _ := t.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Close closes the socket. Closing an already-closed transport returns nil.
func (t *UDPTransport) Close() error {
	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
