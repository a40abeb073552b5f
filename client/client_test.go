package client

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mellum-net/broadcast/config"
	"github.com/mellum-net/broadcast/internal/transport"
	"github.com/mellum-net/broadcast/internal/wire"
)

func testConfig(servers []string) config.Client {
	return config.Client{
		Servers:        servers,
		SharedKey:      []byte("0123456789abcdef"),
		BroadcastGroup: 0,
	}.WithDefaults()
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *transport.Mock) {
	t.Helper()
	mock := transport.NewMock(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9100})
	allOpts := append([]Option{WithTransport(mock), WithBootDelay(0)}, opts...)

	c, err := New(testConfig([]string{"127.0.0.1:7530"}), allOpts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mock
}

func TestClient_BroadcastSendsToEveryServer(t *testing.T) {
	c, mock := newTestClient(t)

	if err := c.Broadcast([]byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	// Give the synchronous send a moment (it is synchronous in this
	// implementation, but keep the test robust to future async sends).
	time.Sleep(10 * time.Millisecond)

	sent := mock.Sent()
	if len(sent) == 0 {
		t.Fatal("expected at least one datagram sent")
	}

	msg, err := wire.Decode(sent[len(sent)-1].Frame, []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.Type != wire.Broadcast {
		t.Fatalf("Type = %v, want Broadcast", msg.Type)
	}
	if string(msg.Payload) != "\x01\x02\x03" {
		t.Fatalf("Payload = %x, want 010203", msg.Payload)
	}
}

func TestClient_BroadcastAfterCloseFails(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := c.Broadcast([]byte("x"))
	if _, ok := err.(ClosedError); !ok {
		t.Fatalf("Broadcast() after Close() error = %v, want ClosedError", err)
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v, want nil (idempotent)", err)
	}
}

func TestClient_PacketReceivedDeliversMatchingGroup(t *testing.T) {
	var mu sync.Mutex
	var got *PacketEvent

	done := make(chan struct{}, 1)
	c, mock := newTestClient(t, WithPacketReceived(func(evt PacketEvent) {
		mu.Lock()
		e := evt
		got = &e
		mu.Unlock()
		done <- struct{}{}
	}))

	key := []byte("0123456789abcdef")
	frame, err := wire.Encode(wire.Message{
		Type:           wire.Broadcast,
		TimestampUTC:   time.Now().UTC(),
		SourceAddress:  net.IPv4(1, 2, 3, 4),
		BroadcastGroup: 0,
		Payload:        []byte("hi"),
	}, key)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	mock.Deliver(frame, &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 7530})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for PacketReceived")
	}

	mu.Lock()
	defer mu.Unlock()
	if got == nil || string(got.Payload) != "hi" {
		t.Fatalf("got = %+v, want payload hi", got)
	}
}

func TestClient_PacketReceivedIgnoresOtherGroup(t *testing.T) {
	delivered := make(chan struct{}, 1)
	c, mock := newTestClient(t, WithPacketReceived(func(evt PacketEvent) {
		delivered <- struct{}{}
	}))
	_ = c

	otherGroupCfg := []byte("0123456789abcdef")
	frame, err := wire.Encode(wire.Message{
		Type:           wire.Broadcast,
		TimestampUTC:   time.Now().UTC(),
		BroadcastGroup: 1, // client's group is 0
		Payload:        []byte("hi"),
	}, otherGroupCfg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	mock.Deliver(frame, &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 7530})

	select {
	case <-delivered:
		t.Fatal("handler should not have been invoked for a different group")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_InvalidFrameDropsAndLoopContinues(t *testing.T) {
	c, mock := newTestClient(t)

	mock.Deliver([]byte("not a valid envelope at all"), &net.UDPAddr{})
	time.Sleep(20 * time.Millisecond)

	// The receive loop must still be alive: a subsequent valid broadcast
	// is still delivered to the application.
	delivered := make(chan struct{}, 1)
	c.mu.Lock()
	c.onPacket = func(PacketEvent) { delivered <- struct{}{} }
	c.mu.Unlock()

	key := []byte("0123456789abcdef")
	frame, _ := wire.Encode(wire.Message{Type: wire.Broadcast, TimestampUTC: time.Now().UTC()}, key)
	mock.Deliver(frame, &net.UDPAddr{})

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("receive loop appears to have stopped after an invalid frame")
	}
}
