// Package client implements the Broadcast Client (spec §4.2): it registers
// presence with every configured server, periodically renews that
// registration, forwards outbound broadcasts to the server cluster, and
// delivers inbound broadcasts to the embedding application.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mellum-net/broadcast/config"
	"github.com/mellum-net/broadcast/internal/observability"
	"github.com/mellum-net/broadcast/internal/resolver"
	"github.com/mellum-net/broadcast/internal/transport"
	"github.com/mellum-net/broadcast/internal/wire"
)

// lifecycleState is the client's {Starting, Active, Closing, Closed} state
// machine (spec §4.2).
type lifecycleState int32

const (
	stateStarting lifecycleState = iota
	stateActive
	stateClosing
	stateClosed
)

// ClosedError is returned by Broadcast once the client has been closed
// (spec §7: ClosedError — "API called after Close. Policy: surface to
// caller.").
type ClosedError struct{}

func (ClosedError) Error() string { return "client: closed" }

// PacketEvent is the payload delivered to a PacketReceived handler: a
// Broadcast message whose group matched the client's own (spec §4.2).
type PacketEvent struct {
	SourceAddress net.IP
	Payload       []byte
}

// PacketReceivedFunc is invoked for every inbound Broadcast in the client's
// own group. It runs on the receive loop's dispatch context after the
// client's mutex has been released (spec §4.2, §5); it must not block, and
// must not call back into the client synchronously.
type PacketReceivedFunc func(PacketEvent)

// Client is a single participant's connection to the broadcast overlay. The
// zero value is not usable; construct with New.
type Client struct {
	cfg        config.Client
	observer   observability.Observer
	transport  transport.Transport
	onPacket   PacketReceivedFunc
	bootDelay  time.Duration
	instanceID string

	mu            sync.Mutex
	state         lifecycleState
	servers       []*net.UDPAddr
	sourceAddress net.IP

	stop chan struct{}
	wg   sync.WaitGroup
}

// Option configures optional behavior of New, following the functional
// options pattern the teacher uses for its Responder/Querier.
type Option func(*Client)

// WithObserver supplies the observability sink New would otherwise default
// to a no-op.
func WithObserver(o observability.Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithTransport injects a Transport, bypassing the real UDP socket bind.
// Production callers never need this; tests use it with transport.Mock.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithPacketReceived registers the handler invoked for inbound broadcasts in
// this client's own group.
func WithPacketReceived(fn PacketReceivedFunc) Option {
	return func(c *Client) { c.onPacket = fn }
}

// WithBootDelay overrides the ≈2s startup sleep documented in spec §4.2 and
// §9 ("arguably tuning parameters; a reimplementation may expose them").
// Tests set this to 0 to avoid slowing down the suite.
func WithBootDelay(d time.Duration) Option {
	return func(c *Client) { c.bootDelay = d }
}

// New constructs and starts a Client: it validates cfg, binds the UDP
// socket (or uses the injected transport), launches the receive loop and
// the background ticker, then sleeps bootDelay before returning so the
// first DNS resolution — armed to fire immediately by the background loop —
// has a chance to land before the caller's first Broadcast (spec §4.2,
// §9 open question on the boot sleep).
func New(cfg config.Client, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		observer:   observability.Noop{},
		bootDelay:  2 * time.Second,
		instanceID: uuid.New().String(),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		tr, err := transport.NewUDPTransport(cfg.NetworkBinding, cfg.SocketBufferSize)
		if err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
		c.transport = tr
	}

	c.sourceAddress = discoverSourceAddress(cfg.NetworkBinding)

	c.wg.Add(2)
	go c.receiveLoop()
	go c.backgroundLoop()

	c.mu.Lock()
	c.state = stateActive
	c.mu.Unlock()

	c.observer.Info("client_active", c.fields(map[string]any{"source_address": c.sourceAddress.String()}))

	if c.bootDelay > 0 {
		time.Sleep(c.bootDelay)
	}

	return c, nil
}

// fields merges extra with the client's instance_id so every log line an
// Observer receives can be correlated back to this client instance, the
// same way a request-scoped trace id threads through a handler chain.
func (c *Client) fields(extra map[string]any) map[string]any {
	out := make(map[string]any, len(extra)+1)
	out["instance_id"] = c.instanceID
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func discoverSourceAddress(bind *net.UDPAddr) net.IP {
	if bind != nil && bind.IP != nil && !bind.IP.IsUnspecified() {
		return bind.IP
	}
	if ip, err := resolver.FirstActiveInterfaceIPv4(); err == nil {
		return ip
	}
	return net.IPv4zero
}

// Broadcast sends payload as a single Broadcast message to every server in
// the client's current server list (spec §4.2). Individual transmit
// failures are swallowed (UDP is best-effort, spec §5/§7); only ClosedError
// and an envelope encoding error (e.g. a payload over wire.MaxPayloadSize)
// propagate to the caller.
func (c *Client) Broadcast(payload []byte) error {
	c.mu.Lock()
	if c.state == stateClosing || c.state == stateClosed {
		c.mu.Unlock()
		return ClosedError{}
	}
	servers := c.servers
	source := c.sourceAddress
	c.mu.Unlock()

	msg := wire.Message{
		Type:           wire.Broadcast,
		TimestampUTC:   time.Now().UTC(),
		SourceAddress:  source,
		BroadcastGroup: c.cfg.BroadcastGroup,
		Payload:        payload,
	}
	frame, err := wire.Encode(msg, c.cfg.SharedKey)
	if err != nil {
		return fmt.Errorf("client: encode broadcast: %w", err)
	}

	c.sendToAll(frame, servers)
	return nil
}

func (c *Client) sendToAll(frame []byte, servers []*net.UDPAddr) {
	for _, dest := range servers {
		if err := c.transport.SendTo(frame, dest); err != nil {
			c.observer.Warn("send_failed", c.fields(map[string]any{"dest": dest.String(), "error": err.Error()}))
		}
	}
}

func (c *Client) sendRegistration(msgType wire.MessageType) {
	c.mu.Lock()
	servers := c.servers
	c.mu.Unlock()

	msg := wire.Message{Type: msgType, TimestampUTC: time.Now().UTC()}
	frame, err := wire.Encode(msg, c.cfg.SharedKey)
	if err != nil {
		c.observer.Warn("encode_registration_failed", c.fields(map[string]any{"error": err.Error()}))
		return
	}
	c.sendToAll(frame, servers)
}

// Close transitions the client to Closed: it sends one best-effort
// ClientUnregister to each known server, then closes the socket and cancels
// the background goroutines. Close is idempotent (spec §4.2, §5).
func (c *Client) Close() error {
	return c.close(true)
}

// CloseWithoutUnregister tears the client down the same way Close does but
// skips the ClientUnregister datagram, simulating a crashed client for
// tests that exercise the server's TTL eviction path rather than its
// graceful-unregister path.
func (c *Client) CloseWithoutUnregister() error {
	return c.close(false)
}

func (c *Client) close(sendUnregister bool) error {
	c.mu.Lock()
	if c.state == stateClosing || c.state == stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosing
	c.mu.Unlock()

	if sendUnregister {
		c.sendRegistration(wire.ClientUnregister)
	}

	close(c.stop)
	err := c.transport.Close()
	c.wg.Wait()

	c.mu.Lock()
	c.state = stateClosed
	c.mu.Unlock()

	c.observer.Info("client_closed", c.fields(nil))

	return err
}

// receiveLoop is the client's single blocking receive path (spec §5). It
// re-arms itself unconditionally after every packet, including malformed
// ones and socket errors, so it can never starve (spec §4.2 failure
// handling).
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		frame, _, err := c.transport.Receive()
		if err != nil {
			select {
			case <-c.stop:
				return
			default:
			}
			c.observer.Warn("receive_error", c.fields(map[string]any{"error": err.Error()}))
			continue
		}

		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame []byte) {
	msg, err := wire.Decode(frame, c.cfg.SharedKey)
	if err != nil {
		c.observer.Warn("invalid_message", c.fields(map[string]any{"error": err.Error()}))
		c.observer.CounterAdd("rejected_invalid", 1, nil)
		return
	}

	now := time.Now().UTC()
	if err := wire.CheckFreshness(msg, now, c.cfg.MessageTTL); err != nil {
		c.observer.Warn("stale_message", c.fields(map[string]any{"error": err.Error()}))
		c.observer.CounterAdd("rejected_stale", 1, nil)
		return
	}

	if msg.Type != wire.Broadcast || msg.BroadcastGroup != c.cfg.BroadcastGroup {
		return
	}

	c.mu.Lock()
	handler := c.onPacket
	c.mu.Unlock()

	if handler == nil {
		return
	}
	handler(PacketEvent{SourceAddress: msg.SourceAddress, Payload: msg.Payload})
}

// backgroundLoop drives the keep-alive and DNS-resolution timers from a
// single BkTaskInterval ticker (spec §4.2): both are armed to fire
// immediately on start, then rearm on their own cadence.
func (c *Client) backgroundLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.BkTaskInterval)
	defer ticker.Stop()

	c.resolveServers()
	c.sendRegistration(wire.ClientRegister)

	now := time.Now()
	nextKeepAlive := now.Add(c.cfg.KeepAliveInterval)
	nextResolve := now.Add(c.cfg.ServerResolveInterval)

	for {
		select {
		case <-c.stop:
			return
		case t := <-ticker.C:
			if !t.Before(nextKeepAlive) {
				c.sendRegistration(wire.ClientRegister)
				nextKeepAlive = t.Add(c.cfg.KeepAliveInterval)
			}
			if !t.Before(nextResolve) {
				c.resolveServers()
				nextResolve = t.Add(c.cfg.ServerResolveInterval)
			}
		}
	}
}

func (c *Client) resolveServers() {
	resolved, failed := resolver.Resolve(c.cfg.Servers)
	c.observer.CounterAdd("resolutions", 1, nil)
	if len(failed) > 0 {
		c.observer.Warn("server_resolution_failed", c.fields(map[string]any{"specs": failed}))
	}

	c.mu.Lock()
	c.servers = resolved
	c.mu.Unlock()
}
