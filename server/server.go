// Package server implements the Broadcast Server (spec §4.3): it accepts
// messages from clients and peer servers, maintains soft-state tables of
// both populations, participates in master election (internal/election),
// and — only while master — fans out valid Broadcast messages to every
// client registered in the same group.
package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mellum-net/broadcast/config"
	"github.com/mellum-net/broadcast/internal/election"
	"github.com/mellum-net/broadcast/internal/observability"
	"github.com/mellum-net/broadcast/internal/transport"
	"github.com/mellum-net/broadcast/internal/ttl"
	"github.com/mellum-net/broadcast/internal/wire"
)

type lifecycleState int32

const (
	stateStarting lifecycleState = iota
	stateActive
	stateClosing
	stateClosed
)

// ClosedError reports an API called after Close (spec §7). No Server method
// returns it: Close is idempotent and IsMaster cannot fail.
type ClosedError struct{}

func (ClosedError) Error() string { return "server: closed" }

// clientEntry is the Client Registration Entry value (spec §3): broadcast
// group plus deadline, the latter owned by internal/ttl.
type clientEntry struct {
	broadcastGroup uint8
}

// Server is a single cluster member. The zero value is not usable;
// construct with New.
type Server struct {
	cfg        config.Server
	observer   observability.Observer
	trans      transport.Transport
	self       string
	instanceID string

	clients *ttl.Table[string, clientEntry]
	peers   *ttl.Table[string, struct{}]

	mu    sync.Mutex
	state lifecycleState

	closingDelay time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// Option configures optional behavior of New.
type Option func(*Server)

// WithObserver supplies the observability sink New would otherwise default
// to a no-op.
func WithObserver(o observability.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithTransport injects a Transport, bypassing the real UDP socket bind.
// Production callers never need this; tests use it with transport.Mock.
func WithTransport(t transport.Transport) Option {
	return func(s *Server) { s.trans = t }
}

// WithClosingDelay overrides the ≈2s drain sleep performed during Close
// (spec §4.3, §9 open question on the shutdown sleep).
func WithClosingDelay(d time.Duration) Option {
	return func(s *Server) { s.closingDelay = d }
}

// New constructs and starts a Server: it validates cfg, binds the UDP
// endpoint (or uses the injected transport), schedules the self-register
// timer to fire immediately, launches the receive loop, and transitions to
// Active (spec §4.3).
func New(cfg config.Server, opts ...Option) (*Server, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:          cfg,
		observer:     observability.Noop{},
		closingDelay: 2 * time.Second,
		instanceID:   uuid.New().String(),
		clients:      ttl.New[string, clientEntry](),
		peers:        ttl.New[string, struct{}](),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.trans == nil {
		tr, err := transport.NewUDPTransport(cfg.NetworkBinding, cfg.SocketBufferSize)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.trans = tr
	}

	s.self = selfEndpoint(cfg.NetworkBinding)

	s.wg.Add(2)
	go s.receiveLoop()
	go s.backgroundLoop()

	s.mu.Lock()
	s.state = stateActive
	s.mu.Unlock()

	s.observer.Info("server_active", s.fields(map[string]any{"self": s.self}))

	return s, nil
}

// fields merges extra with the server's instance_id so every log line an
// Observer receives can be correlated back to this server instance, the
// same way a request-scoped trace id threads through a handler chain.
func (s *Server) fields(extra map[string]any) map[string]any {
	out := make(map[string]any, len(extra)+1)
	out["instance_id"] = s.instanceID
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// IsMaster reports whether this server currently considers itself the
// cluster master, given its live peer view (spec §4.4).
func (s *Server) IsMaster() bool {
	return election.IsMaster(s.self, s.livePeers())
}

func (s *Server) livePeers() []string {
	snap := s.peers.Snapshot()
	out := make([]string, 0, len(snap))
	for endpoint := range snap {
		out = append(out, endpoint)
	}
	return out
}

// peerTargets returns the configured peer endpoints to send ServerRegister/
// ServerUnregister to: the configured list minus self.
func (s *Server) peerTargets() []*net.UDPAddr {
	out := make([]*net.UDPAddr, 0, len(s.cfg.Servers))
	for _, spec := range s.cfg.Servers {
		if spec == s.self {
			continue
		}
		addr, err := net.ResolveUDPAddr("udp4", spec)
		if err != nil {
			s.observer.Warn("peer_resolution_failed", s.fields(map[string]any{"spec": spec, "error": err.Error()}))
			continue
		}
		out = append(out, addr)
	}
	return out
}

// Close transitions the server to Closed: it sends ServerUnregister to
// every configured peer, sleeps closingDelay so any broadcast already
// in-flight can be handled by the newly elected master, then closes the
// socket, cancels timers, and clears both tables. Close is idempotent
// (spec §4.3).
func (s *Server) Close() error {
	s.mu.Lock()
	if s.state == stateClosing || s.state == stateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = stateClosing
	s.mu.Unlock()

	s.broadcastToPeers(wire.ServerUnregister)

	if s.closingDelay > 0 {
		time.Sleep(s.closingDelay)
	}

	close(s.stop)
	err := s.trans.Close()
	s.wg.Wait()

	s.clients = ttl.New[string, clientEntry]()
	s.peers = ttl.New[string, struct{}]()

	s.mu.Lock()
	s.state = stateClosed
	s.mu.Unlock()

	s.observer.Info("server_closed", s.fields(nil))

	return err
}

func (s *Server) broadcastToPeers(msgType wire.MessageType) {
	msg := wire.Message{Type: msgType, TimestampUTC: time.Now().UTC()}
	frame, err := wire.Encode(msg, s.cfg.SharedKey)
	if err != nil {
		s.observer.Warn("encode_peer_message_failed", s.fields(map[string]any{"error": err.Error()}))
		return
	}
	for _, dest := range s.peerTargets() {
		if err := s.trans.SendTo(frame, dest); err != nil {
			s.observer.Warn("send_failed", s.fields(map[string]any{"dest": dest.String(), "error": err.Error()}))
		}
	}
}

// receiveLoop is the server's single blocking receive path (spec §5). It
// re-arms itself unconditionally, including after malformed frames and
// socket errors, so it can never starve (spec §4.3 failure handling).
func (s *Server) receiveLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		frame, addr, err := s.trans.Receive()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			s.observer.Warn("receive_error", s.fields(map[string]any{"error": err.Error()}))
			continue
		}

		s.handleFrame(frame, addr)
	}
}

func (s *Server) handleFrame(frame []byte, from *net.UDPAddr) {
	msg, err := wire.Decode(frame, s.cfg.SharedKey)
	if err != nil {
		s.observer.Warn("invalid_message", s.fields(map[string]any{"from": from.String(), "error": err.Error()}))
		s.observer.CounterAdd("rejected_invalid", 1, nil)
		return
	}

	now := time.Now().UTC()
	if err := wire.CheckFreshness(msg, now, s.cfg.MessageTTL); err != nil {
		s.observer.Warn("stale_message", s.fields(map[string]any{"from": from.String(), "error": err.Error()}))
		s.observer.CounterAdd("rejected_stale", 1, nil)
		return
	}

	senderEndpoint := from.String()

	switch msg.Type {
	case wire.ServerRegister:
		s.peers.Upsert(senderEndpoint, struct{}{}, now.Add(s.cfg.ServerTTL))
		s.observer.CounterAdd("server_registrations", 1, nil)

	case wire.ServerUnregister:
		s.peers.Remove(senderEndpoint)

	case wire.ClientRegister:
		// spec §9 open question: the source deliberately keys new client
		// entries off ServerTTL, not ClientTTL, even though the documented
		// defaults (ClientTTL=95s vs ServerTTL=50s) make this look
		// inconsistent. Flagged, not silently "corrected" here.
		s.clients.Upsert(senderEndpoint, clientEntry{broadcastGroup: msg.BroadcastGroup}, now.Add(s.cfg.ServerTTL))
		s.observer.CounterAdd("client_registrations", 1, nil)

	case wire.ClientUnregister:
		s.clients.Remove(senderEndpoint)

	case wire.Broadcast:
		s.handleBroadcast(msg)
	}
}

// handleBroadcast fans msg out to every client in the same group, but only
// if this server currently considers itself master (spec §4.3, §4.4). The
// retransmitted envelope is rebuilt rather than forwarded verbatim, so it
// carries a fresh timestamp and salt; sourceAddress, broadcastGroup, and
// payload are copied unchanged.
func (s *Server) handleBroadcast(msg wire.Message) {
	if !s.IsMaster() {
		return
	}

	out := wire.Message{
		Type:           wire.Broadcast,
		TimestampUTC:   time.Now().UTC(),
		SourceAddress:  msg.SourceAddress,
		BroadcastGroup: msg.BroadcastGroup,
		Payload:        msg.Payload,
	}
	frame, err := wire.Encode(out, s.cfg.SharedKey)
	if err != nil {
		s.observer.Warn("encode_fanout_failed", s.fields(map[string]any{"error": err.Error()}))
		return
	}

	clients := s.clients.Snapshot()
	fanned := 0
	for endpoint, entry := range clients {
		if entry.broadcastGroup != msg.BroadcastGroup {
			continue
		}
		addr, err := net.ResolveUDPAddr("udp4", endpoint)
		if err != nil {
			continue
		}
		if err := s.trans.SendTo(frame, addr); err != nil {
			s.observer.Warn("send_failed", s.fields(map[string]any{"dest": endpoint, "error": err.Error()}))
			continue
		}
		fanned++
	}
	s.observer.CounterAdd("fan_outs", float64(fanned), nil)
}

// backgroundLoop prunes expired entries from both tables and drives the
// self-register timer every BkTaskInterval tick (spec §4.3).
func (s *Server) backgroundLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.BkTaskInterval)
	defer ticker.Stop()

	s.broadcastToPeers(wire.ServerRegister)
	nextSelfRegister := time.Now().Add(s.cfg.ClusterKeepAliveInterval)

	for {
		select {
		case <-s.stop:
			return
		case t := <-ticker.C:
			now := t.UTC()

			evictedClients := s.clients.Prune(now)
			evictedPeers := s.peers.Prune(now)
			if len(evictedClients) > 0 {
				s.observer.CounterAdd("client_evictions", float64(len(evictedClients)), nil)
			}
			if len(evictedPeers) > 0 {
				s.observer.CounterAdd("peer_evictions", float64(len(evictedPeers)), nil)
			}

			if !t.Before(nextSelfRegister) {
				s.broadcastToPeers(wire.ServerRegister)
				nextSelfRegister = t.Add(s.cfg.ClusterKeepAliveInterval)
			}
		}
	}
}
