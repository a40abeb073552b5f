// Package config holds the plain value structs the broadcast client and
// server are constructed from. Loading these from a file, environment, or
// flag set is explicitly the embedding application's concern (spec §1); this
// package only defines the shape and validates it once, at construction
// time.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Defaults mirror spec §6.
const (
	DefaultMessageTTL              = 15 * time.Minute
	DefaultBkTaskInterval          = 1 * time.Second
	DefaultKeepAliveInterval       = 30 * time.Second
	DefaultServerResolveInterval   = 5 * time.Minute
	DefaultClusterKeepAliveInterval = 15 * time.Second
	DefaultServerTTL               = 50 * time.Second
	DefaultClientTTL               = 95 * time.Second
)

// Error reports a malformed configuration at construction time (spec §7:
// ConfigError — "empty server list, non-positive TTLs, malformed endpoint
// spec. Policy: fail construction.").
type Error struct {
	Field  string
	Reason string
}

func (e Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Client configures a Broadcast Client.
type Client struct {
	// NetworkBinding is the local UDP address to bind. An unspecified
	// address (zero IP) selects any interface; an unspecified port (0)
	// selects an ephemeral one, as clients normally want.
	NetworkBinding *net.UDPAddr

	// SharedKey is the symmetric key material all participants encrypt
	// under. Must be 16, 24, or 32 bytes (AES-128/192/256).
	SharedKey []byte

	// Servers lists the target server endpoint specs (host:port or
	// address:port) this client broadcasts to and registers with.
	Servers []string

	// SocketBufferSize is an OS send/receive buffer hint; 0 leaves the OS
	// default. Never affects protocol semantics.
	SocketBufferSize int

	// MessageTTL is the accepted freshness window applied to every
	// inbound message.
	MessageTTL time.Duration

	// BkTaskInterval is the granularity of the background ticker driving
	// the keep-alive and DNS-resolution timers.
	BkTaskInterval time.Duration

	// KeepAliveInterval is the ClientRegister cadence.
	KeepAliveInterval time.Duration

	// ServerResolveInterval is the DNS re-resolution cadence for Servers.
	ServerResolveInterval time.Duration

	// BroadcastGroup is this client's group (0-255, naturally bounded by
	// the type).
	BroadcastGroup uint8
}

// WithDefaults returns a copy of c with every zero-valued tunable filled in
// from the documented defaults (spec §6). Required fields (SharedKey,
// Servers) are left untouched; Validate still rejects them if missing.
func (c Client) WithDefaults() Client {
	if c.MessageTTL == 0 {
		c.MessageTTL = DefaultMessageTTL
	}
	if c.BkTaskInterval == 0 {
		c.BkTaskInterval = DefaultBkTaskInterval
	}
	if c.KeepAliveInterval == 0 {
		c.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.ServerResolveInterval == 0 {
		c.ServerResolveInterval = DefaultServerResolveInterval
	}
	if c.NetworkBinding == nil {
		c.NetworkBinding = &net.UDPAddr{}
	}
	return c
}

// Validate fails construction on empty server lists, non-positive
// intervals/TTLs, a bad key size, or a malformed endpoint spec.
func (c Client) Validate() error {
	if len(c.Servers) == 0 {
		return Error{Field: "Servers", Reason: "must list at least one server endpoint"}
	}
	if !validKeySize(c.SharedKey) {
		return Error{Field: "SharedKey", Reason: "must be 16, 24, or 32 bytes"}
	}
	if c.MessageTTL <= 0 {
		return Error{Field: "MessageTTL", Reason: "must be positive"}
	}
	if c.BkTaskInterval <= 0 {
		return Error{Field: "BkTaskInterval", Reason: "must be positive"}
	}
	if c.KeepAliveInterval <= 0 {
		return Error{Field: "KeepAliveInterval", Reason: "must be positive"}
	}
	if c.ServerResolveInterval <= 0 {
		return Error{Field: "ServerResolveInterval", Reason: "must be positive"}
	}
	for _, spec := range c.Servers {
		if err := validateEndpointSpec(spec); err != nil {
			return Error{Field: "Servers", Reason: fmt.Sprintf("%q: %v", spec, err)}
		}
	}
	return nil
}

// Server configures a Broadcast Server.
type Server struct {
	// NetworkBinding is the UDP endpoint this server listens on.
	NetworkBinding *net.UDPAddr

	// SharedKey is the symmetric key material (see Client.SharedKey).
	SharedKey []byte

	// Servers is this server's static peer list. Self must appear in it
	// (spec §4.4); if NetworkBinding is unspecified, the loopback address
	// is substituted for matching purposes (see server.selfEndpoint).
	Servers []string

	SocketBufferSize int

	MessageTTL time.Duration

	// BkTaskInterval is the granularity of the background prune/election/
	// self-register ticker.
	BkTaskInterval time.Duration

	ClusterKeepAliveInterval time.Duration
	ServerTTL                time.Duration
	ClientTTL                time.Duration
}

// WithDefaults returns a copy of s with zero-valued tunables filled in.
func (s Server) WithDefaults() Server {
	if s.MessageTTL == 0 {
		s.MessageTTL = DefaultMessageTTL
	}
	if s.BkTaskInterval == 0 {
		s.BkTaskInterval = DefaultBkTaskInterval
	}
	if s.ClusterKeepAliveInterval == 0 {
		s.ClusterKeepAliveInterval = DefaultClusterKeepAliveInterval
	}
	if s.ServerTTL == 0 {
		s.ServerTTL = DefaultServerTTL
	}
	if s.ClientTTL == 0 {
		s.ClientTTL = DefaultClientTTL
	}
	return s
}

// Validate fails construction on empty peer lists, non-positive
// TTLs/intervals, a bad key size, or a malformed endpoint spec.
func (s Server) Validate() error {
	if s.NetworkBinding == nil {
		return Error{Field: "NetworkBinding", Reason: "must be set"}
	}
	if len(s.Servers) == 0 {
		return Error{Field: "Servers", Reason: "must list at least one peer endpoint (including self)"}
	}
	if !validKeySize(s.SharedKey) {
		return Error{Field: "SharedKey", Reason: "must be 16, 24, or 32 bytes"}
	}
	if s.MessageTTL <= 0 {
		return Error{Field: "MessageTTL", Reason: "must be positive"}
	}
	if s.BkTaskInterval <= 0 {
		return Error{Field: "BkTaskInterval", Reason: "must be positive"}
	}
	if s.ClusterKeepAliveInterval <= 0 {
		return Error{Field: "ClusterKeepAliveInterval", Reason: "must be positive"}
	}
	if s.ServerTTL <= 0 {
		return Error{Field: "ServerTTL", Reason: "must be positive"}
	}
	if s.ClientTTL <= 0 {
		return Error{Field: "ClientTTL", Reason: "must be positive"}
	}
	for _, spec := range s.Servers {
		if err := validateEndpointSpec(spec); err != nil {
			return Error{Field: "Servers", Reason: fmt.Sprintf("%q: %v", spec, err)}
		}
	}
	return nil
}

func validKeySize(key []byte) bool {
	switch len(key) {
	case 16, 24, 32:
		return true
	default:
		return false
	}
}

// validateEndpointSpec checks that spec has the host:port or address:port
// shape without performing DNS resolution (that happens periodically at
// runtime, not at construction).
func validateEndpointSpec(spec string) error {
	host, port, err := net.SplitHostPort(spec)
	if err != nil {
		return err
	}
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("empty host")
	}
	if strings.TrimSpace(port) == "" {
		return fmt.Errorf("empty port")
	}
	return nil
}
