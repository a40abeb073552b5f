package config

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validKey() []byte { return []byte("0123456789abcdef") }

func TestClient_Validate(t *testing.T) {
	tests := []struct {
		name    string
		client  Client
		wantErr bool
	}{
		{
			name: "valid",
			client: Client{
				Servers:   []string{"127.0.0.1:7530"},
				SharedKey: validKey(),
			}.WithDefaults(),
		},
		{
			name:    "empty servers",
			client:  Client{SharedKey: validKey()}.WithDefaults(),
			wantErr: true,
		},
		{
			name:    "bad key size",
			client:  Client{Servers: []string{"127.0.0.1:7530"}, SharedKey: []byte("short")}.WithDefaults(),
			wantErr: true,
		},
		{
			name: "malformed endpoint spec",
			client: Client{
				Servers:   []string{"not-an-endpoint"},
				SharedKey: validKey(),
			}.WithDefaults(),
			wantErr: true,
		},
		{
			name: "non-positive TTL",
			client: Client{
				Servers:    []string{"127.0.0.1:7530"},
				SharedKey:  validKey(),
				MessageTTL: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.client.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_WithDefaults(t *testing.T) {
	c := Client{Servers: []string{"a:1"}, SharedKey: validKey()}.WithDefaults()
	assert.Equal(t, DefaultMessageTTL, c.MessageTTL)
	assert.Equal(t, DefaultKeepAliveInterval, c.KeepAliveInterval)
	assert.Equal(t, DefaultServerResolveInterval, c.ServerResolveInterval)
}

func TestServer_Validate(t *testing.T) {
	self := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 7530}

	tests := []struct {
		name    string
		server  Server
		wantErr bool
	}{
		{
			name: "valid",
			server: Server{
				NetworkBinding: self,
				Servers:        []string{"10.0.0.1:7530"},
				SharedKey:      validKey(),
			}.WithDefaults(),
		},
		{
			name: "missing binding",
			server: Server{
				Servers:   []string{"10.0.0.1:7530"},
				SharedKey: validKey(),
			}.WithDefaults(),
			wantErr: true,
		},
		{
			name: "non-positive server ttl",
			server: Server{
				NetworkBinding: self,
				Servers:        []string{"10.0.0.1:7530"},
				SharedKey:      validKey(),
				ServerTTL:      -1 * time.Second,
			}.WithDefaults(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.server.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServer_DefaultTTLsAreMultipleOfKeepAlive(t *testing.T) {
	// spec §4.3: each TTL must be a small multiple of its keep-alive so a
	// single dropped datagram never evicts a live participant.
	assert.GreaterOrEqual(t, int64(DefaultServerTTL), int64(2*DefaultClusterKeepAliveInterval))
	assert.GreaterOrEqual(t, int64(DefaultClientTTL), int64(2*DefaultKeepAliveInterval))
}
