package wire

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef") // AES-128

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		message Message
	}{
		{
			name: "broadcast with payload",
			message: Message{
				Type:           Broadcast,
				TimestampUTC:   time.Now().UTC(),
				SourceAddress:  net.IPv4(10, 0, 0, 5),
				BroadcastGroup: 3,
				Payload:        []byte{0x01, 0x02, 0x03},
			},
		},
		{
			name: "zero-length payload",
			message: Message{
				Type:           Broadcast,
				TimestampUTC:   time.Now().UTC(),
				SourceAddress:  net.IPv4(127, 0, 0, 1),
				BroadcastGroup: 0,
				Payload:        []byte{},
			},
		},
		{
			name: "maximum payload",
			message: Message{
				Type:           Broadcast,
				TimestampUTC:   time.Now().UTC(),
				SourceAddress:  net.IPv4(192, 168, 1, 1),
				BroadcastGroup: MaxBroadcastGroup,
				Payload:        make([]byte, MaxPayloadSize),
			},
		},
		{
			name: "administrative message carries no address or group",
			message: Message{
				Type:         ClientRegister,
				TimestampUTC: time.Now().UTC(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.message, testKey)
			require.NoError(t, err)

			got, err := Decode(frame, testKey)
			require.NoError(t, err)

			assert.Equal(t, tt.message.Type, got.Type)
			assert.Equal(t, tt.message.BroadcastGroup, got.BroadcastGroup)
			require.Len(t, got.Payload, len(tt.message.Payload))
			assert.Equal(t, string(tt.message.Payload), string(got.Payload), "payload bytes")
			assert.True(t, got.TimestampUTC.Equal(tt.message.TimestampUTC))
			if tt.message.SourceAddress != nil {
				assert.True(t, got.SourceAddress.Equal(tt.message.SourceAddress))
			}
		})
	}
}

func TestEncode_RejectsOversizedPayload(t *testing.T) {
	m := Message{Type: Broadcast, Payload: make([]byte, MaxPayloadSize+1)}
	_, err := Encode(m, testKey)
	assert.Error(t, err)
}

func TestEncode_AcceptsMaximumGroup(t *testing.T) {
	m := Message{Type: Broadcast, BroadcastGroup: MaxBroadcastGroup, Payload: nil}
	_, err := Encode(m, testKey)
	assert.NoError(t, err)
}

func TestDecode_WrongKeyFails(t *testing.T) {
	otherKey := []byte("fedcba9876543210")

	frame, err := Encode(Message{Type: Broadcast, TimestampUTC: time.Now()}, testKey)
	require.NoError(t, err)

	_, err = Decode(frame, otherKey)
	assert.Error(t, err)
}

func TestDecode_FlippedBitFails(t *testing.T) {
	frame, err := Encode(Message{Type: Broadcast, TimestampUTC: time.Now()}, testKey)
	require.NoError(t, err)

	tampered := make([]byte, len(frame))
	copy(tampered, frame)
	tampered[0] ^= 0x01

	_, err = Decode(tampered, testKey)
	assert.Error(t, err)
}

func TestCheckFreshness_BoundaryAccepted(t *testing.T) {
	now := time.Now()
	ttl := 15 * time.Minute
	m := Message{TimestampUTC: now.Add(-ttl)}

	assert.NoError(t, CheckFreshness(m, now, ttl))
}

func TestCheckFreshness_OneTickBeyondRejected(t *testing.T) {
	now := time.Now()
	ttl := 15 * time.Minute
	m := Message{TimestampUTC: now.Add(-ttl - time.Millisecond)}

	err := CheckFreshness(m, now, ttl)
	require.Error(t, err)
	var stale StaleMessageError
	require.ErrorAs(t, err, &stale)
}
