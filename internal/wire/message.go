// Package wire implements the sealed datagram format shared by every
// broadcast client and server: a fixed-layout envelope, encrypted under a
// key shared by all participants, carrying a freshness timestamp so stale
// or tampered frames can be rejected without ever being interpreted.
package wire

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// MessageType identifies the purpose of an envelope on the wire. Any stable
// disjoint assignment is acceptable provided all peers agree; these values
// match the ones documented for this overlay.
type MessageType uint8

const (
	ClientRegister   MessageType = 1
	ClientUnregister MessageType = 2
	Broadcast        MessageType = 3
	ServerRegister   MessageType = 4
	ServerUnregister MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case ClientRegister:
		return "ClientRegister"
	case ClientUnregister:
		return "ClientUnregister"
	case Broadcast:
		return "Broadcast"
	case ServerRegister:
		return "ServerRegister"
	case ServerUnregister:
		return "ServerUnregister"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

const (
	// Magic begins every decrypted envelope. A frame that decrypts without
	// error but does not begin with Magic was sealed under a different key
	// (or isn't one of ours) and is rejected as InvalidMessage.
	Magic uint32 = 0x7BB1AA21

	// MaxPayloadSize is the largest payload a Broadcast message may carry;
	// the 16-bit length field on the wire cannot express more.
	MaxPayloadSize = 65535

	// headerSize is magic(4) + timestamp(8) + sourceAddress(4) + type(1) +
	// broadcastGroup(1) + payloadLength(2).
	headerSize = 4 + 8 + 4 + 1 + 1 + 2

	// saltSize is the trailing freshness salt appended after the payload.
	saltSize = 4

	// MaxEnvelopeSize is the largest plaintext envelope (header + maximum
	// payload + salt) that may ever be constructed. Transports must size
	// their receive buffers to at least this so no valid datagram is
	// truncated.
	MaxEnvelopeSize = headerSize + MaxPayloadSize + saltSize
)

// MaxBroadcastGroup is the highest legal BroadcastGroup value (8 bits).
const MaxBroadcastGroup = 255

// Message is the decoded, immutable value passed by copy between the wire
// format and application code. Administrative messages (everything but
// Broadcast) carry a zero SourceAddress, a zero BroadcastGroup, and an empty
// Payload.
type Message struct {
	TimestampUTC   time.Time
	SourceAddress  net.IP
	Payload        []byte
	Type           MessageType
	BroadcastGroup uint8
}

// Encode seals m into the encrypted wire representation under key. It
// refuses to construct frames whose payload exceeds MaxPayloadSize or whose
// broadcast group exceeds MaxBroadcastGroup; both are ConfigError-class
// mistakes by the caller, not wire conditions, so they are reported
// directly rather than wrapped as InvalidMessage.
func Encode(m Message, key []byte) ([]byte, error) {
	if len(m.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("wire: payload length %d exceeds maximum %d", len(m.Payload), MaxPayloadSize)
	}
	if int(m.BroadcastGroup) > MaxBroadcastGroup {
		return nil, fmt.Errorf("wire: broadcast group %d exceeds maximum %d", m.BroadcastGroup, MaxBroadcastGroup)
	}

	var srcOctets [4]byte
	if ip4 := m.SourceAddress.To4(); ip4 != nil {
		copy(srcOctets[:], ip4)
	} else if m.SourceAddress != nil {
		return nil, fmt.Errorf("wire: source address %s is not IPv4", m.SourceAddress)
	}

	buf := make([]byte, 0, headerSize+len(m.Payload)+saltSize)
	var tmp [8]byte

	binary.LittleEndian.PutUint32(tmp[:4], Magic)
	buf = append(buf, tmp[:4]...)

	binary.LittleEndian.PutUint64(tmp[:8], uint64(m.TimestampUTC.UnixNano()))
	buf = append(buf, tmp[:8]...)

	buf = append(buf, srcOctets[:]...)
	buf = append(buf, byte(m.Type), m.BroadcastGroup)

	binary.LittleEndian.PutUint16(tmp[:2], uint16(len(m.Payload)))
	buf = append(buf, tmp[:2]...)
	buf = append(buf, m.Payload...)

	salt, err := freshSalt()
	if err != nil {
		return nil, fmt.Errorf("wire: generating salt: %w", err)
	}
	buf = append(buf, salt[:]...)

	ciphertext, err := seal(buf, key)
	if err != nil {
		return nil, fmt.Errorf("wire: sealing envelope: %w", err)
	}
	return ciphertext, nil
}

// Decode opens an encrypted frame and validates it as a well-formed
// envelope. It does not apply the freshness check (see CheckFreshness) so
// callers can log both clocks before deciding to drop the message.
//
// Decode returns InvalidMessageError whenever decryption, the magic check,
// or a length mismatch fails — these are indistinguishable on the wire and
// are reported identically so a tampering attempt and an unrelated key
// cannot be told apart by an attacker probing the service.
func Decode(frame []byte, key []byte) (Message, error) {
	plaintext, err := open(frame, key)
	if err != nil {
		return Message{}, InvalidMessageError{Reason: "decryption failed"}
	}
	if len(plaintext) < headerSize+saltSize {
		return Message{}, InvalidMessageError{Reason: "envelope too short"}
	}

	if binary.LittleEndian.Uint32(plaintext[0:4]) != Magic {
		return Message{}, InvalidMessageError{Reason: "magic mismatch"}
	}

	ts := int64(binary.LittleEndian.Uint64(plaintext[4:12]))
	srcOctets := plaintext[12:16]
	msgType := MessageType(plaintext[16])
	group := plaintext[17]
	payloadLen := int(binary.LittleEndian.Uint16(plaintext[18:20]))

	if len(plaintext) != headerSize+payloadLen+saltSize {
		return Message{}, InvalidMessageError{Reason: "payload length mismatch"}
	}

	payload := make([]byte, payloadLen)
	copy(payload, plaintext[headerSize:headerSize+payloadLen])

	return Message{
		Type:           msgType,
		TimestampUTC:   time.Unix(0, ts).UTC(),
		SourceAddress:  net.IPv4(srcOctets[0], srcOctets[1], srcOctets[2], srcOctets[3]),
		BroadcastGroup: group,
		Payload:        payload,
	}, nil
}

// CheckFreshness reports whether m's timestamp falls within ttl of now in
// either direction. A message exactly ttl old is accepted; one tick beyond
// is rejected.
func CheckFreshness(m Message, now time.Time, ttl time.Duration) error {
	delta := now.Sub(m.TimestampUTC)
	if delta < 0 {
		delta = -delta
	}
	if delta > ttl {
		return StaleMessageError{
			SenderClock:   m.TimestampUTC,
			ReceiverClock: now,
			TTL:           ttl,
		}
	}
	return nil
}
