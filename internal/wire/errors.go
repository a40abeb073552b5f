package wire

import (
	"fmt"
	"time"
)

// InvalidMessageError is returned when a frame fails decryption or its
// magic check. Policy (spec §7): drop silently with a logged warning — the
// "logged" half is the caller's job via internal/observability, not this
// package's.
type InvalidMessageError struct {
	Reason string
}

func (e InvalidMessageError) Error() string {
	return fmt.Sprintf("wire: invalid message: %s", e.Reason)
}

// StaleMessageError is returned when a message's timestamp falls outside
// the configured MessageTTL. Both clocks are carried on the error so a
// caller can log them together (spec §7, scenario 5).
type StaleMessageError struct {
	SenderClock   time.Time
	ReceiverClock time.Time
	TTL           time.Duration
}

func (e StaleMessageError) Error() string {
	return fmt.Sprintf("wire: stale message: sender=%s receiver=%s ttl=%s",
		e.SenderClock.Format(time.RFC3339Nano), e.ReceiverClock.Format(time.RFC3339Nano), e.TTL)
}
