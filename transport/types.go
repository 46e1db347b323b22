package transport

import (
	"errors"
	"time"
)

var (
	// ErrNoDestination indicates a packet without a UDP destination address.
	ErrNoDestination = errors.New("packet has no destination address")

	// ErrTransportClosed indicates use of a closed transport.
	ErrTransportClosed = errors.New("transport closed")
)

// ReceiverConfig tunes the receive loop.
type ReceiverConfig struct {
	// PollInterval bounds how long a blocked read waits before the loop
	// checks for cancellation.
	PollInterval time.Duration
}

// DefaultReceiverConfig returns a 100ms poll interval.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{PollInterval: 100 * time.Millisecond}
}

// Stats counts datagrams handled by a sender or a receiver.
type Stats struct {
	Packets uint64
	Bytes   uint64
	// Dropped counts datagrams lost locally: pool exhaustion or a full
	// endpoint queue on receive, failed writes on send.
	Dropped uint64
}
