package pipeline

import "errors"

// Configuration errors.
var (
	// ErrInvalidConfig indicates a config value outside its valid range.
	ErrInvalidConfig = errors.New("invalid pipeline config")

	// ErrUnknownPayloadType indicates a payload type missing from the format map.
	ErrUnknownPayloadType = errors.New("unknown payload type")

	// ErrMissingDependency indicates a nil format map, registry or pool.
	ErrMissingDependency = errors.New("missing pipeline dependency")
)

// Slot and endpoint errors.
var (
	// ErrEndpointExists indicates a second endpoint on the same interface of a slot.
	ErrEndpointExists = errors.New("endpoint already exists for interface")

	// ErrSchemeMismatch indicates source and repair endpoints with different fec schemes.
	ErrSchemeMismatch = errors.New("fec scheme mismatch between endpoints")

	// ErrNoDestination indicates a sender endpoint without a destination writer.
	ErrNoDestination = errors.New("endpoint has no destination writer")

	// ErrSlotFull indicates a new sender beyond the session limit of a slot.
	ErrSlotFull = errors.New("slot session limit reached")

	// ErrSlotStarted indicates an endpoint added after the slot began streaming.
	ErrSlotStarted = errors.New("slot already streaming")
)

// Lifecycle errors.
var (
	// ErrClosed indicates use of a closed sink or source.
	ErrClosed = errors.New("pipeline closed")

	// ErrSessionTerminated indicates a read from a terminated session.
	ErrSessionTerminated = errors.New("session terminated")
)

// Session termination reasons. A session stage returns one of these to stop
// the session; they never leave ReceiverSource.Read.
var (
	// ErrNoPlayback indicates no decoded audio for the no-playback timeout.
	ErrNoPlayback = errors.New("no playback timeout")

	// ErrLatencyOutOfBounds indicates latency outside the tolerated range.
	ErrLatencyOutOfBounds = errors.New("latency out of bounds")

	// ErrTooManyViolations indicates too many consecutive protocol violations.
	ErrTooManyViolations = errors.New("too many protocol violations")
)

func isTermination(err error) bool {
	return errors.Is(err, ErrNoPlayback) ||
		errors.Is(err, ErrLatencyOutOfBounds) ||
		errors.Is(err, ErrTooManyViolations)
}
