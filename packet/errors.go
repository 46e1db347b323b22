package packet

import "errors"

// Resource exhaustion errors
var (
	// ErrPoolExhausted indicates that every buffer of a pool is in use
	ErrPoolExhausted = errors.New("packet pool exhausted")

	// ErrQueueFull indicates that a bounded queue rejected a packet
	ErrQueueFull = errors.New("packet queue full")
)

// Routing errors
var (
	// ErrNoRoute indicates that no route accepts a packet
	ErrNoRoute = errors.New("no route for packet")

	// ErrDuplicateRoute indicates a route with the same flags already exists
	ErrDuplicateRoute = errors.New("duplicate route")
)

// Packet errors
var (
	// ErrBufferTooSmall indicates a payload that does not fit the packet buffer
	ErrBufferTooSmall = errors.New("packet buffer too small")

	// ErrInvalidPool indicates a pool configured with zero buffers or zero size
	ErrInvalidPool = errors.New("invalid pool configuration")
)
