package rtp

import "errors"

// Format errors
var (
	// ErrUnknownPayloadType indicates a payload type missing from the format map
	ErrUnknownPayloadType = errors.New("unknown payload type")

	// ErrDuplicatePayloadType indicates a payload type registered twice
	ErrDuplicatePayloadType = errors.New("payload type already registered")

	// ErrUnsupportedEncoding indicates a format with an encoding other than L16
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
)

// Parse errors
var (
	// ErrMalformedPacket indicates bytes that are not a valid RTP packet
	ErrMalformedPacket = errors.New("malformed rtp packet")

	// ErrPayloadAlignment indicates a payload that is not a whole number of sample frames
	ErrPayloadAlignment = errors.New("payload not aligned to sample frames")
)

// Validation errors
var (
	// ErrSourceIDChanged indicates a packet with an unexpected SSRC
	ErrSourceIDChanged = errors.New("source id changed")

	// ErrPayloadTypeChanged indicates a packet with an unexpected payload type
	ErrPayloadTypeChanged = errors.New("payload type changed")

	// ErrSeqnumJump indicates a sequence number jump above the limit
	ErrSeqnumJump = errors.New("sequence number jump")

	// ErrTimestampJump indicates a timestamp jump above the limit
	ErrTimestampJump = errors.New("timestamp jump")
)
