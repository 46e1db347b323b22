package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxPacketSize is the size of every buffer handed out by the packet pool.
	// It must fit the largest RTP packet plus the FEC payload ID.
	MaxPacketSize = 2048

	// RTPHeaderSize is the size of an RTP header without CSRCs or extensions.
	RTPHeaderSize = 12

	// FECPayloadIDSize is the size of the FEC payload ID carried by source
	// packets (as a footer) and repair packets (as a header).
	FECPayloadIDSize = 8

	// FECLengthPrefixSize is the size of the length prefix stored in front of
	// every source symbol so that padded symbols can be trimmed after recovery.
	FECLengthPrefixSize = 2

	// MaxPayloadSize is the largest audio payload that still leaves room for
	// the RTP header, the FEC payload ID and the symbol length prefix.
	MaxPayloadSize = MaxPacketSize - RTPHeaderSize - FECPayloadIDSize - FECLengthPrefixSize

	// MaxChannels is the widest channel mask supported by a sample spec.
	MaxChannels = 32

	// MaxFECBlockLength is the maximum number of symbols (source + repair)
	// in one block of a GF(2^8) erasure code.
	MaxFECBlockLength = 255

	// MaxSampleRate bounds configured sample rates.
	MaxSampleRate = 768000
)

var (
	// ErrPacketEmpty indicates an empty packet was provided
	ErrPacketEmpty = errors.New("empty packet")

	// ErrPacketTooLarge indicates a packet exceeds the maximum size
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrTooManyChannels indicates a channel count outside 1..MaxChannels
	ErrTooManyChannels = errors.New("invalid channel count")

	// ErrBlockTooLarge indicates a FEC block exceeding the code limit
	ErrBlockTooLarge = errors.New("fec block too large")

	// ErrBlockEmpty indicates a FEC block without source symbols
	ErrBlockEmpty = errors.New("fec block has no source packets")
)

// ValidatePacketSize validates a datagram against MaxPacketSize.
func ValidatePacketSize(data []byte) error {
	return ValidateSize(data, MaxPacketSize)
}

// ValidateSize validates a buffer against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateSize(data []byte, maxSize int) error {
	if len(data) == 0 {
		return ErrPacketEmpty
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPacketTooLarge, len(data), maxSize)
	}
	return nil
}

// ValidateChannelCount checks that n is within 1..MaxChannels.
func ValidateChannelCount(n int) error {
	if n < 1 || n > MaxChannels {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrTooManyChannels, n, MaxChannels)
	}
	return nil
}

// ValidateBlockLength checks an (N, K) pair against the given block limit.
func ValidateBlockLength(nSource, nRepair, maxLength int) error {
	if nSource < 1 {
		return ErrBlockEmpty
	}
	if nRepair < 0 {
		return fmt.Errorf("%w: negative repair count %d", ErrBlockTooLarge, nRepair)
	}
	if nSource+nRepair > maxLength {
		return fmt.Errorf("%w: %d+%d exceeds limit %d", ErrBlockTooLarge, nSource, nRepair, maxLength)
	}
	return nil
}
