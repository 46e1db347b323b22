package packet

// SeqnumDiff returns a - b for 16-bit RTP sequence numbers, accounting for
// wrap-around.
func SeqnumDiff(a, b uint16) int {
	return int(int16(a - b))
}

// SeqnumLT reports whether a precedes b.
func SeqnumLT(a, b uint16) bool {
	return SeqnumDiff(a, b) < 0
}

// TimestampDiff returns a - b for 32-bit RTP timestamps, accounting for
// wrap-around.
func TimestampDiff(a, b uint32) int64 {
	return int64(int32(a - b))
}

// TimestampLT reports whether a precedes b.
func TimestampLT(a, b uint32) bool {
	return TimestampDiff(a, b) < 0
}

// BlockNumDiff returns a - b for FEC source block numbers of the given bit
// width, accounting for wrap-around.
func BlockNumDiff(a, b uint32, bits uint) int64 {
	mask := uint32(1)<<bits - 1
	d := (a - b) & mask
	if d >= 1<<(bits-1) {
		return int64(d) - int64(1)<<bits
	}
	return int64(d)
}

// BlockNumBits returns the width of the source block number for a scheme.
func BlockNumBits(scheme FECScheme) uint {
	if scheme == FECLDPCStaircase {
		return 16
	}
	return 24
}
