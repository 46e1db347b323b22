package audio

import (
	"encoding/binary"
	"math"
)

// L16BytesPerSample is the width of one L16 sample on the wire.
const L16BytesPerSample = 2

// EncodeL16 writes samples as big-endian signed 16-bit PCM (RFC 3551 L16)
// and returns the number of bytes written. dst must hold 2*len(src) bytes.
func EncodeL16(dst []byte, src []float32) int {
	for i, s := range src {
		binary.BigEndian.PutUint16(dst[i*2:], uint16(FloatToInt16(s)))
	}
	return len(src) * L16BytesPerSample
}

// DecodeL16 reads big-endian signed 16-bit PCM into dst and returns the
// number of samples decoded.
func DecodeL16(dst []float32, src []byte) int {
	n := len(src) / L16BytesPerSample
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = Int16ToFloat(int16(binary.BigEndian.Uint16(src[i*2:])))
	}
	return n
}

// FloatToInt16 converts a sample in [-1, 1) to 16-bit PCM, saturating.
func FloatToInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Int16ToFloat converts a 16-bit PCM sample to [-1, 1).
func Int16ToFloat(v int16) float32 {
	return float32(v) / 32768
}
