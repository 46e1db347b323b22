package fec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/reedsolomon"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/limits"
)

// ReedSolomonCodec is a systematic Reed-Solomon code over GF(2^8). Encoders
// are created lazily and cached per (n, k).
type ReedSolomonCodec struct {
	mu       sync.Mutex
	encoders map[[2]int]reedsolomon.Encoder
}

// NewReedSolomonCodec creates a Reed-Solomon codec.
func NewReedSolomonCodec() *ReedSolomonCodec {
	return &ReedSolomonCodec{encoders: make(map[[2]int]reedsolomon.Encoder)}
}

// MaxBlockLength implements Codec.
func (c *ReedSolomonCodec) MaxBlockLength() int {
	return limits.MaxFECBlockLength
}

func (c *ReedSolomonCodec) encoder(n, k int) (reedsolomon.Encoder, error) {
	if n < 1 || k < 1 || n+k > limits.MaxFECBlockLength {
		return nil, fmt.Errorf("%w: n=%d k=%d", ErrUnsupportedBlockSize, n, k)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := [2]int{n, k}
	if enc, ok := c.encoders[key]; ok {
		return enc, nil
	}
	enc, err := reedsolomon.New(n, k)
	if err != nil {
		return nil, fmt.Errorf("%w: n=%d k=%d: %v", ErrUnsupportedBlockSize, n, k, err)
	}
	c.encoders[key] = enc

	logrus.WithFields(logrus.Fields{
		"function": "ReedSolomonCodec.encoder",
		"n":        n,
		"k":        k,
	}).Debug("Created reed-solomon encoder")
	return enc, nil
}

// Encode implements Codec.
func (c *ReedSolomonCodec) Encode(source [][]byte, k int) ([][]byte, error) {
	n := len(source)
	enc, err := c.encoder(n, k)
	if err != nil {
		return nil, err
	}

	size := len(source[0])
	if size == 0 {
		return nil, fmt.Errorf("%w: empty source symbols", ErrSymbolSize)
	}
	shards := make([][]byte, n+k)
	for i, s := range source {
		if len(s) != size {
			return nil, fmt.Errorf("%w: symbol %d is %d bytes, expected %d", ErrSymbolSize, i, len(s), size)
		}
		shards[i] = s
	}
	for i := n; i < n+k; i++ {
		shards[i] = make([]byte, size)
	}

	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("reed-solomon encode: %w", err)
	}
	return shards[n:], nil
}

// Decode implements Codec.
func (c *ReedSolomonCodec) Decode(symbols [][]byte, n, k int) error {
	if len(symbols) != n+k {
		return fmt.Errorf("%w: %d symbols for n=%d k=%d", ErrUnsupportedBlockSize, len(symbols), n, k)
	}
	enc, err := c.encoder(n, k)
	if err != nil {
		return err
	}

	present, size := 0, -1
	for i, s := range symbols {
		if len(s) == 0 {
			continue
		}
		if size >= 0 && len(s) != size {
			return fmt.Errorf("%w: symbol %d is %d bytes, expected %d", ErrSymbolSize, i, len(s), size)
		}
		size = len(s)
		present++
	}
	if present < n {
		return fmt.Errorf("%w: %d of %d symbols present, need %d", ErrCannotReconstruct, present, n+k, n)
	}

	if err := enc.ReconstructData(symbols); err != nil {
		if errors.Is(err, reedsolomon.ErrTooFewShards) {
			return fmt.Errorf("%w: %v", ErrCannotReconstruct, err)
		}
		return fmt.Errorf("reed-solomon reconstruct: %w", err)
	}
	return nil
}
