package fec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audiostream/packet"
)

func makeSymbols(rng *rand.Rand, n, size int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = make([]byte, size)
		rng.Read(out[i])
	}
	return out
}

func cloneSymbols(in [][]byte) [][]byte {
	out := make([][]byte, len(in))
	for i, s := range in {
		out[i] = append([]byte(nil), s...)
	}
	return out
}

// With at most K of N+K symbols missing every source symbol is restored
// exactly; with more missing the codec reports it cannot reconstruct.
func TestReedSolomonRecoveryBound(t *testing.T) {
	const n, k, size = 20, 10, 170

	codec := NewReedSolomonCodec()
	rng := rand.New(rand.NewSource(1))

	for missing := 0; missing <= k+3; missing++ {
		source := makeSymbols(rng, n, size)
		repair, err := codec.Encode(cloneSymbols(source), k)
		require.NoError(t, err)
		require.Len(t, repair, k)

		symbols := append(cloneSymbols(source), cloneSymbols(repair)...)
		for _, idx := range rng.Perm(n + k)[:missing] {
			symbols[idx] = nil
		}

		err = codec.Decode(symbols, n, k)
		if missing > k {
			assert.ErrorIs(t, err, ErrCannotReconstruct, "missing=%d", missing)
			continue
		}
		require.NoError(t, err, "missing=%d", missing)
		for i := 0; i < n; i++ {
			assert.True(t, bytes.Equal(source[i], symbols[i]), "missing=%d symbol=%d", missing, i)
		}
	}
}

func TestReedSolomonAllSourceMissing(t *testing.T) {
	codec := NewReedSolomonCodec()
	rng := rand.New(rand.NewSource(2))

	source := makeSymbols(rng, 4, 32)
	repair, err := codec.Encode(cloneSymbols(source), 4)
	require.NoError(t, err)

	symbols := make([][]byte, 8)
	copy(symbols[4:], repair)
	require.NoError(t, codec.Decode(symbols, 4, 4))
	assert.Equal(t, source, symbols[:4])
}

func TestReedSolomonErrors(t *testing.T) {
	codec := NewReedSolomonCodec()

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name: "block_too_large",
			run: func() error {
				_, err := codec.Encode(makeSymbols(rand.New(rand.NewSource(3)), 200, 4), 100)
				return err
			},
			wantErr: ErrUnsupportedBlockSize,
		},
		{
			name: "zero_repair",
			run: func() error {
				_, err := codec.Encode(makeSymbols(rand.New(rand.NewSource(3)), 2, 4), 0)
				return err
			},
			wantErr: ErrUnsupportedBlockSize,
		},
		{
			name: "unequal_symbols",
			run: func() error {
				_, err := codec.Encode([][]byte{{1, 2}, {1, 2, 3}}, 1)
				return err
			},
			wantErr: ErrSymbolSize,
		},
		{
			name: "wrong_symbol_count",
			run: func() error {
				return codec.Decode(make([][]byte, 3), 2, 2)
			},
			wantErr: ErrUnsupportedBlockSize,
		},
		{
			name: "decode_unequal",
			run: func() error {
				return codec.Decode([][]byte{{1, 2}, {1, 2, 3}, nil}, 2, 1)
			},
			wantErr: ErrSymbolSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.wantErr)
		})
	}
}

func TestReedSolomonCachesEncoders(t *testing.T) {
	codec := NewReedSolomonCodec()
	a, err := codec.encoder(10, 5)
	require.NoError(t, err)
	b, err := codec.encoder(10, 5)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Len(t, codec.encoders, 1)
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	assert.True(t, r.Supports(packet.FECReedSolomonM8))
	assert.False(t, r.Supports(packet.FECLDPCStaircase))

	_, err := r.Get(packet.FECLDPCStaircase)
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	assert.ErrorIs(t, r.Register(packet.FECReedSolomonM8, NewReedSolomonCodec()), ErrSchemeRegistered)
	assert.ErrorIs(t, r.Register(packet.FECNone, NewReedSolomonCodec()), ErrUnsupportedScheme)

	require.NoError(t, r.Register(packet.FECLDPCStaircase, NewReedSolomonCodec()))
	assert.True(t, r.Supports(packet.FECLDPCStaircase))

	assert.False(t, NewRegistry().Supports(packet.FECReedSolomonM8))
}
