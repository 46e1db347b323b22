package packet

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		size    int
		wantErr bool
	}{
		{"valid", 4, 128, false},
		{"zero_count", 0, 128, true},
		{"zero_size", 4, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPool(tt.count, tt.size)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPool)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.count, p.Available())
			assert.Equal(t, tt.count, p.Size())
			assert.Equal(t, tt.size, p.BufferSize())
		})
	}
}

func TestPoolExhaustion(t *testing.T) {
	p, err := NewPool(2, 16)
	require.NoError(t, err)

	a, err := p.NewPacket()
	require.NoError(t, err)
	b, err := p.NewPacket()
	require.NoError(t, err)

	_, err = p.NewPacket()
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, 0, p.Available())

	a.Release()
	assert.Equal(t, 1, p.Available())

	// Releasing twice must not free the slot twice.
	a.Release()
	assert.Equal(t, 1, p.Available())

	c, err := p.NewPacket()
	require.NoError(t, err)
	assert.Empty(t, c.Data)
	assert.Equal(t, 16, cap(c.Data))

	b.Release()
	c.Release()
	assert.Equal(t, 2, p.Available())
}

func TestPoolReusesReleasedPacket(t *testing.T) {
	p, err := NewPool(2, 16)
	require.NoError(t, err)

	a, err := p.NewPacket()
	require.NoError(t, err)
	a.Release()
	a.Release()
	assert.Equal(t, 2, p.Available())

	// The released slot comes back as the same packet, so a reference kept
	// past Release would alias the new owner.
	b, err := p.NewPacket()
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, p.Available())

	b.Release()
	assert.Equal(t, 2, p.Available())
}

func TestPoolBuffersDoNotOverlap(t *testing.T) {
	p, err := NewPool(3, 4)
	require.NoError(t, err)

	var pkts []*Packet
	for i := 0; i < 3; i++ {
		pkt, err := p.NewPacket()
		require.NoError(t, err)
		require.NoError(t, pkt.SetData([]byte{byte(i), byte(i), byte(i), byte(i)}))
		pkts = append(pkts, pkt)
	}
	for i, pkt := range pkts {
		assert.Equal(t, []byte{byte(i), byte(i), byte(i), byte(i)}, pkt.Data)
	}

	assert.ErrorIs(t, pkts[0].SetData(make([]byte, 5)), ErrBufferTooSmall)
}

func TestPoolConcurrentUse(t *testing.T) {
	p, err := NewPool(64, 32)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				pkt, err := p.NewPacket()
				if err != nil {
					continue
				}
				pkt.Release()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 64, p.Available())
}

func TestHeapPacket(t *testing.T) {
	pkt := New([]byte{1, 2, 3})
	assert.Equal(t, []byte{1, 2, 3}, pkt.Data)
	require.NoError(t, pkt.SetData(make([]byte, 100)))
	assert.Len(t, pkt.Data, 100)
	pkt.Release()
}
