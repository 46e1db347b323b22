package packet

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool is a fixed set of packets backed by one contiguous slab of buffers.
// Packets are handed out by index and returned by Packet.Release.
//
// Pool is safe for concurrent use: the network goroutine allocates packets
// while the audio goroutine releases them.
type Pool struct {
	mu      sync.Mutex
	bufSize int
	slab    []byte
	packets []Packet
	free    []int
}

// NewPool creates a pool of count packets with bufSize-byte buffers.
//
// Parameters:
//   - count: Number of packets available at once
//   - bufSize: Capacity of each packet buffer in bytes
//
// Returns:
//   - *Pool: New pool with every packet free
//   - error: ErrInvalidPool if count or bufSize is not positive
func NewPool(count, bufSize int) (*Pool, error) {
	if count <= 0 || bufSize <= 0 {
		return nil, fmt.Errorf("%w: count=%d buffer=%d", ErrInvalidPool, count, bufSize)
	}

	p := &Pool{
		bufSize: bufSize,
		slab:    make([]byte, count*bufSize),
		packets: make([]Packet, count),
		free:    make([]int, count),
	}
	for i := range p.free {
		p.free[i] = count - 1 - i
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewPool",
		"count":    count,
		"buf_size": bufSize,
	}).Debug("Created packet pool")

	return p, nil
}

// NewPacket takes a free packet with an empty Data slice whose capacity is
// the buffer size. It returns ErrPoolExhausted when none is free.
func (p *Pool) NewPacket() (*Packet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		return nil, ErrPoolExhausted
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]

	off := idx * p.bufSize
	pkt := &p.packets[idx]
	*pkt = Packet{
		Data:  p.slab[off : off : off+p.bufSize],
		pool:  p,
		index: idx,
	}
	return pkt, nil
}

// BufferSize returns the capacity of every packet buffer.
func (p *Pool) BufferSize() int {
	return p.bufSize
}

// Available returns the number of free packets.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Size returns the total number of packets.
func (p *Pool) Size() int {
	return len(p.packets)
}

func (p *Pool) put(idx int) {
	p.mu.Lock()
	p.free = append(p.free, idx)
	p.mu.Unlock()
}
