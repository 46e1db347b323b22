package packet

import "fmt"

// Interleaver buffers a block of packets and writes them downstream in a
// fixed permuted order, so that a burst of consecutive losses on the wire
// hits packets that are far apart in the stream.
type Interleaver struct {
	out       Writer
	blockSize int
	order     []int
	buf       []*Packet
	count     int
	err       error
}

// NewInterleaver creates an interleaver for blocks of blockSize packets.
func NewInterleaver(out Writer, blockSize int) (*Interleaver, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("invalid interleaver block size %d", blockSize)
	}
	return &Interleaver{
		out:       out,
		blockSize: blockSize,
		order:     interleaveOrder(blockSize),
		buf:       make([]*Packet, blockSize),
	}, nil
}

// interleaveOrder returns a permutation of 0..n-1 that visits positions
// with a stride coprime to n close to its square root.
func interleaveOrder(n int) []int {
	stride := 1
	r := isqrt(n)
search:
	for d := 0; d < n; d++ {
		for _, s := range [2]int{r - d, r + d} {
			if s > 1 && s < n && gcd(s, n) == 1 {
				stride = s
				break search
			}
		}
	}
	order := make([]int, n)
	for i := range order {
		order[i] = (i * stride) % n
	}
	return order
}

func isqrt(n int) int {
	r := 0
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// BlockSize returns the number of packets per interleaving block.
func (i *Interleaver) BlockSize() int {
	return i.blockSize
}

// Write implements Writer. Packets are held until the block is full. The
// packet is taken once it is stored, so a downstream error while writing
// the full block is returned by the next Write or Flush, which then does
// not take its packet.
func (i *Interleaver) Write(pkt *Packet) error {
	if err := i.err; err != nil {
		i.err = nil
		return err
	}
	i.buf[i.count] = pkt
	i.count++
	if i.count < i.blockSize {
		return nil
	}
	i.err = i.flushBlock()
	return nil
}

func (i *Interleaver) flushBlock() error {
	n := i.count
	i.count = 0

	var firstErr error
	for _, idx := range i.order {
		if idx >= n {
			continue
		}
		pkt := i.buf[idx]
		i.buf[idx] = nil
		if pkt == nil {
			continue
		}
		if firstErr != nil {
			pkt.Release()
			continue
		}
		if err := i.out.Write(pkt); err != nil {
			pkt.Release()
			firstErr = err
		}
	}
	return firstErr
}

// Flush writes any partially filled block, preserving the permuted order of
// the positions that are present.
func (i *Interleaver) Flush() error {
	if err := i.err; err != nil {
		i.err = nil
		return err
	}
	if i.count == 0 {
		return nil
	}
	return i.flushBlock()
}
