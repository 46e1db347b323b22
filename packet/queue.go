package packet

import "sync"

// Reader pulls packets from a stage. Read returns (nil, nil) when no packet
// is currently available.
type Reader interface {
	Read() (*Packet, error)
}

// Writer pushes packets to a stage. On success ownership of the packet moves
// to the writer; on error it stays with the caller.
type Writer interface {
	Write(pkt *Packet) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(pkt *Packet) error

// Write implements Writer.
func (f WriterFunc) Write(pkt *Packet) error {
	return f(pkt)
}

// Queue is a goroutine-safe FIFO of packets.
type Queue struct {
	mu       sync.Mutex
	items    []*Packet
	head     int
	capacity int
}

// NewQueue creates a queue holding at most capacity packets. A capacity of
// zero means unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Write appends a packet. It returns ErrQueueFull when the queue is bounded
// and full.
func (q *Queue) Write(pkt *Packet) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.capacity > 0 && len(q.items)-q.head >= q.capacity {
		return ErrQueueFull
	}
	if q.head > 0 && q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	q.items = append(q.items, pkt)
	return nil
}

// Read removes and returns the oldest packet, or nil when empty.
func (q *Queue) Read() (*Packet, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return nil, nil
	}
	pkt := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return pkt, nil
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Drain releases every queued packet.
func (q *Queue) Drain() {
	for {
		pkt, _ := q.Read()
		if pkt == nil {
			return
		}
		pkt.Release()
	}
}
