package packet

// SortedQueue keeps packets of one stream ordered by Packet.Compare.
// Duplicates are released on arrival. SortedQueue is not safe for
// concurrent use.
type SortedQueue struct {
	items   []*Packet
	maxSize int

	latestEnd   uint32
	latestValid bool
}

// NewSortedQueue creates a sorted queue holding at most maxSize packets.
// A maxSize of zero means unbounded.
func NewSortedQueue(maxSize int) *SortedQueue {
	return &SortedQueue{maxSize: maxSize}
}

// Write inserts a packet in order. A duplicate is released and Write
// returns nil. When the queue is full it returns ErrQueueFull and the packet
// stays with the caller.
func (q *SortedQueue) Write(pkt *Packet) error {
	// Walk back from the tail; in-order arrival is the common case.
	pos := len(q.items)
	for pos > 0 {
		c := pkt.Compare(q.items[pos-1])
		if c == 0 {
			pkt.Release()
			return nil
		}
		if c > 0 {
			break
		}
		pos--
	}

	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		return ErrQueueFull
	}

	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = pkt

	if pkt.Has(FlagRTP) && (!q.latestValid || TimestampLT(q.latestEnd, pkt.End())) {
		q.latestEnd = pkt.End()
		q.latestValid = true
	}
	return nil
}

// Read removes and returns the first packet, or nil when empty.
func (q *SortedQueue) Read() (*Packet, error) {
	if len(q.items) == 0 {
		return nil, nil
	}
	pkt := q.items[0]
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
	return pkt, nil
}

// Head returns the first packet without removing it.
func (q *SortedQueue) Head() *Packet {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Tail returns the last packet without removing it.
func (q *SortedQueue) Tail() *Packet {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[len(q.items)-1]
}

// Len returns the number of queued packets.
func (q *SortedQueue) Len() int {
	return len(q.items)
}

// LatestEnd returns the end timestamp of the newest RTP packet ever written,
// even if it has since been read.
func (q *SortedQueue) LatestEnd() (uint32, bool) {
	return q.latestEnd, q.latestValid
}

// Drain releases every queued packet.
func (q *SortedQueue) Drain() {
	for _, pkt := range q.items {
		pkt.Release()
	}
	clear(q.items)
	q.items = q.items[:0]
}
