package pipeline

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/packet"
)

// DelayedReader holds back a sorted queue until it spans the target latency,
// then passes packets through.
type DelayedReader struct {
	queue   *packet.SortedQueue
	delay   int64
	started bool
}

// NewDelayedReader creates a reader releasing packets once the queue spans
// delay samples.
func NewDelayedReader(queue *packet.SortedQueue, delay int64) *DelayedReader {
	return &DelayedReader{queue: queue, delay: delay}
}

// Started reports whether the initial delay has elapsed.
func (d *DelayedReader) Started() bool {
	return d.started
}

// Read implements packet.Reader.
func (d *DelayedReader) Read() (*packet.Packet, error) {
	if !d.started {
		head, tail := d.queue.Head(), d.queue.Tail()
		if head == nil {
			return nil, nil
		}
		span := packet.TimestampDiff(tail.End(), head.Begin())
		if span < d.delay {
			return nil, nil
		}
		d.started = true

		logrus.WithFields(logrus.Fields{
			"function": "DelayedReader.Read",
			"span":     span,
			"delay":    d.delay,
			"packets":  d.queue.Len(),
		}).Debug("Initial latency reached")
	}
	return d.queue.Read()
}
