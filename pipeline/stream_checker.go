package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/packet"
	"github.com/opd-ai/audiostream/rtp"
)

// violationCounter terminates a session after too many consecutive
// protocol violations.
type violationCounter struct {
	session     string
	max         int
	consecutive int
	total       uint64
}

func (c *violationCounter) violation(err error) {
	c.consecutive++
	c.total++
	logrus.WithFields(logrus.Fields{
		"function":    "violationCounter.violation",
		"session":     c.session,
		"consecutive": c.consecutive,
		"error":       err.Error(),
	}).Warn("Protocol violation")
}

func (c *violationCounter) reset() {
	c.consecutive = 0
}

func (c *violationCounter) err() error {
	if c.consecutive >= c.max {
		return fmt.Errorf("%w: %d in a row", ErrTooManyViolations, c.consecutive)
	}
	return nil
}

// streamChecker drops packets that break stream continuity.
type streamChecker struct {
	in        packet.Reader
	validator *rtp.Validator
	counter   *violationCounter
}

// Read implements packet.Reader.
func (c *streamChecker) Read() (*packet.Packet, error) {
	for {
		if err := c.counter.err(); err != nil {
			return nil, err
		}
		pkt, err := c.in.Read()
		if err != nil || pkt == nil {
			return nil, err
		}
		if err := c.validator.Check(pkt); err != nil {
			pkt.Release()
			c.counter.violation(err)
			continue
		}
		c.counter.reset()
		return pkt, nil
	}
}
