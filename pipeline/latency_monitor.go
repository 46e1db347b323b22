package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/packet"
)

// scaler is a resampler whose clock scaling can be tuned.
type scaler interface {
	SetScaling(scaling float64) error
}

// LatencyMonitor measures the niq latency of a session: the end timestamp of
// the newest queued packet minus the playback position. With a frequency
// estimator it steers the session resampler towards the target latency.
// Latency outside the hard bounds terminates the session while complete
// frames are flowing; starvation is left to the watchdog.
type LatencyMonitor struct {
	in           audio.FrameReader
	queue        *packet.SortedQueue
	depacketizer *Depacketizer
	resampler    scaler
	fe           *FreqEstimator

	minLatency int64
	maxLatency int64

	latency int64
	valid   bool
	grace   bool
}

// NewLatencyMonitor creates a latency monitor. resampler and fe are both nil
// when latency feedback is disabled. Latencies are in samples per channel
// at the packet rate.
func NewLatencyMonitor(in audio.FrameReader, queue *packet.SortedQueue, depacketizer *Depacketizer,
	resampler scaler, fe *FreqEstimator, target, tolerance int64,
) *LatencyMonitor {
	return &LatencyMonitor{
		in:           in,
		queue:        queue,
		depacketizer: depacketizer,
		resampler:    resampler,
		fe:           fe,
		minLatency:   target - tolerance,
		maxLatency:   target + tolerance,
	}
}

// Latency returns the last measured latency.
func (m *LatencyMonitor) Latency() (int64, bool) {
	return m.latency, m.valid
}

// Resume lets latency that grew during a pause drain without tripping the
// upper bound. The bound is enforced again once latency is back in range.
func (m *LatencyMonitor) Resume() {
	m.grace = true
}

// Read implements audio.FrameReader.
func (m *LatencyMonitor) Read(frame *audio.Frame) error {
	if err := m.in.Read(frame); err != nil {
		return err
	}
	return m.update(frame)
}

func (m *LatencyMonitor) update(frame *audio.Frame) error {
	if !m.depacketizer.Started() {
		return nil
	}
	end, ok := m.queue.LatestEnd()
	if !ok {
		return nil
	}
	latency := packet.TimestampDiff(end, m.depacketizer.Position())
	m.latency, m.valid = latency, true

	if m.fe != nil && m.resampler != nil {
		if err := m.resampler.SetScaling(m.fe.Update(latency)); err != nil {
			return err
		}
	}

	if frame.Flags&(audio.FrameNotBlank|audio.FrameIncomplete) != audio.FrameNotBlank {
		return nil
	}
	if latency >= m.minLatency && latency <= m.maxLatency {
		m.grace = false
		return nil
	}
	if m.grace && latency > m.maxLatency {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "LatencyMonitor.update",
		"latency":  latency,
		"min":      m.minLatency,
		"max":      m.maxLatency,
	}).Debug("Latency out of bounds")
	return fmt.Errorf("%w: %d not in [%d, %d]", ErrLatencyOutOfBounds, latency, m.minLatency, m.maxLatency)
}
