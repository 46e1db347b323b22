package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/packet"
)

type recordingScaler struct {
	values []float64
}

func (s *recordingScaler) SetScaling(scaling float64) error {
	s.values = append(s.values, scaling)
	return nil
}

// monitorHarness is a sorted queue feeding a depacketizer watched by a
// latency monitor. Packets are 20 samples long.
type monitorHarness struct {
	pool    *packet.Pool
	queue   *packet.SortedQueue
	monitor *LatencyMonitor
	frame   *audio.Frame
	sn      uint16
}

func newMonitorHarness(t *testing.T, target, tolerance int64, sc scaler, fe *FreqEstimator) *monitorHarness {
	t.Helper()
	pool, err := packet.NewPool(64, 512)
	require.NoError(t, err)
	q := packet.NewSortedQueue(0)
	d := NewDepacketizer(q, stereoFormat(t))
	return &monitorHarness{
		pool:    pool,
		queue:   q,
		monitor: NewLatencyMonitor(d, q, d, sc, fe, target, tolerance),
		frame:   audio.NewFrame(20),
	}
}

func (h *monitorHarness) push(t *testing.T, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		require.NoError(t, h.queue.Write(newStampedPacket(t, h.pool, h.sn, uint32(h.sn)*20, 20)))
		h.sn++
	}
}

func TestLatencyMonitorBounds(t *testing.T) {
	t.Run("within bounds", func(t *testing.T) {
		h := newMonitorHarness(t, 100, 50, nil, nil)
		h.push(t, 6)
		require.NoError(t, h.monitor.Read(h.frame))
		latency, ok := h.monitor.Latency()
		assert.True(t, ok)
		assert.Equal(t, int64(110), latency)
	})

	t.Run("overrun", func(t *testing.T) {
		h := newMonitorHarness(t, 100, 50, nil, nil)
		h.push(t, 10)
		assert.ErrorIs(t, h.monitor.Read(h.frame), ErrLatencyOutOfBounds)
	})

	t.Run("underrun", func(t *testing.T) {
		h := newMonitorHarness(t, 100, 50, nil, nil)
		h.push(t, 2)
		assert.ErrorIs(t, h.monitor.Read(h.frame), ErrLatencyOutOfBounds)
	})

	t.Run("starvation is not checked", func(t *testing.T) {
		h := newMonitorHarness(t, 20, 20, nil, nil)
		h.push(t, 2)
		for i := 0; i < 4; i++ {
			require.NoError(t, h.monitor.Read(h.frame))
			assert.False(t, h.frame.IsBlank())
		}
		for i := 0; i < 10; i++ {
			require.NoError(t, h.monitor.Read(h.frame))
			assert.True(t, h.frame.IsBlank())
		}
	})

	t.Run("no packets yet", func(t *testing.T) {
		h := newMonitorHarness(t, 100, 50, nil, nil)
		require.NoError(t, h.monitor.Read(h.frame))
		_, ok := h.monitor.Latency()
		assert.False(t, ok)
	})
}

func TestLatencyMonitorResumeGrace(t *testing.T) {
	h := newMonitorHarness(t, 100, 50, nil, nil)
	h.push(t, 6)
	require.NoError(t, h.monitor.Read(h.frame))

	// Packets pile up as if playback had been paused.
	h.push(t, 6)
	h.monitor.Resume()
	for {
		require.NoError(t, h.monitor.Read(h.frame))
		latency, _ := h.monitor.Latency()
		if latency <= 150 {
			break
		}
	}

	// Back in range: the bound applies again.
	h.push(t, 6)
	assert.ErrorIs(t, h.monitor.Read(h.frame), ErrLatencyOutOfBounds)
}

func TestLatencyMonitorDrivesScaling(t *testing.T) {
	sc := &recordingScaler{}
	fe := NewFreqEstimator(FreqEstimatorConfig{Enable: true, P: 1e-3, I: 0, MaxScalingDelta: 0.01}, 100)
	h := newMonitorHarness(t, 100, 100, sc, fe)

	h.push(t, 8)
	require.NoError(t, h.monitor.Read(h.frame))
	require.Len(t, sc.values, 1)
	assert.Greater(t, sc.values[0], 1.0, "latency above target speeds up playback")
	assert.Equal(t, sc.values[0], fe.Scaling())
}

func TestFreqEstimator(t *testing.T) {
	cfg := FreqEstimatorConfig{Enable: true, P: 1e-4, I: 1e-6, MaxScalingDelta: 0.005}

	tests := []struct {
		name    string
		latency int64
		check   func(t *testing.T, s float64)
	}{
		{"on target", 1000, func(t *testing.T, s float64) { assert.Equal(t, 1.0, s) }},
		{"above target", 1010, func(t *testing.T, s float64) { assert.Greater(t, s, 1.0) }},
		{"below target", 990, func(t *testing.T, s float64) { assert.Less(t, s, 1.0) }},
		{"clamped high", 100000, func(t *testing.T, s float64) { assert.InDelta(t, 1.005, s, 1e-12) }},
		{"clamped low", -100000, func(t *testing.T, s float64) { assert.InDelta(t, 0.995, s, 1e-12) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := NewFreqEstimator(cfg, 1000)
			tt.check(t, fe.Update(tt.latency))
		})
	}
}

func TestFreqEstimatorAntiWindup(t *testing.T) {
	fe := NewFreqEstimator(FreqEstimatorConfig{Enable: true, P: 0, I: 1e-3, MaxScalingDelta: 0.01}, 0)

	for i := 0; i < 1000; i++ {
		fe.Update(100)
	}
	assert.InDelta(t, 1.01, fe.Scaling(), 1e-12)

	// The integral does not grow while clamped.
	assert.Less(t, fe.Update(-100), 1.01)
}
