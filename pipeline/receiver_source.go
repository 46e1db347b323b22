package pipeline

import (
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/sndio"
)

// errRestarted terminates sessions dropped by Restart.
var errRestarted = fmt.Errorf("%w: receiver restarted", ErrSessionTerminated)

// ReceiverSource turns packets from every slot into one mixed audio stream.
//
// Read is meant to be called from one audio thread. Slots, endpoints and
// device state may be used from other goroutines; endpoint writers are the
// network-facing entry points.
type ReceiverSource struct {
	cfg  ReceiverConfig
	deps Dependencies

	// readMu serializes Read with Restart and Close.
	readMu sync.Mutex
	tmp    *audio.Frame

	mu       sync.Mutex
	slots    []*ReceiverSlot
	paused   bool
	closed   bool
	hadAudio bool
}

// NewReceiverSource creates a receiver.
//
// Parameters:
//   - cfg: Receiver configuration
//   - deps: Shared format map, fec registry and packet pool
//
// Returns:
//   - *ReceiverSource: New receiver without slots
//   - error: Configuration error
func NewReceiverSource(cfg ReceiverConfig, deps Dependencies) (*ReceiverSource, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewReceiverSource",
			"error":    err.Error(),
		}).Error("Invalid receiver config")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":       "NewReceiverSource",
		"output_spec":    cfg.OutputSpec.String(),
		"target_latency": cfg.Session.TargetLatency,
		"timeout":        cfg.Session.NoPlaybackTimeout,
		"fe_enable":      cfg.Session.FreqEstimator.Enable,
	}).Info("Created receiver source")

	return &ReceiverSource{cfg: cfg, deps: deps, tmp: audio.NewFrame(0)}, nil
}

// SampleSpec returns the sample spec of frames returned by Read.
func (r *ReceiverSource) SampleSpec() audio.SampleSpec {
	return r.cfg.OutputSpec
}

// CreateSlot adds a slot for a new peer.
func (r *ReceiverSource) CreateSlot() (*ReceiverSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	slot, err := newReceiverSlot(r.cfg, r.deps)
	if err != nil {
		return nil, err
	}
	r.slots = append(r.slots, slot)

	logrus.WithFields(logrus.Fields{
		"function": "ReceiverSource.CreateSlot",
		"slot":     slot.ID(),
	}).Info("Created receiver slot")
	return slot, nil
}

func (r *ReceiverSource) snapshot() ([]*ReceiverSlot, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.slots), r.paused, r.closed
}

// NumSessions returns the number of sessions over every slot.
func (r *ReceiverSource) NumSessions() int {
	slots, _, _ := r.snapshot()
	n := 0
	for _, slot := range slots {
		n += slot.NumSessions()
	}
	return n
}

// Read fills frame with the sum of every active session. Packets are
// routed first and terminated sessions removed last. It returns false only
// when no session exists and none has ever produced audio; a frame with
// sessions but no decoded signal is zero-filled and returns true.
func (r *ReceiverSource) Read(frame *audio.Frame) (bool, error) {
	r.readMu.Lock()
	defer r.readMu.Unlock()

	slots, paused, closed := r.snapshot()
	if closed {
		return false, ErrClosed
	}
	if ch := r.cfg.OutputSpec.NumChannels(); len(frame.Samples) == 0 || len(frame.Samples)%ch != 0 {
		return false, fmt.Errorf("%w: %d samples for %d channels", audio.ErrFrameSize, len(frame.Samples), ch)
	}

	if cap(r.tmp.Samples) < len(frame.Samples) {
		r.tmp.Samples = make([]float32, len(frame.Samples))
	}
	r.tmp.Samples = r.tmp.Samples[:len(frame.Samples)]

	for _, slot := range slots {
		slot.refresh()
	}

	frame.Clear()
	if !paused {
		for _, slot := range slots {
			if err := slot.mix(frame, r.tmp); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "ReceiverSource.Read",
					"slot":     slot.ID(),
					"error":    err.Error(),
				}).Error("Failed to read sessions")
				return false, err
			}
		}
	}

	n := 0
	for _, slot := range slots {
		slot.reap()
		n += slot.NumSessions()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !frame.IsBlank() {
		r.hadAudio = true
	}
	return n > 0 || r.hadAudio, nil
}

// State implements sndio.Device.
func (r *ReceiverSource) State() sndio.DeviceState {
	slots, paused, _ := r.snapshot()
	if paused {
		return sndio.DevicePaused
	}
	for _, slot := range slots {
		if slot.NumSessions() > 0 {
			return sndio.DeviceActive
		}
	}
	return sndio.DeviceIdle
}

// Pause stops playback of every session. Packets keep being buffered.
func (r *ReceiverSource) Pause() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "ReceiverSource.Pause",
	}).Info("Receiver paused")
}

// Resume continues playback.
func (r *ReceiverSource) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.paused = false
	return nil
}

// Restart drops every session and resumes playback.
func (r *ReceiverSource) Restart() error {
	r.readMu.Lock()
	defer r.readMu.Unlock()

	slots, _, closed := r.snapshot()
	if closed {
		return ErrClosed
	}
	for _, slot := range slots {
		slot.terminateAll(errRestarted)
	}

	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "ReceiverSource.Restart",
		"slots":    len(slots),
	}).Info("Receiver restarted")
	return nil
}

// Close drops every session and releases queued packets.
func (r *ReceiverSource) Close() error {
	r.readMu.Lock()
	defer r.readMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	slots := r.slots
	r.mu.Unlock()

	for _, slot := range slots {
		slot.close()
	}

	logrus.WithFields(logrus.Fields{
		"function": "ReceiverSource.Close",
		"slots":    len(slots),
	}).Info("Closed receiver source")
	return nil
}
