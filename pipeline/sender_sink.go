package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/rtp"
	"github.com/opd-ai/audiostream/sndio"
)

// SenderSink encodes frames into packets and sends them to every slot.
//
// Write is meant to be called from one audio thread. Slots and endpoints
// may be created from another goroutine.
type SenderSink struct {
	cfg    SenderConfig
	deps   Dependencies
	format rtp.Format

	mu     sync.Mutex
	slots  []*SenderSlot
	paused bool
	closed bool
}

// NewSenderSink creates a sender.
//
// Parameters:
//   - cfg: Sender configuration
//   - deps: Shared format map, fec registry and packet pool
//
// Returns:
//   - *SenderSink: New sender without slots
//   - error: Configuration error
func NewSenderSink(cfg SenderConfig, deps Dependencies) (*SenderSink, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewSenderSink",
			"error":    err.Error(),
		}).Error("Invalid sender config")
		return nil, err
	}

	format, ok := deps.Formats.Lookup(cfg.PayloadType)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPayloadType, cfg.PayloadType)
	}
	spp := format.SampleSpec.SamplesPerChan(cfg.PacketLength)
	if spp < 1 {
		return nil, fmt.Errorf("%w: packet length %v is shorter than one sample", ErrInvalidConfig, cfg.PacketLength)
	}
	if size := rtp.HeaderSize + format.PayloadSize(spp); size > deps.Pool.BufferSize() {
		return nil, fmt.Errorf("%w: packet of %d bytes exceeds buffer of %d", ErrInvalidConfig, size, deps.Pool.BufferSize())
	}

	logrus.WithFields(logrus.Fields{
		"function":           "NewSenderSink",
		"input_spec":         cfg.InputSpec.String(),
		"payload_type":       cfg.PayloadType,
		"samples_per_packet": spp,
	}).Info("Created sender sink")

	return &SenderSink{cfg: cfg, deps: deps, format: format}, nil
}

// SampleSpec returns the sample spec expected by Write.
func (s *SenderSink) SampleSpec() audio.SampleSpec {
	return s.cfg.InputSpec
}

// CreateSlot adds a slot for a new destination.
func (s *SenderSink) CreateSlot() (*SenderSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	slot := newSenderSlot(s.cfg, s.deps, s.format)
	s.slots = append(s.slots, slot)

	logrus.WithFields(logrus.Fields{
		"function": "SenderSink.CreateSlot",
		"slot":     slot.ID(),
	}).Info("Created sender slot")
	return slot, nil
}

// Write implements audio.FrameWriter. The frame is fully encoded into every
// ready slot, or an error is returned.
func (s *SenderSink) Write(frame *audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if ch := s.cfg.InputSpec.NumChannels(); len(frame.Samples) == 0 || len(frame.Samples)%ch != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", audio.ErrFrameSize, len(frame.Samples), ch)
	}
	if s.paused {
		return nil
	}

	for _, slot := range s.slots {
		if err := slot.write(frame); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SenderSink.Write",
				"slot":     slot.ID(),
				"error":    err.Error(),
			}).Error("Failed to write frame")
			return err
		}
	}
	return nil
}

// State implements sndio.Device.
func (s *SenderSink) State() sndio.DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return sndio.DevicePaused
	}
	return sndio.DeviceActive
}

// Pause stops sending; frames written while paused are discarded.
func (s *SenderSink) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume continues sending.
func (s *SenderSink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.paused = false
	return nil
}

// Restart resumes the sink. Streams continue with the same identifiers.
func (s *SenderSink) Restart() error {
	return s.Resume()
}

// Flush emits partially filled packets and interleaving blocks.
func (s *SenderSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, slot := range s.slots {
		if err := slot.flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes every slot and stops accepting frames.
func (s *SenderSink) Close() error {
	err := s.Flush()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, slot := range s.slots {
		slot.close()
	}

	logrus.WithFields(logrus.Fields{
		"function": "SenderSink.Close",
		"slots":    len(s.slots),
	}).Info("Closed sender sink")
	return err
}
