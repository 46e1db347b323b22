package sndio

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/audio"
)

// WavSink writes frames to a WAV stream. The header is written on creation
// and rewritten with the final sizes on Close.
type WavSink struct {
	w      io.WriteSeeker
	header WavHeader

	mu     sync.Mutex
	buf    []byte
	paused bool
	closed bool
}

// NewWavSink writes an empty header to w and returns a sink for spec
// samples stored as format.
//
// Parameters:
//   - w: Destination, usually an *os.File; closed by Close if it is an io.Closer
//   - spec: Sample spec of written frames
//   - format: Sample encoding on disk
//
// Returns:
//   - *WavSink: Sink positioned at the start of the data chunk
//   - error: Invalid spec, unsupported format or write error
func NewWavSink(w io.WriteSeeker, spec audio.SampleSpec, format WavFormat) (*WavSink, error) {
	header, err := NewWavHeader(spec, format)
	if err != nil {
		return nil, err
	}
	s := &WavSink{w: w, header: header}
	if err := s.writeHeader(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewWavSink",
		"spec":     spec.String(),
		"format":   format.String(),
	}).Info("Opened wav sink")
	return s, nil
}

func (s *WavSink) writeHeader() error {
	b, err := s.header.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := s.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind wav sink: %w", err)
	}
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	_, err = s.w.Seek(0, io.SeekEnd)
	return err
}

// SampleSpec implements Device.
func (s *WavSink) SampleSpec() audio.SampleSpec {
	return s.header.SampleSpec()
}

// Header returns the header describing the data written so far.
func (s *WavSink) Header() WavHeader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header
}

// Write implements audio.FrameWriter. Frames written while paused are
// discarded.
func (s *WavSink) Write(frame *audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrDeviceClosed
	}
	if ch := int(s.header.Channels); len(frame.Samples)%ch != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", audio.ErrFrameSize, len(frame.Samples), ch)
	}
	if s.paused {
		return nil
	}

	size := len(frame.Samples) * int(s.header.BitsPerSample/8)
	if cap(s.buf) < size {
		s.buf = make([]byte, size)
	}
	n := s.header.encodeSamples(s.buf[:size], frame.Samples)
	if _, err := s.w.Write(s.buf[:n]); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "WavSink.Write",
			"error":    err.Error(),
		}).Error("Failed to write samples")
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	s.header.DataSize += uint32(n)
	return nil
}

// State implements Device.
func (s *WavSink) State() DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return DevicePaused
	}
	return DeviceActive
}

// Pause implements Device.
func (s *WavSink) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume implements Device.
func (s *WavSink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDeviceClosed
	}
	s.paused = false
	return nil
}

// Restart implements Device. Written data is kept.
func (s *WavSink) Restart() error {
	return s.Resume()
}

// Close finalizes the header and closes the destination.
func (s *WavSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.writeHeader()
	if c, ok := s.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "WavSink.Close",
		"frames":   s.header.NumFrames(),
	}).Info("Closed wav sink")
	return err
}
