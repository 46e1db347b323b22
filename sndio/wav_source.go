package sndio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/audio"
)

// WavSource reads frames from a WAV stream.
type WavSource struct {
	r      io.Reader
	header WavHeader
	start  int64

	mu        sync.Mutex
	buf       []byte
	remaining uint32
	paused    bool
	eof       bool
	closed    bool
}

// NewWavSource reads the header from r. When r is an io.Seeker the source
// can be restarted from the first sample.
func NewWavSource(r io.Reader) (*WavSource, error) {
	header, err := ReadWavHeader(r)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewWavSource",
			"error":    err.Error(),
		}).Error("Failed to read wav header")
		return nil, err
	}

	s := &WavSource{r: r, header: header, remaining: header.DataSize, start: -1}
	if seeker, ok := r.(io.Seeker); ok {
		if pos, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			s.start = pos
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewWavSource",
		"spec":     header.SampleSpec().String(),
		"format":   header.Format.String(),
		"frames":   header.NumFrames(),
	}).Info("Opened wav source")
	return s, nil
}

// SampleSpec implements Device.
func (s *WavSource) SampleSpec() audio.SampleSpec {
	return s.header.SampleSpec()
}

// Header returns the header read from the stream.
func (s *WavSource) Header() WavHeader {
	return s.header
}

// Read implements Source. A frame crossing the end of the data is padded
// with silence. Read returns false once no sample is left, and a blank
// frame while paused.
func (s *WavSource) Read(frame *audio.Frame) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrDeviceClosed
	}
	if ch := int(s.header.Channels); len(frame.Samples)%ch != 0 {
		return false, fmt.Errorf("%w: %d samples for %d channels", audio.ErrFrameSize, len(frame.Samples), ch)
	}
	if s.paused {
		frame.Clear()
		return true, nil
	}
	if s.eof {
		return false, nil
	}

	align := uint32(s.header.BlockAlign())
	size := min(uint32(len(frame.Samples))*uint32(s.header.BitsPerSample/8), s.remaining/align*align)
	if cap(s.buf) < int(size) {
		s.buf = make([]byte, size)
	}
	n, err := io.ReadFull(s.r, s.buf[:size])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read wav samples: %w", err)
	}
	n -= n % int(align)
	s.remaining -= uint32(n)

	decoded := s.header.decodeSamples(frame.Samples, s.buf[:n])
	clear(frame.Samples[decoded:])
	if n < int(size) || s.remaining < align {
		s.eof = true
	}
	if decoded == 0 {
		frame.Flags = 0
		return false, nil
	}
	frame.Flags = audio.FrameNotBlank
	if decoded < len(frame.Samples) {
		frame.Flags |= audio.FrameIncomplete
	}
	return true, nil
}

// State implements Device.
func (s *WavSource) State() DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.paused:
		return DevicePaused
	case s.eof:
		return DeviceIdle
	default:
		return DeviceActive
	}
}

// Pause implements Device.
func (s *WavSource) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume implements Device.
func (s *WavSource) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDeviceClosed
	}
	s.paused = false
	return nil
}

// Restart rewinds to the first sample and resumes. It returns
// ErrNotSeekable when the underlying reader cannot seek.
func (s *WavSource) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrDeviceClosed
	}
	seeker, ok := s.r.(io.Seeker)
	if !ok || s.start < 0 {
		return ErrNotSeekable
	}
	if _, err := seeker.Seek(s.start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind wav source: %w", err)
	}
	s.remaining = s.header.DataSize
	s.eof = false
	s.paused = false

	logrus.WithFields(logrus.Fields{
		"function": "WavSource.Restart",
	}).Info("Restarted wav source")
	return nil
}

// Close closes the underlying reader if it is an io.Closer.
func (s *WavSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var (
	_ Sink   = (*WavSink)(nil)
	_ Source = (*WavSource)(nil)
)
