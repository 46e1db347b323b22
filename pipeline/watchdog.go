package pipeline

import (
	"fmt"

	"github.com/opd-ai/audiostream/audio"
)

// Watchdog terminates a session that plays no decoded audio for too long.
// Time is counted in samples per channel of the frames passing through, so
// a session that is not read does not age.
type Watchdog struct {
	in       audio.FrameReader
	channels int
	timeout  int64

	pos        int64
	lastSignal int64
}

// NewWatchdog creates a watchdog with a timeout in samples per channel.
// A timeout of zero disables it.
func NewWatchdog(in audio.FrameReader, channels int, timeout int64) *Watchdog {
	return &Watchdog{in: in, channels: channels, timeout: timeout}
}

// Read implements audio.FrameReader. It returns ErrNoPlayback once the
// timeout is reached.
func (w *Watchdog) Read(frame *audio.Frame) error {
	if err := w.in.Read(frame); err != nil {
		return err
	}

	w.pos += int64(len(frame.Samples) / w.channels)
	if !frame.IsBlank() {
		w.lastSignal = w.pos
	}
	if w.timeout > 0 && w.pos-w.lastSignal >= w.timeout {
		return fmt.Errorf("%w: %d samples without audio", ErrNoPlayback, w.pos-w.lastSignal)
	}
	return nil
}
