package sndio

import "github.com/opd-ai/audiostream/audio"

// DeviceState is the state of an audio device.
type DeviceState int

const (
	// DeviceActive means the device is producing or consuming audio.
	DeviceActive DeviceState = iota
	// DevicePaused means the device was paused by the user.
	DevicePaused
	// DeviceIdle means the device has nothing to play.
	DeviceIdle
)

// String returns the state name.
func (s DeviceState) String() string {
	switch s {
	case DeviceActive:
		return "active"
	case DevicePaused:
		return "paused"
	case DeviceIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Device is the control surface shared by sinks and sources.
type Device interface {
	SampleSpec() audio.SampleSpec
	State() DeviceState
	Pause()
	Resume() error
	Restart() error
	Close() error
}

// Sink consumes frames.
type Sink interface {
	Device
	audio.FrameWriter
}

// Source produces frames. Read returns false when the source has nothing
// to produce, such as at the end of a file.
type Source interface {
	Device
	Read(frame *audio.Frame) (bool, error)
}
