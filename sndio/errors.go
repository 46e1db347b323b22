package sndio

import "errors"

var (
	// ErrInvalidWav indicates a stream that is not a RIFF/WAVE file or whose
	// header is inconsistent.
	ErrInvalidWav = errors.New("invalid wav stream")

	// ErrUnsupportedWavFormat indicates an encoding other than 16-bit PCM
	// or 32-bit IEEE float.
	ErrUnsupportedWavFormat = errors.New("unsupported wav sample format")

	// ErrDeviceClosed indicates use of a closed device.
	ErrDeviceClosed = errors.New("device closed")

	// ErrNotSeekable indicates a restart of a source that cannot rewind.
	ErrNotSeekable = errors.New("source cannot rewind")
)
