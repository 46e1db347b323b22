package audio

import "errors"

var (
	// ErrInvalidSampleSpec indicates a zero or out-of-range rate or channel mask.
	ErrInvalidSampleSpec = errors.New("invalid sample spec")

	// ErrFrameSize indicates a frame whose length is not a whole number of
	// sample frames for the expected channel count.
	ErrFrameSize = errors.New("frame size is not a multiple of channel count")

	// ErrInvalidScaling indicates a resampler scaling factor outside its bounds.
	ErrInvalidScaling = errors.New("invalid resampler scaling")
)
