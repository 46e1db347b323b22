package audio

// FrameFlags describe the content of a frame produced by the receiver.
type FrameFlags uint8

const (
	// FrameNotBlank is set when the frame contains at least one decoded sample.
	FrameNotBlank FrameFlags = 1 << iota
	// FrameIncomplete is set when part of the frame had to be filled with silence.
	FrameIncomplete
	// FramePacketDrops is set when late or broken packets were dropped while
	// producing the frame.
	FramePacketDrops
)

// Frame is a fixed-length buffer of interleaved samples.
type Frame struct {
	Samples []float32
	Flags   FrameFlags
}

// NewFrame allocates a zeroed frame holding n interleaved samples.
func NewFrame(n int) *Frame {
	return &Frame{Samples: make([]float32, n)}
}

// Clear zeroes the samples and resets the flags.
func (f *Frame) Clear() {
	clear(f.Samples)
	f.Flags = 0
}

// IsBlank reports whether the frame carries no decoded signal.
func (f *Frame) IsBlank() bool {
	return f.Flags&FrameNotBlank == 0
}

// FrameReader pulls frames from an upstream stage. Read always fills the
// whole frame; it returns an error only on a hard failure.
type FrameReader interface {
	Read(frame *Frame) error
}

// FrameWriter pushes frames to a downstream stage.
type FrameWriter interface {
	Write(frame *Frame) error
}
