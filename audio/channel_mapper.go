package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ChannelMapper converts interleaved samples between two channel masks
// without changing the number of sample frames.
//
// Conversion rules:
//   - identical masks are copied as is
//   - mono input is duplicated into every output channel
//   - mono output is the average of every input channel
//   - otherwise each output channel present in the input is copied and the
//     remaining output channels are silent
type ChannelMapper struct {
	inMask  ChannelMask
	outMask ChannelMask
	inCh    int
	outCh   int
	// route[o] is the input channel index feeding output channel o, or -1.
	route []int
}

// NewChannelMapper creates a mapper from inMask to outMask.
func NewChannelMapper(inMask, outMask ChannelMask) (*ChannelMapper, error) {
	if inMask == 0 || outMask == 0 {
		return nil, fmt.Errorf("%w: empty channel mask (in=%s, out=%s)", ErrInvalidSampleSpec, inMask, outMask)
	}

	m := &ChannelMapper{
		inMask:  inMask,
		outMask: outMask,
		inCh:    inMask.NumChannels(),
		outCh:   outMask.NumChannels(),
	}

	m.route = make([]int, 0, m.outCh)
	for bit := 0; bit < 32; bit++ {
		pos := ChannelMask(1) << uint(bit)
		if outMask&pos == 0 {
			continue
		}
		m.route = append(m.route, channelIndex(inMask, pos))
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewChannelMapper",
		"in_mask":  inMask.String(),
		"out_mask": outMask.String(),
	}).Debug("Created channel mapper")

	return m, nil
}

// channelIndex returns the interleaved index of pos within mask, or -1.
func channelIndex(mask, pos ChannelMask) int {
	if mask&pos == 0 {
		return -1
	}
	return (mask & (pos - 1)).NumChannels()
}

// InChannels returns the number of input channels.
func (m *ChannelMapper) InChannels() int { return m.inCh }

// OutChannels returns the number of output channels.
func (m *ChannelMapper) OutChannels() int { return m.outCh }

// Map converts in into out. Both slices must hold the same number of
// sample frames for their respective channel counts.
func (m *ChannelMapper) Map(in, out []float32) error {
	if len(in)%m.inCh != 0 || len(out)%m.outCh != 0 || len(in)/m.inCh != len(out)/m.outCh {
		return fmt.Errorf("%w: in=%d/%d out=%d/%d", ErrFrameSize, len(in), m.inCh, len(out), m.outCh)
	}
	frames := len(in) / m.inCh

	switch {
	case m.inMask == m.outMask:
		copy(out, in)
	case m.inCh == 1:
		for f := 0; f < frames; f++ {
			s := in[f]
			for c := 0; c < m.outCh; c++ {
				out[f*m.outCh+c] = s
			}
		}
	case m.outCh == 1:
		for f := 0; f < frames; f++ {
			var sum float32
			for c := 0; c < m.inCh; c++ {
				sum += in[f*m.inCh+c]
			}
			out[f] = sum / float32(m.inCh)
		}
	default:
		for f := 0; f < frames; f++ {
			for c, src := range m.route {
				if src < 0 {
					out[f*m.outCh+c] = 0
					continue
				}
				out[f*m.outCh+c] = in[f*m.inCh+src]
			}
		}
	}
	return nil
}

// ChannelMapperReader reads frames from an upstream reader in the input
// channel layout and returns them in the output layout.
type ChannelMapperReader struct {
	mapper *ChannelMapper
	in     FrameReader
	buf    *Frame
}

// NewChannelMapperReader wraps in with a channel mapper.
func NewChannelMapperReader(in FrameReader, inMask, outMask ChannelMask) (*ChannelMapperReader, error) {
	m, err := NewChannelMapper(inMask, outMask)
	if err != nil {
		return nil, err
	}
	return &ChannelMapperReader{mapper: m, in: in, buf: NewFrame(0)}, nil
}

// Read implements FrameReader.
func (r *ChannelMapperReader) Read(frame *Frame) error {
	if len(frame.Samples)%r.mapper.outCh != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrFrameSize, len(frame.Samples), r.mapper.outCh)
	}
	need := len(frame.Samples) / r.mapper.outCh * r.mapper.inCh
	if cap(r.buf.Samples) < need {
		r.buf.Samples = make([]float32, need)
	}
	r.buf.Samples = r.buf.Samples[:need]
	r.buf.Flags = 0

	if err := r.in.Read(r.buf); err != nil {
		return err
	}
	frame.Flags = r.buf.Flags
	return r.mapper.Map(r.buf.Samples, frame.Samples)
}

// ChannelMapperWriter converts frames to the output layout before writing
// them downstream.
type ChannelMapperWriter struct {
	mapper *ChannelMapper
	out    FrameWriter
	buf    *Frame
}

// NewChannelMapperWriter wraps out with a channel mapper.
func NewChannelMapperWriter(out FrameWriter, inMask, outMask ChannelMask) (*ChannelMapperWriter, error) {
	m, err := NewChannelMapper(inMask, outMask)
	if err != nil {
		return nil, err
	}
	return &ChannelMapperWriter{mapper: m, out: out, buf: NewFrame(0)}, nil
}

// Write implements FrameWriter.
func (w *ChannelMapperWriter) Write(frame *Frame) error {
	if len(frame.Samples)%w.mapper.inCh != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrFrameSize, len(frame.Samples), w.mapper.inCh)
	}
	need := len(frame.Samples) / w.mapper.inCh * w.mapper.outCh
	if cap(w.buf.Samples) < need {
		w.buf.Samples = make([]float32, need)
	}
	w.buf.Samples = w.buf.Samples[:need]
	w.buf.Flags = frame.Flags

	if err := w.mapper.Map(frame.Samples, w.buf.Samples); err != nil {
		return err
	}
	return w.out.Write(w.buf)
}
