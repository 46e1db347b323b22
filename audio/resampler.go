package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	// MinScaling and MaxScaling bound the clock scaling factor accepted by
	// SetScaling.
	MinScaling = 0.5
	MaxScaling = 2.0
)

// Resampler converts interleaved samples between two sample rates using
// linear interpolation. Input is pushed in arbitrary chunks and output is
// popped in arbitrary chunks; the resampler keeps the tail it still needs
// for interpolation.
//
// The effective conversion step is (inRate / outRate) * scaling. A scaling
// above 1 consumes input faster than real time, below 1 slower.
type Resampler struct {
	inRate   int
	outRate  int
	channels int
	scaling  float64
	step     float64
	buf      []float32
	position float64 // fractional read position in sample frames into buf
}

// NewResampler creates a resampler for the given input and output rates.
//
// Parameters:
//   - inRate: Input sample rate in Hz
//   - outRate: Output sample rate in Hz
//   - channels: Number of interleaved channels on both sides
//
// Returns:
//   - *Resampler: New resampler with scaling 1
//   - error: ErrInvalidSampleSpec if a rate or the channel count is invalid
func NewResampler(inRate, outRate, channels int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 || channels <= 0 {
		logrus.WithFields(logrus.Fields{
			"function":    "NewResampler",
			"input_rate":  inRate,
			"output_rate": outRate,
			"channels":    channels,
		}).Error("Resampler validation failed")
		return nil, fmt.Errorf("%w: input=%d output=%d channels=%d", ErrInvalidSampleSpec, inRate, outRate, channels)
	}

	r := &Resampler{
		inRate:   inRate,
		outRate:  outRate,
		channels: channels,
		scaling:  1,
	}
	r.step = float64(inRate) / float64(outRate)

	logrus.WithFields(logrus.Fields{
		"function":    "NewResampler",
		"input_rate":  inRate,
		"output_rate": outRate,
		"channels":    channels,
		"ratio":       r.step,
	}).Debug("Audio resampler created")

	return r, nil
}

// SetScaling changes the clock scaling factor applied on top of the rate
// ratio. The new value takes effect at the next output sample.
func (r *Resampler) SetScaling(scaling float64) error {
	if scaling < MinScaling || scaling > MaxScaling {
		return fmt.Errorf("%w: %f (must be %.1f..%.1f)", ErrInvalidScaling, scaling, MinScaling, MaxScaling)
	}
	r.scaling = scaling
	r.step = float64(r.inRate) / float64(r.outRate) * scaling
	return nil
}

// Scaling returns the current clock scaling factor.
func (r *Resampler) Scaling() float64 {
	return r.scaling
}

// Push appends interleaved input samples.
func (r *Resampler) Push(samples []float32) {
	r.buf = append(r.buf, samples...)
}

// Pop writes as many output samples into out as the buffered input allows
// and returns the number of interleaved samples written. The result is
// always a multiple of the channel count.
func (r *Resampler) Pop(out []float32) int {
	ch := r.channels
	have := len(r.buf) / ch
	want := len(out) / ch

	n := 0
	for n < want {
		idx := int(r.position)
		if idx+1 >= have {
			break
		}
		frac := float32(r.position - float64(idx))
		a := r.buf[idx*ch : idx*ch+ch]
		b := r.buf[(idx+1)*ch : (idx+1)*ch+ch]
		for c := 0; c < ch; c++ {
			out[n*ch+c] = a[c] + frac*(b[c]-a[c])
		}
		r.position += r.step
		n++
	}

	// Drop input frames that are entirely behind the read position.
	if drop := int(r.position); drop > 0 {
		if drop > have {
			drop = have
		}
		rest := copy(r.buf, r.buf[drop*ch:])
		r.buf = r.buf[:rest]
		r.position -= float64(drop)
	}

	return n * ch
}

// ResamplerReader pulls fixed-size chunks from an upstream reader and
// returns resampled frames.
type ResamplerReader struct {
	resampler *Resampler
	in        FrameReader
	chunk     *Frame
}

// NewResamplerReader creates a pull-based resampler. chunkSamples is the
// number of interleaved samples requested from in per upstream read.
func NewResamplerReader(in FrameReader, inSpec, outSpec SampleSpec, chunkSamples int) (*ResamplerReader, error) {
	if inSpec.Channels != outSpec.Channels {
		return nil, fmt.Errorf("%w: resampler cannot change channels (%s -> %s)", ErrInvalidSampleSpec, inSpec.Channels, outSpec.Channels)
	}
	ch := inSpec.NumChannels()
	if chunkSamples <= 0 || chunkSamples%ch != 0 {
		return nil, fmt.Errorf("%w: chunk of %d samples for %d channels", ErrFrameSize, chunkSamples, ch)
	}
	r, err := NewResampler(inSpec.Rate, outSpec.Rate, ch)
	if err != nil {
		return nil, err
	}
	return &ResamplerReader{
		resampler: r,
		in:        in,
		chunk:     NewFrame(chunkSamples),
	}, nil
}

// SetScaling forwards to the underlying resampler.
func (r *ResamplerReader) SetScaling(scaling float64) error {
	return r.resampler.SetScaling(scaling)
}

// Read implements FrameReader. The flags of every upstream chunk consumed
// during the call are merged into the frame flags.
func (r *ResamplerReader) Read(frame *Frame) error {
	var flags FrameFlags
	n := 0
	for {
		n += r.resampler.Pop(frame.Samples[n:])
		if n >= len(frame.Samples) {
			break
		}
		r.chunk.Clear()
		if err := r.in.Read(r.chunk); err != nil {
			return err
		}
		flags |= r.chunk.Flags
		r.resampler.Push(r.chunk.Samples)
	}
	frame.Flags = flags
	return nil
}

// ResamplerWriter accumulates resampled output and writes it downstream in
// frames of a fixed size.
type ResamplerWriter struct {
	resampler *Resampler
	out       FrameWriter
	frame     *Frame
	filled    int
}

// NewResamplerWriter creates a push-based resampler writing frames of
// frameSamples interleaved samples to out.
func NewResamplerWriter(out FrameWriter, inSpec, outSpec SampleSpec, frameSamples int) (*ResamplerWriter, error) {
	if inSpec.Channels != outSpec.Channels {
		return nil, fmt.Errorf("%w: resampler cannot change channels (%s -> %s)", ErrInvalidSampleSpec, inSpec.Channels, outSpec.Channels)
	}
	ch := inSpec.NumChannels()
	if frameSamples <= 0 || frameSamples%ch != 0 {
		return nil, fmt.Errorf("%w: frame of %d samples for %d channels", ErrFrameSize, frameSamples, ch)
	}
	r, err := NewResampler(inSpec.Rate, outSpec.Rate, ch)
	if err != nil {
		return nil, err
	}
	return &ResamplerWriter{
		resampler: r,
		out:       out,
		frame:     NewFrame(frameSamples),
	}, nil
}

// Write implements FrameWriter.
func (w *ResamplerWriter) Write(frame *Frame) error {
	w.resampler.Push(frame.Samples)
	w.frame.Flags |= frame.Flags
	for {
		w.filled += w.resampler.Pop(w.frame.Samples[w.filled:])
		if w.filled < len(w.frame.Samples) {
			return nil
		}
		if err := w.out.Write(w.frame); err != nil {
			return err
		}
		w.filled = 0
		w.frame.Flags = 0
	}
}
