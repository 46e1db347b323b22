package sndio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/opd-ai/audiostream/audio"
)

// WavFormat is the audio_format field of the fmt chunk.
type WavFormat uint16

const (
	// WavFormatPCM is integer PCM. Only 16-bit samples are supported.
	WavFormatPCM WavFormat = 1
	// WavFormatFloat is 32-bit IEEE float.
	WavFormatFloat WavFormat = 3
)

// WavHeaderSize is the size of the canonical header written by WavSink.
const WavHeaderSize = 44

// String returns the format name.
func (f WavFormat) String() string {
	switch f {
	case WavFormatPCM:
		return "pcm16"
	case WavFormatFloat:
		return "float32"
	default:
		return fmt.Sprintf("format(%d)", uint16(f))
	}
}

func (f WavFormat) bitsPerSample() (uint16, error) {
	switch f {
	case WavFormatPCM:
		return 16, nil
	case WavFormatFloat:
		return 32, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedWavFormat, f)
	}
}

// WavHeader describes a WAV stream. Every multi-byte field is little endian
// on disk and chunk ids are stored as their ASCII bytes.
type WavHeader struct {
	Format        WavFormat
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	// DataSize is the size of the data chunk in bytes.
	DataSize uint32
}

// NewWavHeader returns the header of an empty stream of spec samples.
func NewWavHeader(spec audio.SampleSpec, format WavFormat) (WavHeader, error) {
	if err := spec.Validate(); err != nil {
		return WavHeader{}, err
	}
	bits, err := format.bitsPerSample()
	if err != nil {
		return WavHeader{}, err
	}
	return WavHeader{
		Format:        format,
		Channels:      uint16(spec.NumChannels()),
		SampleRate:    uint32(spec.Rate),
		BitsPerSample: bits,
	}, nil
}

// BlockAlign returns the size of one sample of every channel in bytes.
func (h WavHeader) BlockAlign() uint16 {
	return h.Channels * (h.BitsPerSample / 8)
}

// ByteRate returns the number of data bytes per second.
func (h WavHeader) ByteRate() uint32 {
	return h.SampleRate * uint32(h.BlockAlign())
}

// NumFrames returns the number of samples per channel in the data chunk.
func (h WavHeader) NumFrames() int {
	if h.BlockAlign() == 0 {
		return 0
	}
	return int(h.DataSize / uint32(h.BlockAlign()))
}

// SampleSpec returns the spec of the samples. One and two channels map to
// mono and stereo; wider files take the first positions of the mask.
func (h WavHeader) SampleSpec() audio.SampleSpec {
	var mask audio.ChannelMask
	switch h.Channels {
	case 1:
		mask = audio.ChanMaskMono
	case 2:
		mask = audio.ChanMaskStereo
	default:
		mask = audio.ChannelMask(1<<h.Channels - 1)
	}
	return audio.SampleSpec{Rate: int(h.SampleRate), Channels: mask}
}

// MarshalBinary encodes the canonical 44-byte header.
func (h WavHeader) MarshalBinary() ([]byte, error) {
	if _, err := h.Format.bitsPerSample(); err != nil {
		return nil, err
	}
	b := make([]byte, WavHeaderSize)
	le := binary.LittleEndian

	copy(b[0:], "RIFF")
	le.PutUint32(b[4:], 36+h.DataSize)
	copy(b[8:], "WAVE")
	copy(b[12:], "fmt ")
	le.PutUint32(b[16:], 16)
	le.PutUint16(b[20:], uint16(h.Format))
	le.PutUint16(b[22:], h.Channels)
	le.PutUint32(b[24:], h.SampleRate)
	le.PutUint32(b[28:], h.ByteRate())
	le.PutUint16(b[32:], h.BlockAlign())
	le.PutUint16(b[34:], h.BitsPerSample)
	copy(b[36:], "data")
	le.PutUint32(b[40:], h.DataSize)
	return b, nil
}

// ReadWavHeader reads chunks from r up to the start of the data chunk.
// Chunks other than fmt and data are skipped.
func ReadWavHeader(r io.Reader) (WavHeader, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return WavHeader{}, fmt.Errorf("%w: riff header: %v", ErrInvalidWav, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WavHeader{}, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrInvalidWav)
	}

	var h WavHeader
	var haveFmt bool
	le := binary.LittleEndian
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return WavHeader{}, fmt.Errorf("%w: chunk header: %v", ErrInvalidWav, err)
		}
		id, size := string(chunk[0:4]), le.Uint32(chunk[4:])

		switch id {
		case "fmt ":
			if size < 16 {
				return WavHeader{}, fmt.Errorf("%w: fmt chunk of %d bytes", ErrInvalidWav, size)
			}
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, body); err != nil {
				return WavHeader{}, fmt.Errorf("%w: fmt chunk: %v", ErrInvalidWav, err)
			}
			h.Format = WavFormat(le.Uint16(body[0:]))
			h.Channels = le.Uint16(body[2:])
			h.SampleRate = le.Uint32(body[4:])
			h.BitsPerSample = le.Uint16(body[14:])
			haveFmt = true

		case "data":
			if !haveFmt {
				return WavHeader{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWav)
			}
			h.DataSize = size
			return h, h.validate()

		default:
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return WavHeader{}, fmt.Errorf("%w: chunk %q: %v", ErrInvalidWav, id, err)
			}
		}
	}
}

func (h WavHeader) validate() error {
	bits, err := h.Format.bitsPerSample()
	if err != nil {
		return err
	}
	if h.BitsPerSample != bits {
		return fmt.Errorf("%w: %s with %d bits", ErrUnsupportedWavFormat, h.Format, h.BitsPerSample)
	}
	if h.Channels == 0 || h.SampleRate == 0 {
		return fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidWav, h.Channels, h.SampleRate)
	}
	return nil
}

// encodeSamples writes src in the header's sample format and returns the
// number of bytes written.
func (h WavHeader) encodeSamples(dst []byte, src []float32) int {
	le := binary.LittleEndian
	if h.Format == WavFormatFloat {
		for i, s := range src {
			le.PutUint32(dst[i*4:], math.Float32bits(s))
		}
		return len(src) * 4
	}
	for i, s := range src {
		le.PutUint16(dst[i*2:], uint16(audio.FloatToInt16(s)))
	}
	return len(src) * 2
}

// decodeSamples reads whole samples from src into dst and returns their
// number.
func (h WavHeader) decodeSamples(dst []float32, src []byte) int {
	le := binary.LittleEndian
	width := int(h.BitsPerSample / 8)
	n := min(len(src)/width, len(dst))
	for i := 0; i < n; i++ {
		if h.Format == WavFormatFloat {
			dst[i] = math.Float32frombits(le.Uint32(src[i*4:]))
		} else {
			dst[i] = audio.Int16ToFloat(int16(le.Uint16(src[i*2:])))
		}
	}
	return n
}
