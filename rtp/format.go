package rtp

import (
	"fmt"
	"sync"

	"github.com/opd-ai/audiostream/audio"
)

// Static payload types from RFC 3551.
const (
	PayloadTypeL16Stereo uint8 = 10
	PayloadTypeL16Mono   uint8 = 11
)

// EncodingL16 is the only sample encoding supported by the pipelines.
const EncodingL16 = "L16"

// Format describes how samples are carried for one payload type.
type Format struct {
	PayloadType uint8
	Encoding    string
	SampleSpec  audio.SampleSpec
}

// bytesPerFrame returns the payload size of one sample per channel.
func (f Format) bytesPerFrame() int {
	return audio.L16BytesPerSample * f.SampleSpec.NumChannels()
}

// PayloadSize returns the payload size for samplesPerChan samples.
func (f Format) PayloadSize(samplesPerChan int) int {
	return samplesPerChan * f.bytesPerFrame()
}

// SamplesPerChan returns the number of samples per channel in a payload.
func (f Format) SamplesPerChan(payload []byte) (int, error) {
	bpf := f.bytesPerFrame()
	if len(payload)%bpf != 0 {
		return 0, fmt.Errorf("%w: %d bytes, %d bytes per frame", ErrPayloadAlignment, len(payload), bpf)
	}
	return len(payload) / bpf, nil
}

// EncodeSamples writes interleaved samples into dst and returns the number
// of bytes written.
func (f Format) EncodeSamples(dst []byte, samples []float32) int {
	return audio.EncodeL16(dst, samples)
}

// DecodeSamples reads interleaved samples from payload into dst and
// returns the number of samples decoded.
func (f Format) DecodeSamples(dst []float32, payload []byte) int {
	return audio.DecodeL16(dst, payload)
}

// FormatMap maps payload types to formats. It is built once and shared by
// every pipeline; lookups are safe for concurrent use.
type FormatMap struct {
	mu      sync.RWMutex
	formats map[uint8]Format
}

// NewFormatMap creates a format map with the static L16 payload types.
func NewFormatMap() *FormatMap {
	m := &FormatMap{formats: make(map[uint8]Format)}
	m.formats[PayloadTypeL16Stereo] = Format{
		PayloadType: PayloadTypeL16Stereo,
		Encoding:    EncodingL16,
		SampleSpec:  audio.SampleSpec{Rate: 44100, Channels: audio.ChanMaskStereo},
	}
	m.formats[PayloadTypeL16Mono] = Format{
		PayloadType: PayloadTypeL16Mono,
		Encoding:    EncodingL16,
		SampleSpec:  audio.SampleSpec{Rate: 44100, Channels: audio.ChanMaskMono},
	}
	return m
}

// Register adds a format for a dynamic payload type.
func (m *FormatMap) Register(f Format) error {
	if f.Encoding != EncodingL16 {
		return fmt.Errorf("%w: %q", ErrUnsupportedEncoding, f.Encoding)
	}
	if err := f.SampleSpec.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.formats[f.PayloadType]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicatePayloadType, f.PayloadType)
	}
	m.formats[f.PayloadType] = f
	return nil
}

// Lookup returns the format of a payload type.
func (m *FormatMap) Lookup(pt uint8) (Format, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.formats[pt]
	return f, ok
}

// FindBySpec returns the format with the given sample spec, preferring the
// lowest payload type.
func (m *FormatMap) FindBySpec(spec audio.SampleSpec) (Format, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best  Format
		found bool
	)
	for _, f := range m.formats {
		if f.SampleSpec != spec {
			continue
		}
		if !found || f.PayloadType < best.PayloadType {
			best, found = f, true
		}
	}
	return best, found
}
