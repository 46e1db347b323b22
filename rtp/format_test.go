package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audiostream/audio"
)

func TestFormatMapDefaults(t *testing.T) {
	m := NewFormatMap()

	stereo, ok := m.Lookup(PayloadTypeL16Stereo)
	require.True(t, ok)
	assert.Equal(t, audio.SampleSpec{Rate: 44100, Channels: audio.ChanMaskStereo}, stereo.SampleSpec)

	mono, ok := m.Lookup(PayloadTypeL16Mono)
	require.True(t, ok)
	assert.Equal(t, 1, mono.SampleSpec.NumChannels())

	_, ok = m.Lookup(96)
	assert.False(t, ok)

	f, ok := m.FindBySpec(audio.SampleSpec{Rate: 44100, Channels: audio.ChanMaskMono})
	require.True(t, ok)
	assert.Equal(t, PayloadTypeL16Mono, f.PayloadType)
}

func TestFormatMapRegister(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr error
	}{
		{
			name: "dynamic_48k",
			format: Format{
				PayloadType: 96,
				Encoding:    EncodingL16,
				SampleSpec:  audio.SampleSpec{Rate: 48000, Channels: audio.ChanMaskStereo},
			},
		},
		{
			name: "duplicate",
			format: Format{
				PayloadType: PayloadTypeL16Mono,
				Encoding:    EncodingL16,
				SampleSpec:  audio.SampleSpec{Rate: 48000, Channels: audio.ChanMaskMono},
			},
			wantErr: ErrDuplicatePayloadType,
		},
		{
			name: "opus",
			format: Format{
				PayloadType: 97,
				Encoding:    "opus",
				SampleSpec:  audio.SampleSpec{Rate: 48000, Channels: audio.ChanMaskStereo},
			},
			wantErr: ErrUnsupportedEncoding,
		},
		{
			name: "bad_spec",
			format: Format{
				PayloadType: 98,
				Encoding:    EncodingL16,
			},
			wantErr: audio.ErrInvalidSampleSpec,
		},
	}

	m := NewFormatMap()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Register(tt.format)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			got, ok := m.Lookup(tt.format.PayloadType)
			require.True(t, ok)
			assert.Equal(t, tt.format, got)
		})
	}
}

func TestFormatSamplesPerChan(t *testing.T) {
	m := NewFormatMap()
	f, _ := m.Lookup(PayloadTypeL16Stereo)

	assert.Equal(t, 160, f.PayloadSize(40))

	n, err := f.SamplesPerChan(make([]byte, 160))
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	_, err = f.SamplesPerChan(make([]byte, 161))
	assert.ErrorIs(t, err, ErrPayloadAlignment)
}
