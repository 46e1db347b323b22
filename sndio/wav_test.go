package sndio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audiostream/audio"
)

var stereo = audio.SampleSpec{Rate: 44100, Channels: audio.ChanMaskStereo}

func TestWavHeaderLayout(t *testing.T) {
	h, err := NewWavHeader(stereo, WavFormatFloat)
	require.NoError(t, err)
	h.DataSize = 800

	b, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, WavHeaderSize)

	le := binary.LittleEndian
	assert.Equal(t, "RIFF", string(b[0:4]))
	assert.Equal(t, uint32(836), le.Uint32(b[4:]))
	assert.Equal(t, "WAVE", string(b[8:12]))
	assert.Equal(t, "fmt ", string(b[12:16]))
	assert.Equal(t, uint32(16), le.Uint32(b[16:]))
	assert.Equal(t, uint16(3), le.Uint16(b[20:]))
	assert.Equal(t, uint16(2), le.Uint16(b[22:]))
	assert.Equal(t, uint32(44100), le.Uint32(b[24:]))
	assert.Equal(t, uint32(44100*8), le.Uint32(b[28:]))
	assert.Equal(t, uint16(8), le.Uint16(b[32:]))
	assert.Equal(t, uint16(32), le.Uint16(b[34:]))
	assert.Equal(t, "data", string(b[36:40]))
	assert.Equal(t, uint32(800), le.Uint32(b[40:]))

	parsed, err := ReadWavHeader(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.Equal(t, 100, parsed.NumFrames())
	assert.Equal(t, stereo, parsed.SampleSpec())
}

func TestReadWavHeaderSkipsUnknownChunks(t *testing.T) {
	h, err := NewWavHeader(audio.SampleSpec{Rate: 8000, Channels: audio.ChanMaskMono}, WavFormatPCM)
	require.NoError(t, err)
	b, err := h.MarshalBinary()
	require.NoError(t, err)

	// Insert an odd-sized LIST chunk, padded to even length, before fmt.
	var buf bytes.Buffer
	buf.Write(b[:12])
	buf.WriteString("LIST")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(3)))
	buf.Write([]byte{1, 2, 3, 0})
	buf.Write(b[12:])

	parsed, err := ReadWavHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.Equal(t, audio.ChanMaskMono, parsed.SampleSpec().Channels)
}

func TestReadWavHeaderErrors(t *testing.T) {
	valid, err := NewWavHeader(stereo, WavFormatPCM)
	require.NoError(t, err)
	good, err := valid.MarshalBinary()
	require.NoError(t, err)

	patch := func(off int, v uint16) []byte {
		b := bytes.Clone(good)
		binary.LittleEndian.PutUint16(b[off:], v)
		return b
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrInvalidWav},
		{"not riff", append([]byte("RIFX"), good[4:]...), ErrInvalidWav},
		{"truncated", good[:30], ErrInvalidWav},
		{"adpcm", patch(20, 2), ErrUnsupportedWavFormat},
		{"pcm 24 bit", patch(34, 24), ErrUnsupportedWavFormat},
		{"no channels", patch(22, 0), ErrInvalidWav},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadWavHeader(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = NewWavHeader(stereo, WavFormat(7))
	assert.ErrorIs(t, err, ErrUnsupportedWavFormat)
}

// writeWav writes frames of 10 samples per channel through a WavSink and
// returns the file contents.
func writeWav(t *testing.T, format WavFormat, frames [][]float32) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	sink, err := NewWavSink(f, stereo, format)
	require.NoError(t, err)
	for _, samples := range frames {
		require.NoError(t, sink.Write(&audio.Frame{Samples: samples}))
	}
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func ramp(n int, offset float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = offset + float32(i)/64
	}
	return s
}

func TestWavSinkSourceRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		format WavFormat
		delta  float64
	}{
		{"float32", WavFormatFloat, 0},
		{"pcm16", WavFormatPCM, 1.0 / 32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := [][]float32{ramp(20, -0.5), ramp(20, 0), ramp(20, 0.25)}
			data := writeWav(t, tt.format, frames)

			source, err := NewWavSource(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, stereo, source.SampleSpec())
			assert.Equal(t, 30, source.Header().NumFrames())
			assert.Equal(t, tt.format, source.Header().Format)

			frame := audio.NewFrame(20)
			for _, want := range frames {
				ok, err := source.Read(frame)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, audio.FrameNotBlank, frame.Flags)
				assert.InDeltaSlice(t, want, frame.Samples, tt.delta)
			}

			ok, err := source.Read(frame)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, DeviceIdle, source.State())
			require.NoError(t, source.Close())
		})
	}
}

func TestWavSourcePartialFrameAndRestart(t *testing.T) {
	data := writeWav(t, WavFormatFloat, [][]float32{ramp(30, 0)})
	source, err := NewWavSource(bytes.NewReader(data))
	require.NoError(t, err)

	frame := audio.NewFrame(20)
	ok, err := source.Read(frame)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = source.Read(frame)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, audio.FrameNotBlank|audio.FrameIncomplete, frame.Flags)
	assert.Equal(t, ramp(30, 0)[20:], frame.Samples[:10])
	assert.Equal(t, make([]float32, 10), frame.Samples[10:])

	ok, err = source.Read(frame)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, source.Restart())
	assert.Equal(t, DeviceActive, source.State())
	ok, err = source.Read(frame)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ramp(30, 0)[:20], frame.Samples)
}

func TestWavSourceStates(t *testing.T) {
	data := writeWav(t, WavFormatPCM, [][]float32{ramp(20, 0)})

	// Wrapping hides the Seeker of bytes.Reader.
	source, err := NewWavSource(bytes.NewBuffer(data))
	require.NoError(t, err)
	assert.ErrorIs(t, source.Restart(), ErrNotSeekable)

	source.Pause()
	assert.Equal(t, DevicePaused, source.State())
	frame := audio.NewFrame(20)
	ok, err := source.Read(frame)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, frame.IsBlank())

	require.NoError(t, source.Resume())
	ok, err = source.Read(frame)
	require.NoError(t, err)
	assert.True(t, ok, "nothing was consumed while paused")
	assert.False(t, frame.IsBlank())

	_, err = source.Read(audio.NewFrame(3))
	assert.ErrorIs(t, err, audio.ErrFrameSize)

	require.NoError(t, source.Close())
	require.NoError(t, source.Close())
	_, err = source.Read(frame)
	assert.ErrorIs(t, err, ErrDeviceClosed)
	assert.ErrorIs(t, source.Resume(), ErrDeviceClosed)
}

func TestWavSinkStates(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	require.NoError(t, err)
	sink, err := NewWavSink(f, stereo, WavFormatFloat)
	require.NoError(t, err)
	assert.Equal(t, stereo, sink.SampleSpec())

	frame := &audio.Frame{Samples: ramp(20, 0)}
	sink.Pause()
	assert.Equal(t, DevicePaused, sink.State())
	require.NoError(t, sink.Write(frame))
	assert.Zero(t, sink.Header().DataSize, "paused sink discards frames")

	require.NoError(t, sink.Restart())
	assert.Equal(t, DeviceActive, sink.State())
	require.NoError(t, sink.Write(frame))
	assert.Equal(t, uint32(80), sink.Header().DataSize)

	assert.ErrorIs(t, sink.Write(audio.NewFrame(3)), audio.ErrFrameSize)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Write(frame), ErrDeviceClosed)
	assert.ErrorIs(t, sink.Resume(), ErrDeviceClosed)
}

func TestDeviceStateString(t *testing.T) {
	assert.Equal(t, "active", DeviceActive.String())
	assert.Equal(t, "paused", DevicePaused.String())
	assert.Equal(t, "idle", DeviceIdle.String())
	assert.Equal(t, "unknown", DeviceState(9).String())
}
