package audio

import (
	"fmt"
	"math"
	"math/bits"
	"strings"
	"time"

	"github.com/opd-ai/audiostream/limits"
)

// ChannelMask is a bit set of channel positions. The order of set bits
// defines the order of interleaved samples in a frame.
type ChannelMask uint32

// Channel positions in surround layout order.
const (
	ChanFrontLeft ChannelMask = 1 << iota
	ChanFrontRight
	ChanFrontCenter
	ChanLowFrequency
	ChanBackLeft
	ChanBackRight
	ChanSideLeft
	ChanSideRight
)

// Common surround masks.
const (
	ChanMaskMono   = ChanFrontCenter
	ChanMaskStereo = ChanFrontLeft | ChanFrontRight
	ChanMask5_1    = ChanFrontLeft | ChanFrontRight | ChanFrontCenter | ChanLowFrequency | ChanBackLeft | ChanBackRight
)

var channelNames = []string{"FL", "FR", "FC", "LFE", "BL", "BR", "SL", "SR"}

// NumChannels returns the number of channels in the mask.
func (m ChannelMask) NumChannels() int {
	return bits.OnesCount32(uint32(m))
}

// Has reports whether every position of other is present in m.
func (m ChannelMask) Has(other ChannelMask) bool {
	return m&other == other
}

// String returns a human-readable list of channel positions.
func (m ChannelMask) String() string {
	if m == 0 {
		return "none"
	}
	var names []string
	for i := 0; i < 32; i++ {
		if m&(1<<uint(i)) == 0 {
			continue
		}
		if i < len(channelNames) {
			names = append(names, channelNames[i])
		} else {
			names = append(names, fmt.Sprintf("ch%d", i))
		}
	}
	return strings.Join(names, ",")
}

// SampleSpec describes the sample rate and channel layout of a stream.
type SampleSpec struct {
	Rate     int
	Channels ChannelMask
}

// NumChannels returns the number of interleaved channels.
func (s SampleSpec) NumChannels() int {
	return s.Channels.NumChannels()
}

// Validate checks that the spec describes a usable stream.
func (s SampleSpec) Validate() error {
	if s.Rate <= 0 || s.Rate > limits.MaxSampleRate {
		return fmt.Errorf("%w: rate %d", ErrInvalidSampleSpec, s.Rate)
	}
	if err := limits.ValidateChannelCount(s.NumChannels()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSampleSpec, err)
	}
	return nil
}

// IsValid reports whether Validate succeeds.
func (s SampleSpec) IsValid() bool {
	return s.Validate() == nil
}

// SamplesPerChan converts a duration into a number of samples per channel,
// rounded to the nearest sample.
func (s SampleSpec) SamplesPerChan(d time.Duration) int {
	return int(math.Round(float64(d) * float64(s.Rate) / float64(time.Second)))
}

// SamplesOverall converts a duration into the number of interleaved samples.
func (s SampleSpec) SamplesOverall(d time.Duration) int {
	return s.SamplesPerChan(d) * s.NumChannels()
}

// Duration converts a number of samples per channel into a duration.
func (s SampleSpec) Duration(samplesPerChan int) time.Duration {
	if s.Rate == 0 {
		return 0
	}
	return time.Duration(math.Round(float64(samplesPerChan) * float64(time.Second) / float64(s.Rate)))
}

// String implements fmt.Stringer.
func (s SampleSpec) String() string {
	return fmt.Sprintf("%dHz/%s", s.Rate, s.Channels)
}
