package pipeline

import (
	"fmt"
	"time"

	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/fec"
	"github.com/opd-ai/audiostream/limits"
	"github.com/opd-ai/audiostream/packet"
	"github.com/opd-ai/audiostream/rtp"
)

// Dependencies are the shared objects handed to every sink and source.
// They are built once per process and may be shared between pipelines.
type Dependencies struct {
	Formats *rtp.FormatMap
	Codecs  *fec.Registry
	Pool    *packet.Pool
}

func (d Dependencies) validate() error {
	switch {
	case d.Formats == nil:
		return fmt.Errorf("%w: format map", ErrMissingDependency)
	case d.Codecs == nil:
		return fmt.Errorf("%w: fec registry", ErrMissingDependency)
	case d.Pool == nil:
		return fmt.Errorf("%w: packet pool", ErrMissingDependency)
	}
	return nil
}

// SenderConfig configures a SenderSink.
type SenderConfig struct {
	// InputSpec is the sample spec of frames passed to Write.
	InputSpec audio.SampleSpec
	// PayloadType selects the packet encoding from the format map.
	PayloadType uint8
	// PacketLength is the duration of audio in one source packet.
	PacketLength time.Duration
	// FEC is the block geometry used when the source protocol carries FEC.
	FEC fec.WriterConfig
	// EnableInterleaving spreads each block over the wire in permuted order.
	EnableInterleaving bool
}

// DefaultSenderConfig returns a config for 44.1 kHz stereo L16 packets of
// 5ms protected by 18+10 blocks.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		InputSpec:    audio.SampleSpec{Rate: 44100, Channels: audio.ChanMaskStereo},
		PayloadType:  rtp.PayloadTypeL16Stereo,
		PacketLength: 5 * time.Millisecond,
		FEC:          fec.DefaultWriterConfig(),
	}
}

// Validate checks the config without looking up the payload type.
func (c SenderConfig) Validate() error {
	if err := c.InputSpec.Validate(); err != nil {
		return fmt.Errorf("%w: input spec: %v", ErrInvalidConfig, err)
	}
	if c.PacketLength <= 0 {
		return fmt.Errorf("%w: packet length %v", ErrInvalidConfig, c.PacketLength)
	}
	if err := c.FEC.Validate(limits.MaxFECBlockLength); err != nil {
		return fmt.Errorf("%w: fec block %d+%d: %v", ErrInvalidConfig, c.FEC.NumSourcePackets, c.FEC.NumRepairPackets, err)
	}
	return nil
}

// FreqEstimatorConfig configures the clock drift controller.
type FreqEstimatorConfig struct {
	// Enable turns latency feedback on. When off, latency may drift and only
	// the hard bounds of the latency monitor apply.
	Enable bool
	// P is the proportional gain per sample of latency error.
	P float64
	// I is the integral gain per sample of accumulated latency error.
	I float64
	// MaxScalingDelta bounds the distance of the scaling factor from 1.
	MaxScalingDelta float64
}

// DefaultFreqEstimatorConfig returns conservative gains.
func DefaultFreqEstimatorConfig() FreqEstimatorConfig {
	return FreqEstimatorConfig{
		Enable:          true,
		P:               1e-6,
		I:               1e-10,
		MaxScalingDelta: 0.005,
	}
}

// SessionConfig configures every receiver session.
type SessionConfig struct {
	// TargetLatency is the amount of audio buffered before playback starts
	// and the set point of the latency monitor.
	TargetLatency time.Duration
	// LatencyTolerance is the allowed distance from TargetLatency before the
	// session is terminated. Zero means TargetLatency.
	LatencyTolerance time.Duration
	// NoPlaybackTimeout terminates sessions without decoded audio for this
	// long. Zero disables the watchdog.
	NoPlaybackTimeout time.Duration
	// InternalFrameLength is the chunk size pulled through the resampler.
	InternalFrameLength time.Duration
	// FreqEstimator configures latency feedback.
	FreqEstimator FreqEstimatorConfig
	// FEC bounds the reorder window of the block reader.
	FEC fec.ReaderConfig
	// MaxSeqnumJump and MaxTimestampJump bound the accepted distance between
	// consecutive packets.
	MaxSeqnumJump    int
	MaxTimestampJump time.Duration
	// MaxViolations terminates a session after this many consecutive
	// protocol violations.
	MaxViolations int
	// MaxQueuePackets bounds the source and repair reorder queues.
	MaxQueuePackets int
}

// DefaultSessionConfig returns 200ms of target latency and a 2s watchdog.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TargetLatency:       200 * time.Millisecond,
		NoPlaybackTimeout:   2 * time.Second,
		InternalFrameLength: 10 * time.Millisecond,
		FreqEstimator:       DefaultFreqEstimatorConfig(),
		FEC:                 fec.DefaultReaderConfig(),
		MaxSeqnumJump:       100,
		MaxTimestampJump:    time.Second,
		MaxViolations:       50,
		MaxQueuePackets:     512,
	}
}

// Validate checks the session config.
func (c SessionConfig) Validate() error {
	switch {
	case c.TargetLatency <= 0:
		return fmt.Errorf("%w: target latency %v", ErrInvalidConfig, c.TargetLatency)
	case c.LatencyTolerance < 0:
		return fmt.Errorf("%w: latency tolerance %v", ErrInvalidConfig, c.LatencyTolerance)
	case c.NoPlaybackTimeout < 0:
		return fmt.Errorf("%w: no playback timeout %v", ErrInvalidConfig, c.NoPlaybackTimeout)
	case c.InternalFrameLength <= 0:
		return fmt.Errorf("%w: internal frame length %v", ErrInvalidConfig, c.InternalFrameLength)
	case c.FEC.MaxSbnJump < 1:
		return fmt.Errorf("%w: fec window %d", ErrInvalidConfig, c.FEC.MaxSbnJump)
	case c.MaxSeqnumJump < 1 || c.MaxTimestampJump <= 0:
		return fmt.Errorf("%w: jump limits %d/%v", ErrInvalidConfig, c.MaxSeqnumJump, c.MaxTimestampJump)
	case c.MaxViolations < 1:
		return fmt.Errorf("%w: max violations %d", ErrInvalidConfig, c.MaxViolations)
	case c.MaxQueuePackets < 1:
		return fmt.Errorf("%w: max queue packets %d", ErrInvalidConfig, c.MaxQueuePackets)
	}
	if fe := c.FreqEstimator; fe.Enable && (fe.MaxScalingDelta <= 0 || fe.MaxScalingDelta >= 1-audio.MinScaling) {
		return fmt.Errorf("%w: max scaling delta %v", ErrInvalidConfig, fe.MaxScalingDelta)
	}
	return nil
}

// tolerance returns the effective latency tolerance.
func (c SessionConfig) tolerance() time.Duration {
	if c.LatencyTolerance == 0 {
		return c.TargetLatency
	}
	return c.LatencyTolerance
}

// ReceiverConfig configures a ReceiverSource.
type ReceiverConfig struct {
	// OutputSpec is the sample spec of frames returned by Read.
	OutputSpec audio.SampleSpec
	// Session configures every session.
	Session SessionConfig
	// MaxSessionsPerSlot rejects new senders beyond this count. Zero means
	// unlimited.
	MaxSessionsPerSlot int
	// EndpointQueueSize bounds packets waiting in each endpoint. Zero means
	// unbounded.
	EndpointQueueSize int
	// RejectCacheSize is the number of rejected senders remembered per slot
	// to rate-limit warnings.
	RejectCacheSize int
}

// DefaultReceiverConfig returns a config producing 44.1 kHz stereo frames.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		OutputSpec:         audio.SampleSpec{Rate: 44100, Channels: audio.ChanMaskStereo},
		Session:            DefaultSessionConfig(),
		MaxSessionsPerSlot: 16,
		EndpointQueueSize:  1024,
		RejectCacheSize:    128,
	}
}

// Validate checks the receiver config.
func (c ReceiverConfig) Validate() error {
	if err := c.OutputSpec.Validate(); err != nil {
		return fmt.Errorf("%w: output spec: %v", ErrInvalidConfig, err)
	}
	if c.MaxSessionsPerSlot < 0 || c.EndpointQueueSize < 0 || c.RejectCacheSize < 1 {
		return fmt.Errorf("%w: sessions=%d queue=%d reject cache=%d",
			ErrInvalidConfig, c.MaxSessionsPerSlot, c.EndpointQueueSize, c.RejectCacheSize)
	}
	return c.Session.Validate()
}
