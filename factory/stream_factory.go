package factory

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/opd-ai/audiostream/fec"
	"github.com/opd-ai/audiostream/limits"
	"github.com/opd-ai/audiostream/packet"
	"github.com/opd-ai/audiostream/pipeline"
	"github.com/opd-ai/audiostream/rtp"
	"github.com/sirupsen/logrus"
)

// Environment variables read by NewStreamFactory.
const (
	EnvSampleRate        = "AUDIOSTREAM_SAMPLE_RATE"
	EnvPacketLength      = "AUDIOSTREAM_PACKET_LENGTH_MS"
	EnvFECSourcePackets  = "AUDIOSTREAM_FEC_SOURCE_PACKETS"
	EnvFECRepairPackets  = "AUDIOSTREAM_FEC_REPAIR_PACKETS"
	EnvInterleaving      = "AUDIOSTREAM_INTERLEAVING"
	EnvTargetLatency     = "AUDIOSTREAM_TARGET_LATENCY_MS"
	EnvNoPlaybackTimeout = "AUDIOSTREAM_NO_PLAYBACK_TIMEOUT_MS"
	EnvFreqEstimator     = "AUDIOSTREAM_FREQ_ESTIMATOR"
	EnvMaxSessions       = "AUDIOSTREAM_MAX_SESSIONS"
	EnvPoolSize          = "AUDIOSTREAM_POOL_SIZE"
)

// Validation constants for configuration bounds checking.
const (
	// MinSampleRate is the lowest accepted sample rate in Hz.
	MinSampleRate = 8000
	// MinPacketLength and MaxPacketLength bound the packet length in milliseconds.
	MinPacketLength = 1
	MaxPacketLength = 100
	// MinTargetLatency and MaxTargetLatency bound the target latency in milliseconds.
	MinTargetLatency = 1
	MaxTargetLatency = 10000
	// MaxNoPlaybackTimeout bounds the watchdog timeout in milliseconds (1 minute).
	MaxNoPlaybackTimeout = 60000
	// MaxSessions bounds the number of sessions per slot.
	MaxSessions = 1024
	// MinPoolSize and MaxPoolSize bound the number of packet buffers.
	MinPoolSize = 64
	MaxPoolSize = 65536
	// DefaultPoolSize is the number of packet buffers when not overridden.
	DefaultPoolSize = 4096
)

// StreamFactory builds sender and receiver pipelines from one shared set
// of configuration and dependencies.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type StreamFactory struct {
	mu       sync.RWMutex
	sender   pipeline.SenderConfig
	receiver pipeline.ReceiverConfig
	poolSize int
	deps     *pipeline.Dependencies
}

// NewStreamFactory creates a factory with default configuration adjusted by
// AUDIOSTREAM_* environment variables. Invalid values are logged and ignored.
func NewStreamFactory() *StreamFactory {
	f := &StreamFactory{
		sender:   pipeline.DefaultSenderConfig(),
		receiver: pipeline.DefaultReceiverConfig(),
		poolSize: DefaultPoolSize,
	}
	f.applyEnvironmentOverrides()
	f.logConfigurationInfo()
	return f
}

// applyEnvironmentOverrides updates configuration from AUDIOSTREAM_* variables.
func (f *StreamFactory) applyEnvironmentOverrides() {
	if rate, ok := intFromEnv(EnvSampleRate, MinSampleRate, limits.MaxSampleRate, f.sender.InputSpec.Rate); ok {
		f.sender.InputSpec.Rate = rate
		f.receiver.OutputSpec.Rate = rate
	}
	if ms, ok := intFromEnv(EnvPacketLength, MinPacketLength, MaxPacketLength, durationMs(f.sender.PacketLength)); ok {
		f.sender.PacketLength = time.Duration(ms) * time.Millisecond
	}
	f.parseFECSetting()
	if on, ok := boolFromEnv(EnvInterleaving, f.sender.EnableInterleaving); ok {
		f.sender.EnableInterleaving = on
	}
	if ms, ok := intFromEnv(EnvTargetLatency, MinTargetLatency, MaxTargetLatency, durationMs(f.receiver.Session.TargetLatency)); ok {
		f.receiver.Session.TargetLatency = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := intFromEnv(EnvNoPlaybackTimeout, 0, MaxNoPlaybackTimeout, durationMs(f.receiver.Session.NoPlaybackTimeout)); ok {
		f.receiver.Session.NoPlaybackTimeout = time.Duration(ms) * time.Millisecond
	}
	if on, ok := boolFromEnv(EnvFreqEstimator, f.receiver.Session.FreqEstimator.Enable); ok {
		f.receiver.Session.FreqEstimator.Enable = on
	}
	if n, ok := intFromEnv(EnvMaxSessions, 0, MaxSessions, f.receiver.MaxSessionsPerSlot); ok {
		f.receiver.MaxSessionsPerSlot = n
	}
	if n, ok := intFromEnv(EnvPoolSize, MinPoolSize, MaxPoolSize, f.poolSize); ok {
		f.poolSize = n
	}
}

// parseFECSetting reads the block geometry. Both counts are applied
// together and only when their sum fits in one GF(2^8) block.
func (f *StreamFactory) parseFECSetting() {
	cfg := f.sender.FEC
	n, nOk := intFromEnv(EnvFECSourcePackets, 1, limits.MaxFECBlockLength, cfg.NumSourcePackets)
	if nOk {
		cfg.NumSourcePackets = n
	}
	k, kOk := intFromEnv(EnvFECRepairPackets, 1, limits.MaxFECBlockLength-1, cfg.NumRepairPackets)
	if kOk {
		cfg.NumRepairPackets = k
	}
	if !nOk && !kOk {
		return
	}
	if err := cfg.Validate(limits.MaxFECBlockLength); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseFECSetting",
			"source":      cfg.NumSourcePackets,
			"repair":      cfg.NumRepairPackets,
			"error":       err.Error(),
			"using_value": fmt.Sprintf("%d+%d", f.sender.FEC.NumSourcePackets, f.sender.FEC.NumRepairPackets),
		}).Warn("FEC block size out of bounds, using default")
		return
	}
	f.sender.FEC = cfg
}

// intFromEnv parses an integer variable within [min, max]. It logs a
// warning and reports false when the variable is unparsable or out of bounds.
func intFromEnv(name string, min, max, current int) (int, bool) {
	str := os.Getenv(name)
	if str == "" {
		return current, false
	}
	v, err := strconv.Atoi(str)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "intFromEnv",
			"env_var":     name,
			"value":       str,
			"error":       err.Error(),
			"using_value": current,
		}).Warn("Failed to parse environment variable, using default")
		return current, false
	}
	if v < min || v > max {
		logrus.WithFields(logrus.Fields{
			"function":    "intFromEnv",
			"env_var":     name,
			"value":       v,
			"min":         min,
			"max":         max,
			"using_value": current,
		}).Warn("Environment variable out of bounds, using default")
		return current, false
	}
	return v, true
}

// boolFromEnv parses a boolean variable with strconv.ParseBool.
func boolFromEnv(name string, current bool) (bool, bool) {
	str := os.Getenv(name)
	if str == "" {
		return current, false
	}
	v, err := strconv.ParseBool(str)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "boolFromEnv",
			"env_var":     name,
			"value":       str,
			"error":       err.Error(),
			"using_value": current,
		}).Warn("Failed to parse environment variable, using default")
		return current, false
	}
	return v, true
}

func durationMs(d time.Duration) int {
	return int(d / time.Millisecond)
}

// logConfigurationInfo logs the final configuration settings.
func (f *StreamFactory) logConfigurationInfo() {
	logrus.WithFields(logrus.Fields{
		"function":            "NewStreamFactory",
		"sample_rate":         f.sender.InputSpec.Rate,
		"packet_length":       f.sender.PacketLength,
		"fec_source":          f.sender.FEC.NumSourcePackets,
		"fec_repair":          f.sender.FEC.NumRepairPackets,
		"interleaving":        f.sender.EnableInterleaving,
		"target_latency":      f.receiver.Session.TargetLatency,
		"no_playback_timeout": f.receiver.Session.NoPlaybackTimeout,
		"freq_estimator":      f.receiver.Session.FreqEstimator.Enable,
		"max_sessions":        f.receiver.MaxSessionsPerSlot,
		"pool_size":           f.poolSize,
	}).Info("Created stream factory with configuration")
}

// SenderConfig returns a copy of the current sender configuration.
func (f *StreamFactory) SenderConfig() pipeline.SenderConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sender
}

// ReceiverConfig returns a copy of the current receiver configuration.
func (f *StreamFactory) ReceiverConfig() pipeline.ReceiverConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.receiver
}

// PoolSize returns the number of buffers in the shared packet pool.
func (f *StreamFactory) PoolSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.poolSize
}

// UpdateSenderConfig replaces the sender configuration after validating it.
// Sinks already created keep the configuration they were built with.
func (f *StreamFactory) UpdateSenderConfig(cfg pipeline.SenderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":          "UpdateSenderConfig",
		"old_packet_length": f.sender.PacketLength,
		"new_packet_length": cfg.PacketLength,
		"old_payload_type":  f.sender.PayloadType,
		"new_payload_type":  cfg.PayloadType,
	}).Info("Updating sender configuration")

	f.sender = cfg
	return nil
}

// UpdateReceiverConfig replaces the receiver configuration after validating it.
func (f *StreamFactory) UpdateReceiverConfig(cfg pipeline.ReceiverConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":           "UpdateReceiverConfig",
		"old_target_latency": f.receiver.Session.TargetLatency,
		"new_target_latency": cfg.Session.TargetLatency,
	}).Info("Updating receiver configuration")

	f.receiver = cfg
	return nil
}

// Dependencies returns the shared format map, FEC registry and packet pool,
// creating them on first use. Every pipeline built by the factory shares them.
func (f *StreamFactory) Dependencies() (pipeline.Dependencies, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deps != nil {
		return *f.deps, nil
	}

	pool, err := packet.NewPool(f.poolSize, limits.MaxPacketSize)
	if err != nil {
		return pipeline.Dependencies{}, fmt.Errorf("create packet pool: %w", err)
	}
	f.deps = &pipeline.Dependencies{
		Formats: rtp.NewFormatMap(),
		Codecs:  fec.NewDefaultRegistry(),
		Pool:    pool,
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Dependencies",
		"pool_size":   f.poolSize,
		"buffer_size": limits.MaxPacketSize,
	}).Info("Created shared pipeline dependencies")

	return *f.deps, nil
}

// NewSenderSink creates a sink with the current sender configuration.
func (f *StreamFactory) NewSenderSink() (*pipeline.SenderSink, error) {
	deps, err := f.Dependencies()
	if err != nil {
		return nil, err
	}
	return pipeline.NewSenderSink(f.SenderConfig(), deps)
}

// NewReceiverSource creates a source with the current receiver configuration.
func (f *StreamFactory) NewReceiverSource() (*pipeline.ReceiverSource, error) {
	deps, err := f.Dependencies()
	if err != nil {
		return nil, err
	}
	return pipeline.NewReceiverSource(f.ReceiverConfig(), deps)
}
