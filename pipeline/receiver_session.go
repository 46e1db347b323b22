package pipeline

import (
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/fec"
	"github.com/opd-ai/audiostream/packet"
	"github.com/opd-ai/audiostream/rtp"
)

// SessionMetrics is a snapshot of a receiver session.
type SessionMetrics struct {
	State        SessionState
	Latency      int64
	LatencyValid bool
	Depacketizer DepacketizerStats
	Restored     uint64
	Lost         uint64
	Violations   uint64
	QueueDrops   uint64
}

// ReceiverSession plays the stream of one remote sender.
//
// Packets are written and frames read from the thread driving
// ReceiverSource.Read. State changes and metrics are safe to use from
// other goroutines.
type ReceiverSession struct {
	id       string
	addrKey  string
	sourceID uint32
	format   rtp.Format

	sourceQueue  *packet.SortedQueue
	repairQueue  *packet.SortedQueue
	fecReader    *fec.Reader
	counter      *violationCounter
	depacketizer *Depacketizer
	monitor      *LatencyMonitor
	output       audio.FrameReader
	queueDrops   uint64

	mu      sync.Mutex
	state   SessionState
	reason  error
	resumed bool
	metrics SessionMetrics
}

func newReceiverSession(cfg ReceiverConfig, deps Dependencies, scheme packet.FECScheme,
	format rtp.Format, addrKey string, sourceID uint32,
) (*ReceiverSession, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	scfg := cfg.Session
	packetSpec := format.SampleSpec
	samples := func(d time.Duration) int64 { return int64(packetSpec.SamplesPerChan(d)) }
	target := samples(scfg.TargetLatency)
	tolerance := samples(scfg.tolerance())

	s := &ReceiverSession{
		id:          id,
		addrKey:     addrKey,
		sourceID:    sourceID,
		format:      format,
		sourceQueue: packet.NewSortedQueue(scfg.MaxQueuePackets),
		counter:     &violationCounter{session: id, max: scfg.MaxViolations},
		state:       SessionDetecting,
	}

	var pr packet.Reader = NewDelayedReader(s.sourceQueue, target)
	if scheme != packet.FECNone {
		codec, err := deps.Codecs.Get(scheme)
		if err != nil {
			return nil, err
		}
		parser := rtp.NewParser(deps.Formats)
		s.repairQueue = packet.NewSortedQueue(scfg.MaxQueuePackets)
		s.fecReader, err = fec.NewReader(scfg.FEC, scheme, codec, deps.Pool, pr, s.repairQueue,
			func(pkt *packet.Packet) error { return parser.Parse(pkt, pkt.Data) },
			s.counter.violation)
		if err != nil {
			return nil, err
		}
		pr = s.fecReader
	}

	validator := rtp.NewValidator(rtp.ValidatorConfig{
		MaxSeqnumJump:    scfg.MaxSeqnumJump,
		MaxTimestampJump: samples(scfg.MaxTimestampJump),
	})
	s.depacketizer = NewDepacketizer(&streamChecker{in: pr, validator: validator, counter: s.counter}, format)

	var fr audio.FrameReader = NewWatchdog(s.depacketizer, packetSpec.NumChannels(), samples(scfg.NoPlaybackTimeout))

	out := cfg.OutputSpec
	if packetSpec.Channels != out.Channels {
		mr, err := audio.NewChannelMapperReader(fr, packetSpec.Channels, out.Channels)
		if err != nil {
			return nil, err
		}
		fr = mr
	}

	var fe *FreqEstimator
	var sc scaler
	if packetSpec.Rate != out.Rate || scfg.FreqEstimator.Enable {
		chunk := max(packetSpec.SamplesPerChan(scfg.InternalFrameLength), 1) * out.NumChannels()
		rs, err := audio.NewResamplerReader(fr,
			audio.SampleSpec{Rate: packetSpec.Rate, Channels: out.Channels}, out, chunk)
		if err != nil {
			return nil, err
		}
		fr = rs
		if scfg.FreqEstimator.Enable {
			fe = NewFreqEstimator(scfg.FreqEstimator, target)
			sc = rs
		}
	}

	s.monitor = NewLatencyMonitor(fr, s.sourceQueue, s.depacketizer, sc, fe, target, tolerance)
	s.output = s.monitor
	s.metrics.State = SessionDetecting

	logrus.WithFields(logrus.Fields{
		"function":    "newReceiverSession",
		"session":     id,
		"remote":      addrKey,
		"ssrc":        sourceID,
		"fec":         scheme.String(),
		"packet_spec": packetSpec.String(),
		"target":      target,
	}).Info("Created receiver session")
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *ReceiverSession) ID() string {
	return s.id
}

// SourceID returns the SSRC of the remote stream.
func (s *ReceiverSession) SourceID() uint32 {
	return s.sourceID
}

// RemoteAddress returns the address the session was created for, or an
// empty string when packets carried none.
func (s *ReceiverSession) RemoteAddress() string {
	return s.addrKey
}

// State returns the lifecycle state.
func (s *ReceiverSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the reason of termination, if any.
func (s *ReceiverSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Pause suspends playback; packets keep being buffered. Pausing a paused
// session does nothing.
func (s *ReceiverSession) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return
	}
	s.state = SessionPaused
	s.metrics.State = s.state

	logrus.WithFields(logrus.Fields{
		"function": "ReceiverSession.Pause",
		"session":  s.id,
	}).Info("Session paused")
}

// Resume continues playback from where it was paused. It returns
// ErrSessionTerminated for a terminated session.
func (s *ReceiverSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case SessionTerminated:
		return ErrSessionTerminated
	case SessionPaused:
		s.state = SessionActive
		s.metrics.State = s.state
		s.resumed = true

		logrus.WithFields(logrus.Fields{
			"function": "ReceiverSession.Resume",
			"session":  s.id,
		}).Info("Session resumed")
	}
	return nil
}

// Metrics returns a snapshot taken at the end of the last read.
func (s *ReceiverSession) Metrics() SessionMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *ReceiverSession) matches(addrKey string, sourceID uint32) bool {
	return s.addrKey == addrKey && s.sourceID == sourceID
}

// write takes ownership of a routed packet.
func (s *ReceiverSession) write(pkt *packet.Packet) {
	q := s.sourceQueue
	if pkt.Has(packet.FlagRepair) {
		q = s.repairQueue
	}
	if q == nil {
		pkt.Release()
		return
	}
	if err := q.Write(pkt); err != nil {
		pkt.Release()
		s.queueDrops++
		logrus.WithFields(logrus.Fields{
			"function": "ReceiverSession.write",
			"session":  s.id,
			"error":    err.Error(),
		}).Debug("Dropping packet")
		return
	}

	s.mu.Lock()
	if s.state == SessionDetecting {
		s.state = SessionActive
		s.metrics.State = s.state
	}
	s.mu.Unlock()
}

// read fills frame with session audio. It returns false when the session
// did not play, leaving frame untouched.
func (s *ReceiverSession) read(frame *audio.Frame) (bool, error) {
	s.mu.Lock()
	state, resumed := s.state, s.resumed
	s.resumed = false
	s.mu.Unlock()

	switch state {
	case SessionTerminated:
		return false, ErrSessionTerminated
	case SessionActive:
	default:
		return false, nil
	}
	if resumed {
		s.monitor.Resume()
	}

	err := s.output.Read(frame)
	s.snapshot()
	if err != nil {
		if isTermination(err) {
			s.terminate(err)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ReceiverSession) snapshot() {
	m := SessionMetrics{
		Depacketizer: s.depacketizer.Stats(),
		Violations:   s.counter.total,
		QueueDrops:   s.queueDrops,
	}
	m.Latency, m.LatencyValid = s.monitor.Latency()
	if s.fecReader != nil {
		m.Restored = s.fecReader.Restored()
		m.Lost = s.fecReader.Lost()
	}

	s.mu.Lock()
	m.State = s.state
	s.metrics = m
	s.mu.Unlock()
}

func (s *ReceiverSession) terminate(reason error) {
	s.mu.Lock()
	if s.state == SessionTerminated {
		s.mu.Unlock()
		return
	}
	s.state = SessionTerminated
	s.metrics.State = s.state
	s.reason = reason
	s.mu.Unlock()

	stats := s.depacketizer.Stats()
	logrus.WithFields(logrus.Fields{
		"function": "ReceiverSession.terminate",
		"session":  s.id,
		"reason":   reason.Error(),
		"decoded":  stats.DecodedSamples,
		"missing":  stats.MissingSamples,
	}).Info("Session terminated")
}

// close releases every packet held by the session.
func (s *ReceiverSession) close() {
	s.sourceQueue.Drain()
	if s.repairQueue != nil {
		s.repairQueue.Drain()
	}
	if s.fecReader != nil {
		s.fecReader.Close()
	}
	s.depacketizer.Close()
}
