package pipeline

import (
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/address"
	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/packet"
)

// ReceiverSlotMetrics is a snapshot of a receiver slot.
type ReceiverSlotMetrics struct {
	NumSessions int
	Violations  uint64
	Rejected    uint64
	Unrouted    uint64
}

// ReceiverSlot groups the endpoints of one logical peer and owns the
// sessions created from their packets.
type ReceiverSlot struct {
	id   string
	cfg  ReceiverConfig
	deps Dependencies

	mu       sync.Mutex
	source   *ReceiverEndpoint
	repair   *ReceiverEndpoint
	sessions []*ReceiverSession
	metrics  ReceiverSlotMetrics

	// rejected remembers senders whose packets were refused, so that only
	// the first refusal is logged as a warning.
	rejected *lru.Cache
}

func newReceiverSlot(cfg ReceiverConfig, deps Dependencies) (*ReceiverSlot, error) {
	cache, err := lru.New(cfg.RejectCacheSize)
	if err != nil {
		return nil, err
	}
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	return &ReceiverSlot{id: id, cfg: cfg, deps: deps, rejected: cache}, nil
}

// ID returns the slot identifier used in logs.
func (s *ReceiverSlot) ID() string {
	return s.id
}

// CreateEndpoint adds an endpoint for iface using proto.
func (s *ReceiverSlot) CreateEndpoint(iface address.Interface, proto address.Protocol) (*ReceiverEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkEndpoint(iface, proto, receiverProtoOf(s.source), receiverProtoOf(s.repair), s.deps.Codecs); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "ReceiverSlot.CreateEndpoint",
			"slot":      s.id,
			"interface": iface.String(),
			"protocol":  proto.String(),
			"error":     err.Error(),
		}).Error("Failed to create endpoint")
		return nil, err
	}

	ep := newReceiverEndpoint(iface, proto, s.deps.Formats, s.cfg.EndpointQueueSize)
	if iface == address.IfaceAudioSource {
		s.source = ep
	} else {
		s.repair = ep
	}

	logrus.WithFields(logrus.Fields{
		"function":  "ReceiverSlot.CreateEndpoint",
		"slot":      s.id,
		"interface": iface.String(),
		"protocol":  proto.String(),
	}).Info("Created receiver endpoint")
	return ep, nil
}

func receiverProtoOf(e *ReceiverEndpoint) address.Protocol {
	if e == nil {
		return address.ProtoNone
	}
	return e.proto
}

// Sessions returns the sessions of the slot.
func (s *ReceiverSlot) Sessions() []*ReceiverSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sessions)
}

// NumSessions returns the number of sessions of the slot.
func (s *ReceiverSlot) NumSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Metrics returns a snapshot of the slot counters.
func (s *ReceiverSlot) Metrics() ReceiverSlotMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.metrics
	m.NumSessions = len(s.sessions)
	return m
}

// refresh parses and routes every packet waiting in the endpoints.
func (s *ReceiverSlot) refresh() {
	s.mu.Lock()
	endpoints := []*ReceiverEndpoint{s.source, s.repair}
	s.mu.Unlock()

	for _, ep := range endpoints {
		if ep == nil {
			continue
		}
		for {
			pkt, err := ep.pull()
			if pkt == nil {
				break
			}
			if err != nil {
				s.reject(pkt, err)
				pkt.Release()
				continue
			}
			s.route(pkt)
		}
	}
}

func addrKey(pkt *packet.Packet) string {
	if pkt.UDP.SrcAddr == nil {
		return ""
	}
	return pkt.UDP.SrcAddr.String()
}

func (s *ReceiverSlot) reject(pkt *packet.Packet, err error) {
	key := fmt.Sprintf("%s/%d", addrKey(pkt), pkt.RTP.SourceID)

	s.mu.Lock()
	s.metrics.Violations++
	s.mu.Unlock()

	entry := logrus.WithFields(logrus.Fields{
		"function": "ReceiverSlot.reject",
		"slot":     s.id,
		"sender":   key,
		"error":    err.Error(),
	})
	if seen, _ := s.rejected.ContainsOrAdd(key, struct{}{}); seen {
		entry.Debug("Dropping malformed packet")
		return
	}
	entry.Warn("Dropping malformed packet")
}

func (s *ReceiverSlot) route(pkt *packet.Packet) {
	key := addrKey(pkt)

	if pkt.Has(packet.FlagRepair) {
		for _, sess := range s.sessions {
			if sess.addrKey == key {
				sess.write(pkt)
				return
			}
		}
		s.mu.Lock()
		s.metrics.Unrouted++
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "ReceiverSlot.route",
			"slot":     s.id,
			"remote":   key,
		}).Debug("No session for repair packet")
		pkt.Release()
		return
	}

	for _, sess := range s.sessions {
		if sess.matches(key, pkt.RTP.SourceID) {
			sess.write(pkt)
			return
		}
	}

	sess, err := s.createSession(pkt, key)
	if err != nil {
		s.mu.Lock()
		s.metrics.Rejected++
		s.mu.Unlock()
		entry := logrus.WithFields(logrus.Fields{
			"function": "ReceiverSlot.route",
			"slot":     s.id,
			"remote":   key,
			"ssrc":     pkt.RTP.SourceID,
			"error":    err.Error(),
		})
		if seen, _ := s.rejected.ContainsOrAdd(fmt.Sprintf("%s/%d", key, pkt.RTP.SourceID), struct{}{}); seen {
			entry.Debug("Cannot create session")
		} else {
			entry.Warn("Cannot create session")
		}
		pkt.Release()
		return
	}
	sess.write(pkt)
}

func (s *ReceiverSlot) createSession(pkt *packet.Packet, key string) (*ReceiverSession, error) {
	if limit := s.cfg.MaxSessionsPerSlot; limit > 0 && len(s.sessions) >= limit {
		return nil, fmt.Errorf("%w: %d sessions", ErrSlotFull, limit)
	}
	format, ok := s.deps.Formats.Lookup(pkt.RTP.PayloadType)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPayloadType, pkt.RTP.PayloadType)
	}

	sess, err := newReceiverSession(s.cfg, s.deps, receiverProtoOf(s.source).FECScheme(), format, key, pkt.RTP.SourceID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()
	return sess, nil
}

// mix reads every active session and adds its audio to frame. tmp is
// scratch space of the same size.
func (s *ReceiverSlot) mix(frame, tmp *audio.Frame) error {
	for _, sess := range s.sessions {
		ok, err := sess.read(tmp)
		if err != nil {
			return fmt.Errorf("session %s: %w", sess.id, err)
		}
		if !ok {
			continue
		}
		if err := audio.Mix(frame.Samples, tmp.Samples); err != nil {
			return err
		}
		frame.Flags |= tmp.Flags
	}
	return nil
}

// reap removes terminated sessions.
func (s *ReceiverSlot) reap() {
	s.mu.Lock()
	var dead []*ReceiverSession
	s.sessions = slices.DeleteFunc(s.sessions, func(sess *ReceiverSession) bool {
		if sess.State() == SessionTerminated {
			dead = append(dead, sess)
			return true
		}
		return false
	})
	s.mu.Unlock()

	for _, sess := range dead {
		sess.close()
		logrus.WithFields(logrus.Fields{
			"function": "ReceiverSlot.reap",
			"slot":     s.id,
			"session":  sess.id,
		}).Debug("Removed session")
	}
}

// terminateAll ends every session with reason.
func (s *ReceiverSlot) terminateAll(reason error) {
	for _, sess := range s.Sessions() {
		sess.terminate(reason)
	}
	s.reap()
}

func (s *ReceiverSlot) close() {
	s.terminateAll(ErrClosed)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ep := range []*ReceiverEndpoint{s.source, s.repair} {
		if ep != nil {
			ep.close()
		}
	}
}
