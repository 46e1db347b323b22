package pipeline

import (
	"fmt"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/address"
	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/fec"
	"github.com/opd-ai/audiostream/packet"
	"github.com/opd-ai/audiostream/rtp"
)

// SenderSlotMetrics is a snapshot of a sender slot.
type SenderSlotMetrics struct {
	Ready    bool
	SourceID uint32
	Packets  uint64
}

// SenderSlot sends one stream to one remote destination. The processing
// chain is built on the first frame written after the slot became ready.
type SenderSlot struct {
	id     string
	cfg    SenderConfig
	deps   Dependencies
	format rtp.Format

	mu     sync.Mutex
	source *SenderEndpoint
	repair *SenderEndpoint

	writer      audio.FrameWriter
	packetizer  *Packetizer
	interleaver *packet.Interleaver
	idleLogged  bool
}

func newSenderSlot(cfg SenderConfig, deps Dependencies, format rtp.Format) *SenderSlot {
	id, _ := gonanoid.New()
	return &SenderSlot{id: id, cfg: cfg, deps: deps, format: format}
}

// ID returns the slot identifier used in logs.
func (s *SenderSlot) ID() string {
	return s.id
}

// CreateEndpoint adds an endpoint for iface using proto.
func (s *SenderSlot) CreateEndpoint(iface address.Interface, proto address.Protocol) (*SenderEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		return nil, ErrSlotStarted
	}
	if err := checkEndpoint(iface, proto, protoOf(s.source), protoOf(s.repair), s.deps.Codecs); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "SenderSlot.CreateEndpoint",
			"slot":      s.id,
			"interface": iface.String(),
			"protocol":  proto.String(),
			"error":     err.Error(),
		}).Error("Failed to create endpoint")
		return nil, err
	}

	ep := newSenderEndpoint(iface, proto)
	if iface == address.IfaceAudioSource {
		s.source = ep
	} else {
		s.repair = ep
	}

	logrus.WithFields(logrus.Fields{
		"function":  "SenderSlot.CreateEndpoint",
		"slot":      s.id,
		"interface": iface.String(),
		"protocol":  proto.String(),
	}).Info("Created sender endpoint")
	return ep, nil
}

// checkEndpoint validates a new endpoint against the protocols of the
// endpoints already in its slot. ProtoNone marks a missing endpoint.
func checkEndpoint(iface address.Interface, proto, source, repair address.Protocol, codecs *fec.Registry) error {
	if err := address.ValidateEndpoint(iface, proto); err != nil {
		return err
	}

	other := source
	existing := repair
	if iface == address.IfaceAudioSource {
		other, existing = repair, source
	}
	if existing != address.ProtoNone {
		return fmt.Errorf("%w: %s", ErrEndpointExists, iface)
	}

	scheme := proto.FECScheme()
	if other != address.ProtoNone && other.FECScheme() != scheme {
		return fmt.Errorf("%w: %s and %s", ErrSchemeMismatch, proto, other)
	}
	if scheme != packet.FECNone {
		if _, err := codecs.Get(scheme); err != nil {
			return err
		}
	}
	return nil
}

func protoOf(e *SenderEndpoint) address.Protocol {
	if e == nil {
		return address.ProtoNone
	}
	return e.proto
}

func (s *SenderSlot) scheme() packet.FECScheme {
	if s.source == nil {
		return packet.FECNone
	}
	return s.source.proto.FECScheme()
}

// ready reports whether every endpoint the source protocol needs exists
// and has a destination.
func (s *SenderSlot) ready() bool {
	if s.source == nil {
		return false
	}
	if dest, _ := s.source.destination(); dest == nil {
		return false
	}
	if s.scheme() == packet.FECNone {
		return true
	}
	if s.repair == nil {
		return false
	}
	dest, _ := s.repair.destination()
	return dest != nil
}

func (s *SenderSlot) build() error {
	router := packet.NewRouter()
	if s.repair != nil {
		if err := router.AddRoute(s.repair, packet.FlagRepair); err != nil {
			return err
		}
	}
	if err := router.AddRoute(s.source, packet.FlagAudio); err != nil {
		return err
	}

	var out packet.Writer = router
	scheme := s.scheme()
	blockSize := s.cfg.FEC.NumSourcePackets
	if scheme != packet.FECNone {
		blockSize += s.cfg.FEC.NumRepairPackets
	}
	if s.cfg.EnableInterleaving {
		il, err := packet.NewInterleaver(out, blockSize)
		if err != nil {
			return err
		}
		s.interleaver = il
		out = il
	}
	if scheme != packet.FECNone {
		codec, err := s.deps.Codecs.Get(scheme)
		if err != nil {
			return err
		}
		fw, err := fec.NewWriter(s.cfg.FEC, scheme, codec, s.deps.Pool, out)
		if err != nil {
			return err
		}
		out = fw
	}

	packetSpec := s.format.SampleSpec
	spp := packetSpec.SamplesPerChan(s.cfg.PacketLength)
	pz, err := NewPacketizer(out, s.deps.Pool, s.format, spp)
	if err != nil {
		return err
	}
	s.packetizer = pz

	var w audio.FrameWriter = pz
	in := s.cfg.InputSpec
	if in.Rate != packetSpec.Rate {
		rw, err := audio.NewResamplerWriter(w,
			audio.SampleSpec{Rate: in.Rate, Channels: packetSpec.Channels},
			packetSpec, spp*packetSpec.NumChannels())
		if err != nil {
			return err
		}
		w = rw
	}
	if in.Channels != packetSpec.Channels {
		mw, err := audio.NewChannelMapperWriter(w, in.Channels, packetSpec.Channels)
		if err != nil {
			return err
		}
		w = mw
	}
	s.writer = w

	logrus.WithFields(logrus.Fields{
		"function":     "SenderSlot.build",
		"slot":         s.id,
		"fec":          scheme.String(),
		"interleaving": s.cfg.EnableInterleaving,
		"input_spec":   in.String(),
		"packet_spec":  packetSpec.String(),
	}).Info("Sender slot ready")
	return nil
}

func (s *SenderSlot) write(frame *audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		if !s.ready() {
			if !s.idleLogged {
				s.idleLogged = true
				logrus.WithFields(logrus.Fields{
					"function": "SenderSlot.write",
					"slot":     s.id,
				}).Debug("Slot not ready, frame not routed")
			}
			return nil
		}
		if err := s.build(); err != nil {
			return fmt.Errorf("failed to build slot %s: %w", s.id, err)
		}
	}
	return s.writer.Write(frame)
}

func (s *SenderSlot) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.packetizer == nil {
		return nil
	}
	if err := s.packetizer.Flush(); err != nil {
		return err
	}
	if s.interleaver != nil {
		return s.interleaver.Flush()
	}
	return nil
}

func (s *SenderSlot) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.packetizer != nil {
		s.packetizer.Close()
	}
}

// Metrics returns a snapshot of the slot state.
func (s *SenderSlot) Metrics() SenderSlotMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := SenderSlotMetrics{Ready: s.writer != nil}
	if s.packetizer != nil {
		m.SourceID = s.packetizer.SourceID()
		m.Packets = s.packetizer.Packets()
	}
	return m
}
