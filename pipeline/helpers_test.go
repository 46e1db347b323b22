package pipeline

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/fec"
	"github.com/opd-ai/audiostream/packet"
	"github.com/opd-ai/audiostream/rtp"
)

const (
	testRate = 44100

	testSamplesPerFrame  = 10
	testSamplesPerPacket = 40
	testFramesPerPacket  = testSamplesPerPacket / testSamplesPerFrame

	testSourcePackets = 20
	testRepairPackets = 10

	testLatency    = testSamplesPerPacket * testSourcePackets
	testTimeout    = testLatency * 20
	testManyFrames = testLatency / testSamplesPerFrame * 10
)

var (
	testSenderAddr  = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 10001}
	testSourceAddr  = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 10011}
	testRepairAddr  = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 10022}
	testSenderAddr2 = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 2), Port: 10001}
)

// samplesToDuration converts samples per channel at the test rate.
func samplesToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / testRate
}

func newTestDeps(t *testing.T) Dependencies {
	t.Helper()
	pool, err := packet.NewPool(1024, 512)
	require.NoError(t, err)
	return Dependencies{
		Formats: rtp.NewFormatMap(),
		Codecs:  fec.NewDefaultRegistry(),
		Pool:    pool,
	}
}

func testSpec(chans audio.ChannelMask) audio.SampleSpec {
	return audio.SampleSpec{Rate: testRate, Channels: chans}
}

// testReceiverConfig returns the receiver settings shared by pipeline tests:
// no frequency estimator, so decoded samples pass through unchanged.
func testReceiverConfig(chans audio.ChannelMask) ReceiverConfig {
	cfg := DefaultReceiverConfig()
	cfg.OutputSpec = testSpec(chans)
	cfg.Session.FreqEstimator.Enable = false
	cfg.Session.TargetLatency = samplesToDuration(testLatency)
	cfg.Session.NoPlaybackTimeout = samplesToDuration(testTimeout)
	return cfg
}

func testSenderConfig(chans audio.ChannelMask, payloadType uint8) SenderConfig {
	cfg := DefaultSenderConfig()
	cfg.InputSpec = testSpec(chans)
	cfg.PayloadType = payloadType
	cfg.PacketLength = samplesToDuration(testSamplesPerPacket)
	cfg.FEC = fec.WriterConfig{NumSourcePackets: testSourcePackets, NumRepairPackets: testRepairPackets}
	return cfg
}

// sampleGen produces a deterministic ramp of values exactly representable
// as 16-bit PCM.
type sampleGen struct {
	n int
}

func (g *sampleGen) next() float32 {
	v := float32(g.n%30000-15000) / 32768
	g.n++
	return v
}

// fill writes the next values into every channel of frame.
func (g *sampleGen) fill(frame *audio.Frame, channels int) {
	for i := 0; i < len(frame.Samples); i += channels {
		v := g.next()
		for c := 0; c < channels; c++ {
			frame.Samples[i+c] = v
		}
	}
}

// packetList collects every packet written to it.
type packetList struct {
	pkts []*packet.Packet
}

func (l *packetList) Write(pkt *packet.Packet) error {
	l.pkts = append(l.pkts, pkt)
	return nil
}

func (l *packetList) release() {
	for _, pkt := range l.pkts {
		pkt.Release()
	}
	l.pkts = nil
}

// packetSender delivers captured packets to receiver endpoints the way a
// socket would, counting only source packets.
type packetSender struct {
	pkts   []*packet.Packet
	source packet.Writer
	repair packet.Writer
	from   net.Addr
}

// deliver passes packets on until n source packets were delivered. Repair
// packets are delivered as they come.
func (s *packetSender) deliver(t *testing.T, n int) {
	t.Helper()
	for n > 0 && len(s.pkts) > 0 {
		pkt := s.pkts[0]
		s.pkts = s.pkts[1:]

		pkt.Flags |= packet.FlagUDP
		pkt.UDP.SrcAddr = s.from

		w := s.source
		if pkt.Has(packet.FlagRepair) {
			w = s.repair
		} else {
			n--
		}
		require.NotNil(t, w)
		require.NoError(t, w.Write(pkt))
	}
}

func (s *packetSender) release() {
	for _, pkt := range s.pkts {
		pkt.Release()
	}
	s.pkts = nil
}

// frameChecker reads frames from a receiver and compares them with the
// ramp written on the sender side.
type frameChecker struct {
	gen   sampleGen
	frame *audio.Frame
	ch    int
}

func newFrameChecker(spec audio.SampleSpec) *frameChecker {
	return &frameChecker{
		frame: audio.NewFrame(testSamplesPerFrame * spec.NumChannels()),
		ch:    spec.NumChannels(),
	}
}

func (c *frameChecker) read(t *testing.T, source *ReceiverSource, numSessions int) {
	t.Helper()
	ok, err := source.Read(c.frame)
	require.NoError(t, err)
	require.Equal(t, numSessions > 0, ok)

	for i := 0; i < len(c.frame.Samples); i += c.ch {
		want := c.gen.next() * float32(numSessions)
		for ch := 0; ch < c.ch; ch++ {
			if got := c.frame.Samples[i+ch]; got != want {
				require.Failf(t, "unexpected sample", "sample %d channel %d: got %v, want %v",
					c.gen.n-1, ch, got, want)
			}
		}
	}
}

// readBlank reads n frames and returns how many carried no signal.
func readBlank(t *testing.T, source *ReceiverSource, frame *audio.Frame, n int) int {
	t.Helper()
	blank := 0
	for i := 0; i < n; i++ {
		_, err := source.Read(frame)
		require.NoError(t, err)
		if frame.IsBlank() {
			blank++
		}
	}
	return blank
}
