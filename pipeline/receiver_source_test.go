package pipeline

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audiostream/address"
	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/packet"
	"github.com/opd-ai/audiostream/rtp"
	"github.com/opd-ai/audiostream/sndio"
)

// testStream is a remote sender producing bare RTP stereo packets on demand.
type testStream struct {
	sink  *SenderSink
	wire  *packetList
	gen   sampleGen
	frame *audio.Frame
	from  net.Addr
}

func newTestStream(t *testing.T, deps Dependencies, from net.Addr) *testStream {
	t.Helper()
	s := &testStream{wire: &packetList{}, frame: audio.NewFrame(testSamplesPerFrame * 2), from: from}

	var err error
	s.sink, err = NewSenderSink(testSenderConfig(audio.ChanMaskStereo, rtp.PayloadTypeL16Stereo), deps)
	require.NoError(t, err)
	slot, err := s.sink.CreateSlot()
	require.NoError(t, err)
	ep, err := slot.CreateEndpoint(address.IfaceAudioSource, address.ProtoRTP)
	require.NoError(t, err)
	ep.SetDestinationWriter(s.wire)
	return s
}

// send encodes n packets worth of frames and writes them to w.
func (s *testStream) send(t *testing.T, w packet.Writer, n int) {
	t.Helper()
	for i := 0; i < n*testFramesPerPacket; i++ {
		s.gen.fill(s.frame, 2)
		require.NoError(t, s.sink.Write(s.frame))
	}
	for _, pkt := range s.wire.pkts {
		pkt.Flags |= packet.FlagUDP
		pkt.UDP.SrcAddr = s.from
		require.NoError(t, w.Write(pkt))
	}
	s.wire.pkts = nil
}

// newTestReceiver creates a receiver with one bare RTP slot.
func newTestReceiver(t *testing.T, deps Dependencies, cfg ReceiverConfig) (*ReceiverSource, *ReceiverSlot, *ReceiverEndpoint) {
	t.Helper()
	receiver, err := NewReceiverSource(cfg, deps)
	require.NoError(t, err)
	slot, err := receiver.CreateSlot()
	require.NoError(t, err)
	ep, err := slot.CreateEndpoint(address.IfaceAudioSource, address.ProtoRTP)
	require.NoError(t, err)
	return receiver, slot, ep
}

func TestReceiverSourceNoSessions(t *testing.T) {
	deps := newTestDeps(t)
	receiver, _, _ := newTestReceiver(t, deps, testReceiverConfig(audio.ChanMaskStereo))

	frame := audio.NewFrame(20)
	frame.Samples[0] = 1
	ok, err := receiver.Read(frame)
	require.NoError(t, err)
	assert.False(t, ok)
	assertSilent(t, frame)
	assert.Equal(t, 0, receiver.NumSessions())
	assert.Equal(t, sndio.DeviceIdle, receiver.State())

	_, err = receiver.Read(audio.NewFrame(3))
	assert.ErrorIs(t, err, audio.ErrFrameSize)
}

func TestReceiverSourceWatchdog(t *testing.T) {
	deps := newTestDeps(t)
	receiver, _, ep := newTestReceiver(t, deps, testReceiverConfig(audio.ChanMaskStereo))
	stream := newTestStream(t, deps, testSenderAddr)

	stream.send(t, ep.Writer(), testSourcePackets)

	checker := newFrameChecker(testSpec(audio.ChanMaskStereo))
	for i := 0; i < testSourcePackets*testFramesPerPacket; i++ {
		checker.read(t, receiver, 1)
	}
	assert.Equal(t, sndio.DeviceActive, receiver.State())

	// The stream stopped. The session survives exactly one timeout of
	// blank playback and is removed by the read that reaches it.
	frame := audio.NewFrame(testSamplesPerFrame * 2)
	blankFrames := testTimeout / testSamplesPerFrame
	assert.Equal(t, blankFrames-1, readBlank(t, receiver, frame, blankFrames-1))
	assert.Equal(t, 1, receiver.NumSessions())

	ok, err := receiver.Read(frame)
	require.NoError(t, err)
	assert.True(t, ok, "audio was played before")
	assert.Equal(t, 0, receiver.NumSessions())
	assert.Equal(t, sndio.DeviceIdle, receiver.State())

	require.NoError(t, receiver.Close())
	assert.Equal(t, deps.Pool.Size(), deps.Pool.Available())
}

func TestReceiverSourceMixesSessions(t *testing.T) {
	tests := []struct {
		name  string
		froms []net.Addr
	}{
		{"different addresses", []net.Addr{testSenderAddr, testSenderAddr2}},
		{"same address different ssrc", []net.Addr{testSenderAddr, testSenderAddr}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(t)
			receiver, slot, ep := newTestReceiver(t, deps, testReceiverConfig(audio.ChanMaskStereo))

			var streams []*testStream
			for _, from := range tt.froms {
				s := newTestStream(t, deps, from)
				s.send(t, ep.Writer(), testSourcePackets)
				streams = append(streams, s)
			}

			checker := newFrameChecker(testSpec(audio.ChanMaskStereo))
			for np := 0; np < 2*testSourcePackets; np++ {
				for nf := 0; nf < testFramesPerPacket; nf++ {
					checker.read(t, receiver, len(streams))
				}
				for _, s := range streams {
					s.send(t, ep.Writer(), 1)
				}
			}
			assert.Equal(t, len(streams), receiver.NumSessions())
			assert.Equal(t, len(streams), slot.Metrics().NumSessions)

			require.NoError(t, receiver.Close())
			assert.Equal(t, deps.Pool.Size(), deps.Pool.Available())
		})
	}
}

func TestReceiverSlotSessionLimit(t *testing.T) {
	deps := newTestDeps(t)
	cfg := testReceiverConfig(audio.ChanMaskStereo)
	cfg.MaxSessionsPerSlot = 1
	receiver, slot, ep := newTestReceiver(t, deps, cfg)

	first := newTestStream(t, deps, testSenderAddr)
	second := newTestStream(t, deps, testSenderAddr2)
	first.send(t, ep.Writer(), testSourcePackets)
	second.send(t, ep.Writer(), testSourcePackets)

	checker := newFrameChecker(testSpec(audio.ChanMaskStereo))
	checker.read(t, receiver, 1)

	m := slot.Metrics()
	assert.Equal(t, 1, m.NumSessions)
	assert.Equal(t, uint64(testSourcePackets), m.Rejected)
	require.NoError(t, receiver.Close())
}

func TestReceiverSlotRejectsBadPackets(t *testing.T) {
	deps := newTestDeps(t)
	receiver, slot, ep := newTestReceiver(t, deps, testReceiverConfig(audio.ChanMaskStereo))

	// Unknown payload type.
	pkt, err := deps.Pool.NewPacket()
	require.NoError(t, err)
	pkt.RTP = packet.RTP{SourceID: 7, Seqnum: 1, PayloadType: 96, Payload: pkt.Buffer()[rtp.HeaderSize : rtp.HeaderSize+4]}
	require.NoError(t, rtp.NewComposer().Compose(pkt))
	require.NoError(t, ep.Writer().Write(pkt))

	// Garbage.
	pkt, err = deps.Pool.NewPacket()
	require.NoError(t, err)
	require.NoError(t, pkt.SetData([]byte{0x01, 0x02, 0x03}))
	require.NoError(t, ep.Writer().Write(pkt))

	ok, err := receiver.Read(audio.NewFrame(20))
	require.NoError(t, err)
	assert.False(t, ok)

	m := slot.Metrics()
	assert.Equal(t, 0, m.NumSessions)
	assert.Equal(t, uint64(2), m.Violations)
	assert.Equal(t, deps.Pool.Size(), deps.Pool.Available())
}

func TestReceiverSlotRepairWithoutSession(t *testing.T) {
	deps := newTestDeps(t)
	receiver, err := NewReceiverSource(testReceiverConfig(audio.ChanMaskStereo), deps)
	require.NoError(t, err)
	slot, err := receiver.CreateSlot()
	require.NoError(t, err)
	_, err = slot.CreateEndpoint(address.IfaceAudioSource, address.ProtoRTPRS8MSource)
	require.NoError(t, err)
	repair, err := slot.CreateEndpoint(address.IfaceAudioRepair, address.ProtoRS8MRepair)
	require.NoError(t, err)

	// Build one block on a sender and deliver only its repair packets.
	sink, err := NewSenderSink(testSenderConfig(audio.ChanMaskStereo, rtp.PayloadTypeL16Stereo), deps)
	require.NoError(t, err)
	sslot, err := sink.CreateSlot()
	require.NoError(t, err)
	wire := &packetList{}
	src, err := sslot.CreateEndpoint(address.IfaceAudioSource, address.ProtoRTPRS8MSource)
	require.NoError(t, err)
	src.SetDestinationWriter(wire)
	rep, err := sslot.CreateEndpoint(address.IfaceAudioRepair, address.ProtoRS8MRepair)
	require.NoError(t, err)
	rep.SetDestinationWriter(wire)

	frame := audio.NewFrame(testSamplesPerFrame * 2)
	for i := 0; i < testSourcePackets*testFramesPerPacket; i++ {
		require.NoError(t, sink.Write(frame))
	}
	for _, pkt := range wire.pkts {
		if pkt.Has(packet.FlagRepair) {
			require.NoError(t, repair.Writer().Write(pkt))
		} else {
			pkt.Release()
		}
	}
	assert.Equal(t, testRepairPackets, repair.Pending())

	ok, err := receiver.Read(frame)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(testRepairPackets), slot.Metrics().Unrouted)
	assert.Equal(t, deps.Pool.Size(), deps.Pool.Available())
}

func TestReceiverSessionViolations(t *testing.T) {
	deps := newTestDeps(t)
	cfg := testReceiverConfig(audio.ChanMaskStereo)
	cfg.Session.MaxViolations = 3
	receiver, slot, ep := newTestReceiver(t, deps, cfg)
	stream := newTestStream(t, deps, testSenderAddr)

	stream.send(t, ep.Writer(), testSourcePackets)

	// Three packets that jump far ahead in sequence numbers.
	bad := &packetList{}
	stream.send(t, bad, 3)
	for _, pkt := range bad.pkts {
		pkt.RTP.Seqnum += 1000
		require.NoError(t, rtp.NewComposer().Compose(pkt))
		require.NoError(t, ep.Writer().Write(pkt))
	}

	checker := newFrameChecker(testSpec(audio.ChanMaskStereo))
	for i := 0; i < testSourcePackets*testFramesPerPacket; i++ {
		checker.read(t, receiver, 1)
	}
	sessions := slot.Sessions()
	require.Len(t, sessions, 1)

	// The bad packets are dropped one by one; the session ends on the read
	// after the limit is hit.
	frame := audio.NewFrame(testSamplesPerFrame * 2)
	for i := 0; i < 2; i++ {
		_, err := receiver.Read(frame)
		require.NoError(t, err)
		assert.True(t, frame.IsBlank())
	}
	assert.Equal(t, 0, receiver.NumSessions())
	assert.Equal(t, uint64(3), sessions[0].Metrics().Violations)
	assert.Equal(t, SessionTerminated, sessions[0].State())
	assert.ErrorIs(t, sessions[0].Err(), ErrTooManyViolations)
	assert.ErrorIs(t, sessions[0].Resume(), ErrSessionTerminated)
	assert.Equal(t, deps.Pool.Size(), deps.Pool.Available())
}

func TestReceiverSourcePauseResume(t *testing.T) {
	deps := newTestDeps(t)
	receiver, _, ep := newTestReceiver(t, deps, testReceiverConfig(audio.ChanMaskStereo))
	stream := newTestStream(t, deps, testSenderAddr)
	checker := newFrameChecker(testSpec(audio.ChanMaskStereo))

	stream.send(t, ep.Writer(), testSourcePackets)
	for np := 0; np < 10; np++ {
		for nf := 0; nf < testFramesPerPacket; nf++ {
			checker.read(t, receiver, 1)
		}
		stream.send(t, ep.Writer(), 1)
	}

	receiver.Pause()
	receiver.Pause()
	assert.Equal(t, sndio.DevicePaused, receiver.State())

	frame := audio.NewFrame(testSamplesPerFrame * 2)
	for i := 0; i < 8; i++ {
		ok, err := receiver.Read(frame)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, frame.IsBlank())
		assertSilent(t, frame)
	}
	stream.send(t, ep.Writer(), 5)

	require.NoError(t, receiver.Resume())
	require.NoError(t, receiver.Resume())
	assert.Equal(t, sndio.DeviceActive, receiver.State())

	// Playback continues exactly where it stopped.
	for np := 0; np < 10; np++ {
		for nf := 0; nf < testFramesPerPacket; nf++ {
			checker.read(t, receiver, 1)
		}
	}
	assert.Equal(t, 1, receiver.NumSessions())
	require.NoError(t, receiver.Close())
}

func TestReceiverSessionPauseResume(t *testing.T) {
	deps := newTestDeps(t)
	receiver, slot, ep := newTestReceiver(t, deps, testReceiverConfig(audio.ChanMaskStereo))
	stream := newTestStream(t, deps, testSenderAddr)
	checker := newFrameChecker(testSpec(audio.ChanMaskStereo))

	stream.send(t, ep.Writer(), testSourcePackets)
	for nf := 0; nf < testFramesPerPacket; nf++ {
		checker.read(t, receiver, 1)
	}
	sessions := slot.Sessions()
	require.Len(t, sessions, 1)
	sess := sessions[0]
	assert.Equal(t, SessionActive, sess.State())

	sess.Pause()
	sess.Pause()
	assert.Equal(t, SessionPaused, sess.State())

	frame := audio.NewFrame(testSamplesPerFrame * 2)
	for i := 0; i < 20; i++ {
		ok, err := receiver.Read(frame)
		require.NoError(t, err)
		assert.True(t, ok)
		assertSilent(t, frame)
	}
	// Buffering continues while paused; latency grows past the bound.
	stream.send(t, ep.Writer(), 30)

	require.NoError(t, sess.Resume())
	require.NoError(t, sess.Resume())
	assert.Equal(t, SessionActive, sess.State())

	for i := 0; i < 49*testFramesPerPacket; i++ {
		checker.read(t, receiver, 1)
	}
	assert.Equal(t, 1, receiver.NumSessions())

	m := sess.Metrics()
	assert.Equal(t, SessionActive, m.State)
	assert.True(t, m.LatencyValid)
	assert.Zero(t, m.Depacketizer.MissingSamples)
	require.NoError(t, receiver.Close())
}

func TestReceiverSourceRestart(t *testing.T) {
	deps := newTestDeps(t)
	receiver, slot, ep := newTestReceiver(t, deps, testReceiverConfig(audio.ChanMaskStereo))
	stream := newTestStream(t, deps, testSenderAddr)

	stream.send(t, ep.Writer(), testSourcePackets)
	frame := audio.NewFrame(testSamplesPerFrame * 2)
	_, err := receiver.Read(frame)
	require.NoError(t, err)
	old := slot.Sessions()
	require.Len(t, old, 1)

	receiver.Pause()
	require.NoError(t, receiver.Restart())
	assert.Equal(t, 0, receiver.NumSessions())
	assert.Equal(t, SessionTerminated, old[0].State())
	assert.ErrorIs(t, old[0].Err(), ErrSessionTerminated)
	assert.Equal(t, sndio.DeviceIdle, receiver.State())

	// The same sender starts a fresh session.
	stream.send(t, ep.Writer(), testSourcePackets)
	_, err = receiver.Read(frame)
	require.NoError(t, err)
	assert.Equal(t, 1, receiver.NumSessions())
	assert.NotEqual(t, old[0].ID(), slot.Sessions()[0].ID())
	assert.False(t, frame.IsBlank())

	require.NoError(t, receiver.Close())
	assert.Equal(t, deps.Pool.Size(), deps.Pool.Available())
}

func TestReceiverSourceClose(t *testing.T) {
	deps := newTestDeps(t)
	receiver, _, ep := newTestReceiver(t, deps, testReceiverConfig(audio.ChanMaskStereo))
	stream := newTestStream(t, deps, testSenderAddr)
	stream.send(t, ep.Writer(), testSourcePackets)

	require.NoError(t, receiver.Close())
	require.NoError(t, receiver.Close())
	assert.Equal(t, deps.Pool.Size(), deps.Pool.Available(), "queued packets released")

	_, err := receiver.Read(audio.NewFrame(20))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = receiver.CreateSlot()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, receiver.Resume(), ErrClosed)
	assert.ErrorIs(t, receiver.Restart(), ErrClosed)
}

func TestReceiverSlotEndpointErrors(t *testing.T) {
	deps := newTestDeps(t)
	receiver, err := NewReceiverSource(testReceiverConfig(audio.ChanMaskStereo), deps)
	require.NoError(t, err)

	tests := []struct {
		name    string
		setup   []address.Protocol
		iface   address.Interface
		proto   address.Protocol
		wantErr error
	}{
		{"duplicate source", []address.Protocol{address.ProtoRTP}, address.IfaceAudioSource, address.ProtoRTP, ErrEndpointExists},
		{"scheme mismatch", []address.Protocol{address.ProtoRTPRS8MSource}, address.IfaceAudioRepair, address.ProtoLDPCRepair, ErrSchemeMismatch},
		{"repair protocol on source", nil, address.IfaceAudioSource, address.ProtoRS8MRepair, address.ErrProtocolMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, err := receiver.CreateSlot()
			require.NoError(t, err)
			for _, proto := range tt.setup {
				_, err := slot.CreateEndpoint(address.IfaceAudioSource, proto)
				require.NoError(t, err)
			}
			_, err = slot.CreateEndpoint(tt.iface, tt.proto)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
