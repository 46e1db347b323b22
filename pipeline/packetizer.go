package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/packet"
	"github.com/opd-ai/audiostream/rtp"
)

// Packetizer cuts a stream of frames into RTP packets of a fixed number of
// samples. Samples are encoded straight into pool buffers.
type Packetizer struct {
	out      packet.Writer
	pool     *packet.Pool
	composer *rtp.Composer
	format   rtp.Format

	samplesPerPacket int
	channels         int

	sourceID  uint32
	seqnum    uint16
	timestamp uint32

	pkt    *packet.Packet
	filled int

	packets uint64
}

// NewPacketizer creates a packetizer.
//
// Parameters:
//   - out: Downstream writer receiving composed RTP packets
//   - pool: Pool for packet buffers
//   - format: Payload format of the packets
//   - samplesPerPacket: Samples per channel in every packet
//
// Returns:
//   - *Packetizer: New packetizer with a random SSRC, sequence number and timestamp
//   - error: Error if the packet does not fit the pool buffers
func NewPacketizer(out packet.Writer, pool *packet.Pool, format rtp.Format, samplesPerPacket int) (*Packetizer, error) {
	if samplesPerPacket < 1 {
		return nil, fmt.Errorf("%w: %d samples per packet", ErrInvalidConfig, samplesPerPacket)
	}
	if size := rtp.HeaderSize + format.PayloadSize(samplesPerPacket); size > pool.BufferSize() {
		return nil, fmt.Errorf("%w: packet of %d bytes exceeds buffer of %d", ErrInvalidConfig, size, pool.BufferSize())
	}

	var seed [10]byte
	if _, err := rand.Read(seed[:]); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewPacketizer",
			"error":    err.Error(),
		}).Error("Failed to generate stream identifiers")
		return nil, fmt.Errorf("failed to generate ssrc: %w", err)
	}

	p := &Packetizer{
		out:              out,
		pool:             pool,
		composer:         rtp.NewComposer(),
		format:           format,
		samplesPerPacket: samplesPerPacket,
		channels:         format.SampleSpec.NumChannels(),
		sourceID:         binary.BigEndian.Uint32(seed[0:4]),
		seqnum:           binary.BigEndian.Uint16(seed[4:6]),
		timestamp:        binary.BigEndian.Uint32(seed[6:10]),
	}

	logrus.WithFields(logrus.Fields{
		"function":           "NewPacketizer",
		"ssrc":               p.sourceID,
		"payload_type":       format.PayloadType,
		"samples_per_packet": samplesPerPacket,
	}).Info("Created packetizer")
	return p, nil
}

// SourceID returns the SSRC of the stream.
func (p *Packetizer) SourceID() uint32 {
	return p.sourceID
}

// Packets returns the number of packets written downstream.
func (p *Packetizer) Packets() uint64 {
	return p.packets
}

// Write implements audio.FrameWriter. Every sample of the frame ends up in
// a packet; a packet is emitted each time one fills up.
func (p *Packetizer) Write(frame *audio.Frame) error {
	samples := frame.Samples
	if len(samples)%p.channels != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", audio.ErrFrameSize, len(samples), p.channels)
	}

	for len(samples) > 0 {
		if p.pkt == nil {
			pkt, err := p.pool.NewPacket()
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Packetizer.Write",
					"seqnum":   p.seqnum,
				}).Error("Failed to allocate packet")
				return fmt.Errorf("failed to allocate packet: %w", err)
			}
			p.pkt = pkt
			p.filled = 0
		}

		n := min(p.samplesPerPacket-p.filled, len(samples)/p.channels)
		off := rtp.HeaderSize + p.format.PayloadSize(p.filled)
		p.format.EncodeSamples(p.pkt.Buffer()[off:], samples[:n*p.channels])
		p.filled += n
		samples = samples[n*p.channels:]

		if p.filled == p.samplesPerPacket {
			if err := p.emit(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush emits the partially filled packet, if any, with a shorter duration.
func (p *Packetizer) Flush() error {
	if p.pkt == nil || p.filled == 0 {
		return nil
	}
	return p.emit()
}

// Close releases the pending packet without emitting it.
func (p *Packetizer) Close() {
	p.pkt.Release()
	p.pkt = nil
}

func (p *Packetizer) emit() error {
	pkt := p.pkt
	p.pkt = nil

	size := p.format.PayloadSize(p.filled)
	pkt.Flags = packet.FlagRTP | packet.FlagAudio
	pkt.RTP = packet.RTP{
		SourceID:    p.sourceID,
		Seqnum:      p.seqnum,
		Timestamp:   p.timestamp,
		Duration:    uint32(p.filled),
		PayloadType: p.format.PayloadType,
		Payload:     pkt.Buffer()[rtp.HeaderSize : rtp.HeaderSize+size],
	}
	if err := p.composer.Compose(pkt); err != nil {
		pkt.Release()
		return err
	}

	p.seqnum++
	p.timestamp += uint32(p.filled)
	p.packets++

	if err := p.out.Write(pkt); err != nil {
		pkt.Release()
		return err
	}
	return nil
}
