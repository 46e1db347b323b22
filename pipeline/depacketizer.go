package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/audio"
	"github.com/opd-ai/audiostream/packet"
	"github.com/opd-ai/audiostream/rtp"
)

// Depacketizer turns a stream of ordered RTP packets into continuous audio.
// Playback is driven by the stream timestamp: a gap between packets becomes
// silence and a packet behind the playback position is dropped.
type Depacketizer struct {
	in       packet.Reader
	format   rtp.Format
	channels int

	pkt     *packet.Packet
	samples []float32

	pos     uint32
	started bool

	decoded uint64
	missing uint64
	dropped uint64
}

// NewDepacketizer creates a depacketizer for packets of format.
func NewDepacketizer(in packet.Reader, format rtp.Format) *Depacketizer {
	return &Depacketizer{
		in:       in,
		format:   format,
		channels: format.SampleSpec.NumChannels(),
	}
}

// Started reports whether the first packet has been played.
func (d *Depacketizer) Started() bool {
	return d.started
}

// Position returns the stream timestamp of the next sample to play.
func (d *Depacketizer) Position() uint32 {
	return d.pos
}

// Read implements audio.FrameReader.
func (d *Depacketizer) Read(frame *audio.Frame) error {
	if len(frame.Samples)%d.channels != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", audio.ErrFrameSize, len(frame.Samples), d.channels)
	}

	var decoded, missing, dropped int
	out := frame.Samples
	for len(out) > 0 {
		n, err := d.fetch()
		if err != nil {
			return err
		}
		dropped += n

		want := len(out) / d.channels
		if d.pkt == nil {
			clear(out)
			if d.started {
				d.pos += uint32(want)
				missing += want
			}
			break
		}

		if !d.started {
			d.pos = d.pkt.Begin()
			d.started = true
		}

		if gap := packet.TimestampDiff(d.pkt.Begin(), d.pos); gap > 0 {
			n := int(min(gap, int64(want)))
			clear(out[:n*d.channels])
			out = out[n*d.channels:]
			d.pos += uint32(n)
			missing += n
			continue
		}

		off := int(packet.TimestampDiff(d.pos, d.pkt.Begin()))
		n = min(int(d.pkt.RTP.Duration)-off, want)
		copy(out, d.samples[off*d.channels:(off+n)*d.channels])
		out = out[n*d.channels:]
		d.pos += uint32(n)
		decoded += n

		if off+n == int(d.pkt.RTP.Duration) {
			d.pkt.Release()
			d.pkt = nil
		}
	}

	frame.Flags = 0
	if decoded > 0 {
		frame.Flags |= audio.FrameNotBlank
	}
	if missing > 0 {
		frame.Flags |= audio.FrameIncomplete
	}
	if dropped > 0 {
		frame.Flags |= audio.FramePacketDrops
	}
	d.decoded += uint64(decoded)
	d.missing += uint64(missing)
	d.dropped += uint64(dropped)
	return nil
}

// fetch makes sure d.pkt holds the next playable packet, if any, and
// returns the number of late packets dropped on the way.
func (d *Depacketizer) fetch() (int, error) {
	dropped := 0
	for d.pkt == nil {
		pkt, err := d.in.Read()
		if err != nil || pkt == nil {
			return dropped, err
		}
		if d.started && packet.TimestampDiff(pkt.End(), d.pos) <= 0 {
			logrus.WithFields(logrus.Fields{
				"function": "Depacketizer.fetch",
				"seqnum":   pkt.RTP.Seqnum,
				"end":      pkt.End(),
				"position": d.pos,
			}).Debug("Dropping late packet")
			pkt.Release()
			dropped++
			continue
		}

		need := int(pkt.RTP.Duration) * d.channels
		if cap(d.samples) < need {
			d.samples = make([]float32, need)
		}
		d.samples = d.samples[:need]
		d.format.DecodeSamples(d.samples, pkt.RTP.Payload)
		d.pkt = pkt
	}
	return dropped, nil
}

// Close releases the packet being played.
func (d *Depacketizer) Close() {
	d.pkt.Release()
	d.pkt = nil
}

// DepacketizerStats counts samples per channel and packets seen by a
// depacketizer.
type DepacketizerStats struct {
	DecodedSamples uint64
	MissingSamples uint64
	LatePackets    uint64
}

// Stats returns the counters accumulated so far.
func (d *Depacketizer) Stats() DepacketizerStats {
	return DepacketizerStats{
		DecodedSamples: d.decoded,
		MissingSamples: d.missing,
		LatePackets:    d.dropped,
	}
}
