package rtp

import (
	"fmt"

	"github.com/pion/rtp"

	"github.com/opd-ai/audiostream/packet"
)

// HeaderSize is the size of the RTP header written by Composer.
const HeaderSize = 12

// Parser decodes RTP packets.
type Parser struct {
	formats *FormatMap
}

// NewParser creates a parser resolving durations through formats.
func NewParser(formats *FormatMap) *Parser {
	return &Parser{formats: formats}
}

// Parse decodes data into pkt.RTP. The payload references data. When the
// payload type is unknown the header is still filled in and
// ErrUnknownPayloadType is returned.
func (p *Parser) Parse(pkt *packet.Packet, data []byte) error {
	var r rtp.Packet
	if err := r.Unmarshal(data); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	if r.Version != 2 {
		return fmt.Errorf("%w: version %d", ErrMalformedPacket, r.Version)
	}

	pkt.Flags |= packet.FlagRTP | packet.FlagAudio
	pkt.RTP = packet.RTP{
		SourceID:    r.SSRC,
		Seqnum:      r.SequenceNumber,
		Timestamp:   r.Timestamp,
		PayloadType: r.PayloadType,
		Marker:      r.Marker,
		Payload:     r.Payload,
	}

	format, ok := p.formats.Lookup(r.PayloadType)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPayloadType, r.PayloadType)
	}
	n, err := format.SamplesPerChan(r.Payload)
	if err != nil {
		return err
	}
	pkt.RTP.Duration = uint32(n)
	return nil
}
