package rtp

import (
	"fmt"

	"github.com/pion/rtp"

	"github.com/opd-ai/audiostream/packet"
)

// Composer encodes packet.RTP into wire bytes.
type Composer struct{}

// NewComposer creates an RTP composer.
func NewComposer() *Composer {
	return &Composer{}
}

// Compose writes the RTP header and payload into the packet buffer and sets
// pkt.Data to the result. The payload may already live at
// Buffer()[HeaderSize:], in which case it is left in place.
func (c *Composer) Compose(pkt *packet.Packet) error {
	r := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         pkt.RTP.Marker,
			PayloadType:    pkt.RTP.PayloadType,
			SequenceNumber: pkt.RTP.Seqnum,
			Timestamp:      pkt.RTP.Timestamp,
			SSRC:           pkt.RTP.SourceID,
		},
		Payload: pkt.RTP.Payload,
	}

	buf := pkt.Buffer()
	size := r.MarshalSize()
	if size > len(buf) {
		return fmt.Errorf("%w: rtp packet of %d bytes into %d", packet.ErrBufferTooSmall, size, len(buf))
	}
	n, err := r.MarshalTo(buf)
	if err != nil {
		return fmt.Errorf("failed to marshal rtp packet: %w", err)
	}

	pkt.Data = buf[:n]
	pkt.RTP.Payload = pkt.Data[n-len(pkt.RTP.Payload):]
	pkt.Flags |= packet.FlagRTP
	return nil
}
