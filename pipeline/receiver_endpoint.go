package pipeline

import (
	"github.com/opd-ai/audiostream/address"
	"github.com/opd-ai/audiostream/fec"
	"github.com/opd-ai/audiostream/packet"
	"github.com/opd-ai/audiostream/rtp"
)

// ReceiverEndpoint accepts packets of one protocol from the network.
// Packets are queued by Writer and parsed on the thread driving
// ReceiverSource.Read.
type ReceiverEndpoint struct {
	iface     address.Interface
	proto     address.Protocol
	queue     *packet.Queue
	rtpParser *rtp.Parser
	fecParser *fec.Parser
}

func newReceiverEndpoint(iface address.Interface, proto address.Protocol, formats *rtp.FormatMap, queueSize int) *ReceiverEndpoint {
	e := &ReceiverEndpoint{
		iface: iface,
		proto: proto,
		queue: packet.NewQueue(queueSize),
	}
	if iface == address.IfaceAudioSource {
		e.rtpParser = rtp.NewParser(formats)
	}
	if scheme := proto.FECScheme(); scheme != packet.FECNone {
		pos := fec.Footer
		if iface == address.IfaceAudioRepair {
			pos = fec.Header
		}
		e.fecParser = fec.NewParser(scheme, pos)
	}
	return e
}

// Interface returns the interface kind of the endpoint.
func (e *ReceiverEndpoint) Interface() address.Interface {
	return e.iface
}

// Protocol returns the endpoint protocol.
func (e *ReceiverEndpoint) Protocol() address.Protocol {
	return e.proto
}

// Writer returns the goroutine-safe entry point for received packets. Only
// Data and the UDP view of written packets are used.
func (e *ReceiverEndpoint) Writer() packet.Writer {
	return e.queue
}

// Pending returns the number of packets waiting to be parsed.
func (e *ReceiverEndpoint) Pending() int {
	return e.queue.Len()
}

// pull returns the next queued packet, parsed. When parsing fails the
// packet is returned together with the error and stays with the caller.
func (e *ReceiverEndpoint) pull() (*packet.Packet, error) {
	pkt, err := e.queue.Read()
	if err != nil || pkt == nil {
		return nil, err
	}
	return pkt, e.parse(pkt)
}

func (e *ReceiverEndpoint) parse(pkt *packet.Packet) error {
	pkt.Flags &= packet.FlagUDP
	pkt.RTP = packet.RTP{}
	pkt.FEC = packet.FEC{}

	data := pkt.Data
	if e.fecParser != nil {
		inner, err := e.fecParser.Parse(pkt, data)
		if err != nil {
			return err
		}
		data = inner
	}
	if e.rtpParser != nil {
		return e.rtpParser.Parse(pkt, data)
	}
	return nil
}

func (e *ReceiverEndpoint) close() {
	e.queue.Drain()
}
