package pipeline

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/address"
	"github.com/opd-ai/audiostream/fec"
	"github.com/opd-ai/audiostream/packet"
)

// SenderEndpoint applies the framing of one protocol to outgoing packets and
// hands them to a destination writer.
type SenderEndpoint struct {
	iface    address.Interface
	proto    address.Protocol
	composer *fec.Composer

	mu      sync.RWMutex
	dest    packet.Writer
	dstAddr net.Addr
}

func newSenderEndpoint(iface address.Interface, proto address.Protocol) *SenderEndpoint {
	e := &SenderEndpoint{iface: iface, proto: proto}
	if scheme := proto.FECScheme(); scheme != packet.FECNone {
		pos := fec.Footer
		if iface == address.IfaceAudioRepair {
			pos = fec.Header
		}
		e.composer = fec.NewComposer(scheme, pos)
	}
	return e
}

// Interface returns the interface kind of the endpoint.
func (e *SenderEndpoint) Interface() address.Interface {
	return e.iface
}

// Protocol returns the endpoint protocol.
func (e *SenderEndpoint) Protocol() address.Protocol {
	return e.proto
}

// SetDestinationWriter sets the writer receiving composed packets.
func (e *SenderEndpoint) SetDestinationWriter(w packet.Writer) {
	e.mu.Lock()
	e.dest = w
	e.mu.Unlock()
}

// SetDestinationAddress sets the address stamped on outgoing packets.
func (e *SenderEndpoint) SetDestinationAddress(addr net.Addr) {
	e.mu.Lock()
	e.dstAddr = addr
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "SenderEndpoint.SetDestinationAddress",
		"interface": e.iface.String(),
		"protocol":  e.proto.String(),
		"address":   addr.String(),
	}).Info("Set endpoint destination")
}

func (e *SenderEndpoint) destination() (packet.Writer, net.Addr) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dest, e.dstAddr
}

// Write implements packet.Writer.
func (e *SenderEndpoint) Write(pkt *packet.Packet) error {
	dest, addr := e.destination()
	if dest == nil {
		return fmt.Errorf("%w: %s", ErrNoDestination, e.iface)
	}

	if e.composer != nil {
		if err := e.composer.Compose(pkt); err != nil {
			return fmt.Errorf("failed to compose %s packet: %w", e.proto, err)
		}
	}
	pkt.Flags |= packet.FlagComposed
	if addr != nil {
		pkt.Flags |= packet.FlagUDP
		pkt.UDP.DstAddr = addr
	}
	return dest.Write(pkt)
}
