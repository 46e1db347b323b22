package netsim

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/packet"
)

// DeliveryRecord describes what happened to one packet.
type DeliveryRecord struct {
	Index   int
	Size    int
	From    string
	To      string
	Repair  bool
	Verdict Verdict
}

// Stats summarizes the traffic of a network.
type Stats struct {
	Written    int
	Delivered  int
	Dropped    int
	Reordered  int
	Unroutable int
	// Rejected counts packets refused by their receiver, for example by a
	// full queue.
	Rejected int
}

// Network is an in-memory datagram network. Sender endpoints write to it
// through Writer, and packets reach the receiver writer attached at their
// destination address after the policies have been applied. Delivery is
// synchronous: a delivered packet is written to its receiver before Write
// returns.
type Network struct {
	mu       sync.Mutex
	routes   map[string]packet.Writer
	policies []Policy
	held     *packet.Packet
	log      []DeliveryRecord
	stats    Stats
}

// New creates a network applying policies in order. The first policy that
// does not return Deliver decides the fate of a packet.
func New(policies ...Policy) *Network {
	logrus.WithFields(logrus.Fields{
		"function": "netsim.New",
		"policies": len(policies),
	}).Debug("Created simulated network")
	return &Network{routes: make(map[string]packet.Writer), policies: policies}
}

// Attach routes packets sent to addr into w.
func (n *Network) Attach(addr net.Addr, w packet.Writer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes[addr.String()] = w
}

// Detach removes the route to addr. Later packets to addr are dropped.
func (n *Network) Detach(addr net.Addr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.routes, addr.String())
}

// Writer returns a packet.Writer sending from addr. It is meant to be the
// destination writer of a sender endpoint that has a destination address.
func (n *Network) Writer(from net.Addr) packet.Writer {
	return packet.WriterFunc(func(pkt *packet.Packet) error {
		return n.send(from, pkt)
	})
}

func (n *Network) send(from net.Addr, pkt *packet.Packet) error {
	if !pkt.Has(packet.FlagUDP) || pkt.UDP.DstAddr == nil {
		return fmt.Errorf("netsim: packet from %s has no destination", from)
	}
	pkt.UDP.SrcAddr = from

	n.mu.Lock()
	defer n.mu.Unlock()

	index := n.stats.Written
	n.stats.Written++

	verdict := Deliver
	for _, p := range n.policies {
		if verdict = p.Apply(index, pkt); verdict != Deliver {
			break
		}
	}
	n.record(index, pkt, verdict)

	switch verdict {
	case Drop:
		n.stats.Dropped++
		pkt.Release()
		return nil
	case Hold:
		if n.held == nil {
			n.stats.Reordered++
			n.held = pkt
			return nil
		}
	}

	held := n.held
	n.held = nil
	n.deliver(pkt)
	if held != nil {
		n.deliver(held)
	}
	return nil
}

func (n *Network) record(index int, pkt *packet.Packet, verdict Verdict) {
	n.log = append(n.log, DeliveryRecord{
		Index:   index,
		Size:    len(pkt.Data),
		From:    pkt.UDP.SrcAddr.String(),
		To:      pkt.UDP.DstAddr.String(),
		Repair:  pkt.Has(packet.FlagRepair),
		Verdict: verdict,
	})
}

// deliver hands pkt to its receiver. A packet the receiver refuses is
// dropped like a datagram hitting a full socket buffer; the sender is not
// told.
func (n *Network) deliver(pkt *packet.Packet) {
	w, ok := n.routes[pkt.UDP.DstAddr.String()]
	if !ok {
		n.stats.Unroutable++
		pkt.Release()
		logrus.WithFields(logrus.Fields{
			"function": "Network.deliver",
			"to":       pkt.UDP.DstAddr.String(),
		}).Debug("No route for packet")
		return
	}
	if err := w.Write(pkt); err != nil {
		n.stats.Rejected++
		logrus.WithFields(logrus.Fields{
			"function": "Network.deliver",
			"to":       pkt.UDP.DstAddr.String(),
			"error":    err.Error(),
		}).Debug("Receiver rejected packet")
		pkt.Release()
		return
	}
	n.stats.Delivered++
}

// Flush delivers a held packet, if any.
func (n *Network) Flush() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	held := n.held
	n.held = nil
	if held != nil {
		n.deliver(held)
	}
	return nil
}

// Close releases a held packet without delivering it.
func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.held.Release()
	n.held = nil
}

// Stats returns the traffic counters.
func (n *Network) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}

// DeliveryLog returns a copy of the per-packet log.
func (n *Network) DeliveryLog() []DeliveryRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	log := make([]DeliveryRecord, len(n.log))
	copy(log, n.log)
	return log
}

// ClearDeliveryLog empties the per-packet log. Counters are kept.
func (n *Network) ClearDeliveryLog() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.log = nil
}
