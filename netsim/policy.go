package netsim

import (
	"math/rand/v2"

	"github.com/opd-ai/audiostream/packet"
)

// Verdict is the fate of one packet on the simulated link.
type Verdict int

const (
	// Deliver passes the packet on.
	Deliver Verdict = iota
	// Drop loses the packet.
	Drop
	// Hold delays the packet until the next one is delivered, swapping
	// their order.
	Hold
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case Deliver:
		return "deliver"
	case Drop:
		return "drop"
	case Hold:
		return "hold"
	default:
		return "unknown"
	}
}

// Policy decides the fate of a packet. index counts every packet written
// to the network, starting at zero.
type Policy interface {
	Apply(index int, pkt *packet.Packet) Verdict
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(index int, pkt *packet.Packet) Verdict

// Apply implements Policy.
func (f PolicyFunc) Apply(index int, pkt *packet.Packet) Verdict {
	return f(index, pkt)
}

// DropEvery drops packets whose index is offset modulo every.
func DropEvery(every, offset int) Policy {
	return PolicyFunc(func(index int, _ *packet.Packet) Verdict {
		if every > 0 && index%every == offset {
			return Drop
		}
		return Deliver
	})
}

// DropFlagged drops every packet carrying all of flags, such as every
// repair packet.
func DropFlagged(flags packet.Flags) Policy {
	return PolicyFunc(func(_ int, pkt *packet.Packet) Verdict {
		if pkt.Has(flags) {
			return Drop
		}
		return Deliver
	})
}

// DropRandom drops packets with probability p. The same seed yields the
// same losses.
func DropRandom(p float64, seed uint64) Policy {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return PolicyFunc(func(int, *packet.Packet) Verdict {
		if rng.Float64() < p {
			return Drop
		}
		return Deliver
	})
}

// ReorderEvery holds packets whose index is offset modulo every, so that
// each of them arrives after its successor.
func ReorderEvery(every, offset int) Policy {
	return PolicyFunc(func(index int, _ *packet.Packet) Verdict {
		if every > 0 && index%every == offset {
			return Hold
		}
		return Deliver
	})
}
