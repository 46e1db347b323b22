package packet

import (
	"fmt"
	"net"
	"time"
)

// Flags describe the layers present in a packet and its role.
type Flags uint16

const (
	// FlagUDP means the UDP view is populated.
	FlagUDP Flags = 1 << iota
	// FlagRTP means the RTP view is populated.
	FlagRTP
	// FlagFEC means the FEC view is populated.
	FlagFEC
	// FlagAudio marks an audio source packet.
	FlagAudio
	// FlagRepair marks an FEC repair packet.
	FlagRepair
	// FlagRestored marks a source packet reconstructed from repair data.
	FlagRestored
	// FlagComposed means Data holds the final wire bytes.
	FlagComposed
)

// UDP is the datagram layer of a packet.
type UDP struct {
	SrcAddr    net.Addr
	DstAddr    net.Addr
	ReceivedAt time.Time
}

// RTP is the RTP layer of a packet.
type RTP struct {
	SourceID    uint32
	Seqnum      uint16
	Timestamp   uint32
	Duration    uint32 // samples per channel
	PayloadType uint8
	Marker      bool
	Payload     []byte
}

// FEC is the FEC payload ID and symbol of a packet.
type FEC struct {
	Scheme            FECScheme
	SourceBlockNumber uint32
	EncodingSymbolID  uint16
	SourceBlockLength uint16
	BlockLength       uint16
	// Payload is the encoding symbol: the RTP bytes of a source packet or
	// the repair data of a repair packet.
	Payload []byte
}

// Packet is a unit of data moving through the pipelines.
type Packet struct {
	Flags Flags
	UDP   UDP
	RTP   RTP
	FEC   FEC
	// Data holds the wire bytes. Its capacity is the pool buffer size.
	Data []byte

	pool     *Pool
	index    int
	released bool
}

// New creates a heap-allocated packet holding a copy of data. Release is a
// no-op for such packets.
func New(data []byte) *Packet {
	p := &Packet{index: -1}
	p.Data = append([]byte(nil), data...)
	return p
}

// Has reports whether every flag of f is set.
func (p *Packet) Has(f Flags) bool {
	return p.Flags&f == f
}

// Buffer returns Data resliced to its full capacity for writing.
func (p *Packet) Buffer() []byte {
	return p.Data[:cap(p.Data)]
}

// SetData copies b into the packet buffer.
func (p *Packet) SetData(b []byte) error {
	if p.pool == nil && cap(p.Data) < len(b) {
		p.Data = make([]byte, len(b))
	}
	if cap(p.Data) < len(b) {
		return fmt.Errorf("%w: %d bytes into %d", ErrBufferTooSmall, len(b), cap(p.Data))
	}
	p.Data = p.Data[:len(b)]
	copy(p.Data, b)
	return nil
}

// Begin returns the RTP timestamp of the first sample.
func (p *Packet) Begin() uint32 {
	return p.RTP.Timestamp
}

// End returns the RTP timestamp following the last sample.
func (p *Packet) End() uint32 {
	return p.RTP.Timestamp + p.RTP.Duration
}

// Compare orders packets of the same stream. RTP packets are ordered by
// sequence number; packets carrying only FEC are ordered by source block
// number, then encoding symbol ID. The result is negative, zero or positive.
func (p *Packet) Compare(other *Packet) int {
	if p.Has(FlagRTP) && other.Has(FlagRTP) {
		return SeqnumDiff(p.RTP.Seqnum, other.RTP.Seqnum)
	}
	if p.Has(FlagFEC) && other.Has(FlagFEC) {
		bits := BlockNumBits(p.FEC.Scheme)
		if d := BlockNumDiff(p.FEC.SourceBlockNumber, other.FEC.SourceBlockNumber, bits); d != 0 {
			if d < 0 {
				return -1
			}
			return 1
		}
		return int(p.FEC.EncodingSymbolID) - int(other.FEC.EncodingSymbolID)
	}
	return 0
}

// Release returns the packet buffer to its pool. Calling it again is a
// no-op only until the pool hands the buffer out again: the next owner gets
// the same *Packet, so a stale Release would free its buffer. Holders must
// drop their reference after Release.
func (p *Packet) Release() {
	if p == nil || p.pool == nil || p.released {
		return
	}
	p.released = true
	p.pool.put(p.index)
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	s := fmt.Sprintf("packet{flags=%#x len=%d", p.Flags, len(p.Data))
	if p.Has(FlagRTP) {
		s += fmt.Sprintf(" ssrc=%d sn=%d ts=%d dur=%d pt=%d", p.RTP.SourceID, p.RTP.Seqnum, p.RTP.Timestamp, p.RTP.Duration, p.RTP.PayloadType)
	}
	if p.Has(FlagFEC) {
		s += fmt.Sprintf(" fec=%s sbn=%d esi=%d sbl=%d bl=%d", p.FEC.Scheme, p.FEC.SourceBlockNumber, p.FEC.EncodingSymbolID, p.FEC.SourceBlockLength, p.FEC.BlockLength)
	}
	return s + "}"
}
