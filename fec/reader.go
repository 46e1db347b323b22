package fec

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/limits"
	"github.com/opd-ai/audiostream/packet"
)

// ReaderConfig bounds the reorder window of a Reader.
type ReaderConfig struct {
	// MaxSbnJump is the largest accepted distance, in blocks, between the
	// block being read and an incoming packet.
	MaxSbnJump int
}

// DefaultReaderConfig returns a window of 100 blocks.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{MaxSbnJump: 100}
}

// ParseFunc parses the RTP layer of a restored packet from pkt.Data.
type ParseFunc func(pkt *packet.Packet) error

// ViolationFunc is called for every packet dropped as a protocol violation.
type ViolationFunc func(err error)

// Reader returns source packets of an FEC-protected stream in block order.
// Missing source packets are restored from repair packets when at least N
// of the N+K packets of their block are present. A missing packet that
// cannot be restored is skipped once a later packet is available; until
// then Read returns nil so the caller can fill the gap with silence.
//
// Reader is not safe for concurrent use.
type Reader struct {
	cfg         ReaderConfig
	scheme      packet.FECScheme
	codec       Codec
	pool        *packet.Pool
	source      packet.Reader
	repair      packet.Reader
	parse       ParseFunc
	onViolation ViolationFunc

	started bool
	fresh   bool
	tried   bool
	sbn     uint32
	bits    uint
	n, k    int
	pos     int

	sourceBlock   []*packet.Packet
	repairBlock   []*packet.Packet
	sourcePending *packet.Packet
	repairPending *packet.Packet

	// delivered marks source positions already returned by Read; held
	// keeps their length-prefixed symbols for a later restore.
	delivered []bool
	held      [][]byte

	shards  [][]byte
	symbufs [][]byte

	restored uint64
	lost     uint64
}

// NewReader creates an FEC reader.
//
// Parameters:
//   - cfg: Reorder window
//   - scheme: FEC scheme of both streams
//   - codec: Erasure code used to restore packets
//   - pool: Pool for restored packets
//   - source: Ordered source packets
//   - repair: Ordered repair packets
//   - parse: Parser for restored packets
//   - onViolation: Optional callback for dropped malformed packets
func NewReader(cfg ReaderConfig, scheme packet.FECScheme, codec Codec, pool *packet.Pool,
	source, repair packet.Reader, parse ParseFunc, onViolation ViolationFunc,
) (*Reader, error) {
	if cfg.MaxSbnJump < 1 {
		return nil, fmt.Errorf("invalid fec reader window %d", cfg.MaxSbnJump)
	}
	if onViolation == nil {
		onViolation = func(error) {}
	}
	return &Reader{
		cfg:         cfg,
		scheme:      scheme,
		codec:       codec,
		pool:        pool,
		source:      source,
		repair:      repair,
		parse:       parse,
		onViolation: onViolation,
		bits:        packet.BlockNumBits(scheme),
	}, nil
}

// Restored returns the number of source packets restored so far.
func (r *Reader) Restored() uint64 { return r.restored }

// Lost returns the number of source packets skipped without restoring.
func (r *Reader) Lost() uint64 { return r.lost }

// Read implements packet.Reader.
func (r *Reader) Read() (*packet.Packet, error) {
	if !r.started {
		ok, err := r.start()
		if err != nil || !ok {
			return nil, err
		}
	}

	for {
		if err := r.fill(); err != nil {
			return nil, err
		}

		if r.pos >= r.n {
			r.nextBlock()
			continue
		}

		if pkt := r.sourceBlock[r.pos]; pkt != nil {
			if !r.tried {
				r.hold(r.pos, pkt.FEC.Payload)
			}
			r.sourceBlock[r.pos] = nil
			r.pos++
			return pkt, nil
		}

		if !r.tried && r.present() >= r.n {
			if err := r.restore(); err != nil {
				return nil, err
			}
			if r.sourceBlock[r.pos] != nil {
				continue
			}
		}

		if !r.hasLater() {
			return nil, nil
		}
		r.pos++
		r.lost++
	}
}

// start waits for the first well-formed source packet and begins at its
// block.
func (r *Reader) start() (bool, error) {
	for {
		pkt, err := r.source.Read()
		if err != nil || pkt == nil {
			return false, err
		}

		n := int(pkt.FEC.SourceBlockLength)
		k := int(pkt.FEC.BlockLength) - n
		if err := limits.ValidateBlockLength(n, k, r.codec.MaxBlockLength()); err != nil {
			r.violation(pkt, err)
			continue
		}

		r.started = true
		r.sbn = pkt.FEC.SourceBlockNumber
		r.setGeometry(n, k)
		r.sourcePending = pkt
		r.beginBlock()

		logrus.WithFields(logrus.Fields{
			"function": "Reader.start",
			"scheme":   r.scheme.String(),
			"sbn":      r.sbn,
			"esi":      pkt.FEC.EncodingSymbolID,
			"n":        n,
			"k":        k,
		}).Debug("Fec reader started")
		return true, nil
	}
}

func (r *Reader) beginBlock() {
	r.pos = 0
	r.fresh = true
	r.tried = false
	clear(r.delivered)
}

// hold copies the symbol of a delivered source packet so the block can
// still be decoded after the packet has left the reader.
func (r *Reader) hold(esi int, data []byte) {
	buf := binary.BigEndian.AppendUint16(r.held[esi][:0], uint16(len(data)))
	r.held[esi] = append(buf, data...)
	r.delivered[esi] = true
}

func (r *Reader) nextBlock() {
	for i, pkt := range r.sourceBlock {
		if pkt != nil {
			pkt.Release()
			r.sourceBlock[i] = nil
		}
	}
	for i, pkt := range r.repairBlock {
		if pkt != nil {
			pkt.Release()
			r.repairBlock[i] = nil
		}
	}
	r.sbn = (r.sbn + 1) & (uint32(1)<<r.bits - 1)
	r.beginBlock()
}

// setGeometry resizes the block buffers for a new (n, k).
func (r *Reader) setGeometry(n, k int) {
	if n == r.n && k == r.k {
		return
	}
	r.n, r.k = n, k
	r.sourceBlock = make([]*packet.Packet, n)
	r.repairBlock = make([]*packet.Packet, k)
	r.delivered = make([]bool, n)
	r.held = make([][]byte, n)
	r.shards = make([][]byte, n+k)
	r.symbufs = make([][]byte, n)
}

func (r *Reader) fill() error {
	for {
		pkt := r.sourcePending
		r.sourcePending = nil
		if pkt == nil {
			var err error
			if pkt, err = r.source.Read(); err != nil {
				return err
			}
			if pkt == nil {
				break
			}
		}
		if r.accept(pkt) {
			r.sourcePending = pkt
			break
		}
	}

	for {
		pkt := r.repairPending
		r.repairPending = nil
		if pkt == nil {
			var err error
			if pkt, err = r.repair.Read(); err != nil {
				return err
			}
			if pkt == nil {
				break
			}
		}
		if r.accept(pkt) {
			r.repairPending = pkt
			break
		}
	}
	return nil
}

// accept stores a packet of the current block, drops stale and broken
// packets, and returns true for packets of a later block.
func (r *Reader) accept(pkt *packet.Packet) bool {
	d := packet.BlockNumDiff(pkt.FEC.SourceBlockNumber, r.sbn, r.bits)
	switch {
	case d < 0:
		pkt.Release()
		return false
	case d > int64(r.cfg.MaxSbnJump):
		r.violation(pkt, fmt.Errorf("%w: sbn %d, reading %d", ErrBlockTooFarAhead, pkt.FEC.SourceBlockNumber, r.sbn))
		return false
	case d > 0:
		return true
	}

	n := int(pkt.FEC.SourceBlockLength)
	k := int(pkt.FEC.BlockLength) - n
	if r.fresh {
		if err := limits.ValidateBlockLength(n, k, r.codec.MaxBlockLength()); err != nil {
			r.violation(pkt, err)
			return false
		}
		r.setGeometry(n, k)
		r.fresh = false
	}
	if n != r.n || k != r.k {
		r.violation(pkt, fmt.Errorf("%w: %d+%d, block has %d+%d", ErrBlockLengthChanged, n, k, r.n, r.k))
		return false
	}

	esi := int(pkt.FEC.EncodingSymbolID)
	var slot **packet.Packet
	switch {
	case pkt.Has(packet.FlagRepair) && esi >= r.n:
		slot = &r.repairBlock[esi-r.n]
	case !pkt.Has(packet.FlagRepair) && esi < r.pos:
		pkt.Release()
		return false
	case !pkt.Has(packet.FlagRepair) && esi < r.n:
		slot = &r.sourceBlock[esi]
	default:
		r.violation(pkt, fmt.Errorf("%w: esi %d in %d+%d block", ErrMalformedPayloadID, esi, r.n, r.k))
		return false
	}
	if *slot != nil {
		pkt.Release()
		return false
	}
	*slot = pkt
	return false
}

func (r *Reader) violation(pkt *packet.Packet, err error) {
	logrus.WithFields(logrus.Fields{
		"function": "Reader.accept",
		"sbn":      pkt.FEC.SourceBlockNumber,
		"esi":      pkt.FEC.EncodingSymbolID,
		"error":    err.Error(),
	}).Warn("Dropping fec packet")
	pkt.Release()
	r.onViolation(err)
}

func (r *Reader) present() int {
	count := 0
	for i, pkt := range r.sourceBlock {
		if pkt != nil || r.delivered[i] {
			count++
		}
	}
	for _, pkt := range r.repairBlock {
		if pkt != nil {
			count++
		}
	}
	return count
}

// hasLater reports whether any packet after the current position exists.
func (r *Reader) hasLater() bool {
	if r.sourcePending != nil || r.repairPending != nil {
		return true
	}
	for _, pkt := range r.sourceBlock[r.pos+1:] {
		if pkt != nil {
			return true
		}
	}
	return false
}

// restore runs the codec over the current block and inserts restored
// source packets. Only allocation failures are returned.
func (r *Reader) restore() error {
	r.tried = true

	symLen := 0
	for _, pkt := range r.repairBlock {
		if pkt != nil {
			symLen = len(pkt.FEC.Payload)
			break
		}
	}
	if symLen <= limits.FECLengthPrefixSize {
		return nil
	}

	for i, pkt := range r.sourceBlock {
		if cap(r.symbufs[i]) < symLen {
			r.symbufs[i] = make([]byte, symLen)
		}
		var data []byte
		switch {
		case r.delivered[i]:
			data = r.held[i][limits.FECLengthPrefixSize:]
		case pkt != nil:
			data = pkt.FEC.Payload
		default:
			r.shards[i] = r.symbufs[i][:0]
			continue
		}
		if limits.FECLengthPrefixSize+len(data) > symLen {
			r.shards[i] = r.symbufs[i][:0]
			continue
		}
		sym := r.symbufs[i][:symLen]
		binary.BigEndian.PutUint16(sym, uint16(len(data)))
		copy(sym[limits.FECLengthPrefixSize:], data)
		clear(sym[limits.FECLengthPrefixSize+len(data):])
		r.shards[i] = sym
	}
	for j, pkt := range r.repairBlock {
		if pkt == nil {
			r.shards[r.n+j] = nil
			continue
		}
		r.shards[r.n+j] = pkt.FEC.Payload
	}

	if err := r.codec.Decode(r.shards, r.n, r.k); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Reader.restore",
			"sbn":      r.sbn,
			"error":    err.Error(),
		}).Debug("Cannot restore block")
		return nil
	}

	for i := r.pos; i < r.n; i++ {
		if r.sourceBlock[i] != nil {
			continue
		}
		sym := r.shards[i]
		if len(sym) < limits.FECLengthPrefixSize {
			continue
		}
		size := int(binary.BigEndian.Uint16(sym))
		if limits.FECLengthPrefixSize+size > len(sym) {
			continue
		}

		pkt, err := r.pool.NewPacket()
		if err != nil {
			return fmt.Errorf("failed to allocate restored packet: %w", err)
		}
		if err := pkt.SetData(sym[limits.FECLengthPrefixSize : limits.FECLengthPrefixSize+size]); err != nil {
			pkt.Release()
			continue
		}
		if err := r.parse(pkt); err != nil {
			pkt.Release()
			continue
		}
		pkt.Flags |= packet.FlagFEC | packet.FlagRestored
		pkt.FEC = packet.FEC{
			Scheme:            r.scheme,
			SourceBlockNumber: r.sbn,
			EncodingSymbolID:  uint16(i),
			SourceBlockLength: uint16(r.n),
			BlockLength:       uint16(r.n + r.k),
			Payload:           pkt.Data,
		}
		r.sourceBlock[i] = pkt
		r.restored++
	}

	logrus.WithFields(logrus.Fields{
		"function": "Reader.restore",
		"sbn":      r.sbn,
		"restored": r.restored,
	}).Debug("Restored block")
	return nil
}

// Close releases every packet held by the reader.
func (r *Reader) Close() {
	for _, blk := range [][]*packet.Packet{r.sourceBlock, r.repairBlock} {
		for i, pkt := range blk {
			if pkt != nil {
				pkt.Release()
				blk[i] = nil
			}
		}
	}
	r.sourcePending.Release()
	r.repairPending.Release()
	r.sourcePending, r.repairPending = nil, nil
	clear(r.delivered)
}
