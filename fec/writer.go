package fec

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/limits"
	"github.com/opd-ai/audiostream/packet"
)

// WriterConfig sets the block geometry of a Writer.
type WriterConfig struct {
	// NumSourcePackets is N, the number of source packets per block.
	NumSourcePackets int
	// NumRepairPackets is K, the number of repair packets per block.
	NumRepairPackets int
}

// DefaultWriterConfig returns N=18, K=10.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{NumSourcePackets: 18, NumRepairPackets: 10}
}

// Validate checks the block geometry against the codec limit.
func (c WriterConfig) Validate(maxBlockLength int) error {
	if err := limits.ValidateBlockLength(c.NumSourcePackets, c.NumRepairPackets, maxBlockLength); err != nil {
		return err
	}
	if c.NumRepairPackets < 1 {
		return fmt.Errorf("%w: at least one repair packet required", limits.ErrBlockEmpty)
	}
	return nil
}

// Writer stamps payload IDs on source packets and emits K repair packets
// after every N source packets.
//
// Repair packets of a block are encoded and allocated before the last
// source packet of the block is passed downstream, so a failed Write
// always leaves the packet with the caller. A repair packet rejected
// downstream after that point is reported by the next Write, which then
// does not take the packet.
type Writer struct {
	cfg    WriterConfig
	scheme packet.FECScheme
	codec  Codec
	pool   *packet.Pool
	out    packet.Writer

	sbn     uint32
	sbnMask uint32
	pos     int
	symbols [][]byte
	maxLen  int
	repairs []*packet.Packet
	err     error
}

// NewWriter creates an FEC writer.
//
// Parameters:
//   - cfg: Block geometry
//   - scheme: FEC scheme written into payload IDs
//   - codec: Erasure code computing repair symbols
//   - pool: Pool for repair packets
//   - out: Downstream writer receiving source and repair packets
//
// Returns:
//   - *Writer: New writer starting at block 0
//   - error: Block geometry error
func NewWriter(cfg WriterConfig, scheme packet.FECScheme, codec Codec, pool *packet.Pool, out packet.Writer) (*Writer, error) {
	if err := cfg.Validate(codec.MaxBlockLength()); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewWriter",
			"n":        cfg.NumSourcePackets,
			"k":        cfg.NumRepairPackets,
			"error":    err.Error(),
		}).Error("Invalid fec block geometry")
		return nil, err
	}

	w := &Writer{
		cfg:     cfg,
		scheme:  scheme,
		codec:   codec,
		pool:    pool,
		out:     out,
		sbnMask: uint32(1)<<packet.BlockNumBits(scheme) - 1,
		symbols: make([][]byte, cfg.NumSourcePackets),
		repairs: make([]*packet.Packet, 0, cfg.NumRepairPackets),
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewWriter",
		"scheme":   scheme.String(),
		"n":        cfg.NumSourcePackets,
		"k":        cfg.NumRepairPackets,
	}).Info("Created fec writer")
	return w, nil
}

// Write implements packet.Writer for composed RTP source packets.
func (w *Writer) Write(pkt *packet.Packet) error {
	if err := w.err; err != nil {
		w.err = nil
		return err
	}
	if !pkt.Has(packet.FlagRTP) {
		return fmt.Errorf("fec writer: expected rtp packet, got %s", pkt)
	}
	if len(pkt.Data)+limits.FECLengthPrefixSize+PayloadIDSize > w.pool.BufferSize() {
		return fmt.Errorf("%w: source packet of %d bytes", packet.ErrBufferTooSmall, len(pkt.Data))
	}

	n := w.cfg.NumSourcePackets
	pkt.Flags |= packet.FlagFEC
	pkt.FEC = packet.FEC{
		Scheme:            w.scheme,
		SourceBlockNumber: w.sbn,
		EncodingSymbolID:  uint16(w.pos),
		SourceBlockLength: uint16(n),
		BlockLength:       uint16(n + w.cfg.NumRepairPackets),
		Payload:           pkt.Data,
	}

	// Keep a copy; downstream owns the packet after Write.
	sym := w.symbols[w.pos][:0]
	sym = binary.BigEndian.AppendUint16(sym, uint16(len(pkt.Data)))
	sym = append(sym, pkt.Data...)
	w.symbols[w.pos] = sym
	if len(sym) > w.maxLen {
		w.maxLen = len(sym)
	}

	last := w.pos == n-1
	if last {
		if err := w.prepareRepair(); err != nil {
			return err
		}
	}

	if err := w.out.Write(pkt); err != nil {
		w.dropRepair()
		return err
	}

	w.pos++
	if !last {
		return nil
	}
	w.finishBlock()
	return nil
}

// prepareRepair encodes the current block and allocates its repair packets.
func (w *Writer) prepareRepair() error {
	for i, sym := range w.symbols {
		if len(sym) < w.maxLen {
			sym = append(sym, make([]byte, w.maxLen-len(sym))...)
			w.symbols[i] = sym
		}
	}

	repair, err := w.codec.Encode(w.symbols, w.cfg.NumRepairPackets)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Writer.prepareRepair",
			"sbn":      w.sbn,
			"error":    err.Error(),
		}).Error("Failed to encode repair symbols")
		return fmt.Errorf("failed to encode block %d: %w", w.sbn, err)
	}

	n := w.cfg.NumSourcePackets
	for j, sym := range repair {
		pkt, err := w.pool.NewPacket()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Writer.prepareRepair",
				"sbn":      w.sbn,
				"esi":      n + j,
			}).Error("Failed to allocate repair packet")
			w.dropRepair()
			return fmt.Errorf("failed to allocate repair packet: %w", err)
		}

		pkt.Data = pkt.Data[:PayloadIDSize+len(sym)]
		copy(pkt.Data[PayloadIDSize:], sym)
		pkt.Flags = packet.FlagFEC | packet.FlagRepair
		pkt.FEC = packet.FEC{
			Scheme:            w.scheme,
			SourceBlockNumber: w.sbn,
			EncodingSymbolID:  uint16(n + j),
			SourceBlockLength: uint16(n),
			BlockLength:       uint16(n + w.cfg.NumRepairPackets),
			Payload:           pkt.Data[PayloadIDSize:],
		}
		w.repairs = append(w.repairs, pkt)
	}
	return nil
}

func (w *Writer) dropRepair() {
	for i, pkt := range w.repairs {
		pkt.Release()
		w.repairs[i] = nil
	}
	w.repairs = w.repairs[:0]
}

// finishBlock emits the prepared repair packets and starts the next block.
func (w *Writer) finishBlock() {
	defer func() {
		w.dropRepair()
		w.pos = 0
		w.maxLen = 0
		w.sbn = (w.sbn + 1) & w.sbnMask
	}()

	for i, pkt := range w.repairs {
		if err := w.out.Write(pkt); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Writer.finishBlock",
				"sbn":      w.sbn,
				"esi":      pkt.FEC.EncodingSymbolID,
				"error":    err.Error(),
			}).Warn("Failed to write repair packet")
			w.err = fmt.Errorf("failed to write repair packet of block %d: %w", w.sbn, err)
			return
		}
		w.repairs[i] = nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "Writer.finishBlock",
		"sbn":      w.sbn,
		"symbol":   w.maxLen,
	}).Debug("Emitted repair packets")
}
