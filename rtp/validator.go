package rtp

import (
	"fmt"

	"github.com/opd-ai/audiostream/packet"
)

// ValidatorConfig bounds the jumps accepted between consecutive packets.
type ValidatorConfig struct {
	// MaxSeqnumJump is the largest accepted sequence number distance.
	MaxSeqnumJump int
	// MaxTimestampJump is the largest accepted timestamp distance in samples.
	MaxTimestampJump int64
}

// Validator checks that consecutive packets of a session belong to one
// continuous stream.
type Validator struct {
	cfg     ValidatorConfig
	prev    packet.RTP
	hasPrev bool
}

// NewValidator creates a validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Check validates pkt against the previously accepted packet. An accepted
// packet becomes the new reference; a rejected one does not.
func (v *Validator) Check(pkt *packet.Packet) error {
	if !v.hasPrev {
		v.prev = pkt.RTP
		v.hasPrev = true
		return nil
	}

	if pkt.RTP.SourceID != v.prev.SourceID {
		return fmt.Errorf("%w: %d -> %d", ErrSourceIDChanged, v.prev.SourceID, pkt.RTP.SourceID)
	}
	if pkt.RTP.PayloadType != v.prev.PayloadType {
		return fmt.Errorf("%w: %d -> %d", ErrPayloadTypeChanged, v.prev.PayloadType, pkt.RTP.PayloadType)
	}
	if d := packet.SeqnumDiff(pkt.RTP.Seqnum, v.prev.Seqnum); abs(int64(d)) > int64(v.cfg.MaxSeqnumJump) {
		return fmt.Errorf("%w: %d -> %d", ErrSeqnumJump, v.prev.Seqnum, pkt.RTP.Seqnum)
	}
	if d := packet.TimestampDiff(pkt.RTP.Timestamp, v.prev.Timestamp); abs(d) > v.cfg.MaxTimestampJump {
		return fmt.Errorf("%w: %d -> %d", ErrTimestampJump, v.prev.Timestamp, pkt.RTP.Timestamp)
	}

	v.prev = pkt.RTP
	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
