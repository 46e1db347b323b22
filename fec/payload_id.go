package fec

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/audiostream/limits"
	"github.com/opd-ai/audiostream/packet"
)

// PayloadIDSize is the encoded size of a payload ID for every scheme.
const PayloadIDSize = limits.FECPayloadIDSize

// PayloadID identifies a symbol within an FEC block.
type PayloadID struct {
	SourceBlockNumber uint32
	EncodingSymbolID  uint16
	SourceBlockLength uint16
	BlockLength       uint16
}

// Position tells where the payload ID sits relative to the symbol.
type Position int

const (
	// Footer places the payload ID after the symbol (source packets).
	Footer Position = iota
	// Header places the payload ID before the symbol (repair packets).
	Header
)

// EncodePayloadID writes id into dst using the layout of scheme.
func EncodePayloadID(dst []byte, scheme packet.FECScheme, id PayloadID) error {
	if len(dst) < PayloadIDSize {
		return fmt.Errorf("%w: %d bytes", ErrMalformedPayloadID, len(dst))
	}

	switch scheme {
	case packet.FECReedSolomonM8:
		if id.SourceBlockNumber > 0xFFFFFF || id.EncodingSymbolID > 0xFF {
			return fmt.Errorf("%w: sbn=%d esi=%d out of range", ErrMalformedPayloadID, id.SourceBlockNumber, id.EncodingSymbolID)
		}
		binary.BigEndian.PutUint32(dst[0:4], id.SourceBlockNumber<<8|uint32(id.EncodingSymbolID))
	case packet.FECLDPCStaircase:
		if id.SourceBlockNumber > 0xFFFF {
			return fmt.Errorf("%w: sbn=%d out of range", ErrMalformedPayloadID, id.SourceBlockNumber)
		}
		binary.BigEndian.PutUint16(dst[0:2], uint16(id.SourceBlockNumber))
		binary.BigEndian.PutUint16(dst[2:4], id.EncodingSymbolID)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	binary.BigEndian.PutUint16(dst[4:6], id.SourceBlockLength)
	binary.BigEndian.PutUint16(dst[6:8], id.BlockLength)
	return nil
}

// DecodePayloadID reads a payload ID of scheme from src and checks that its
// fields are consistent.
func DecodePayloadID(src []byte, scheme packet.FECScheme) (PayloadID, error) {
	if len(src) < PayloadIDSize {
		return PayloadID{}, fmt.Errorf("%w: %d bytes", ErrMalformedPayloadID, len(src))
	}

	var id PayloadID
	switch scheme {
	case packet.FECReedSolomonM8:
		v := binary.BigEndian.Uint32(src[0:4])
		id.SourceBlockNumber = v >> 8
		id.EncodingSymbolID = uint16(v & 0xFF)
	case packet.FECLDPCStaircase:
		id.SourceBlockNumber = uint32(binary.BigEndian.Uint16(src[0:2]))
		id.EncodingSymbolID = binary.BigEndian.Uint16(src[2:4])
	default:
		return PayloadID{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	id.SourceBlockLength = binary.BigEndian.Uint16(src[4:6])
	id.BlockLength = binary.BigEndian.Uint16(src[6:8])

	if id.SourceBlockLength == 0 || id.SourceBlockLength > id.BlockLength || id.EncodingSymbolID >= id.BlockLength {
		return PayloadID{}, fmt.Errorf("%w: esi=%d sbl=%d bl=%d", ErrMalformedPayloadID, id.EncodingSymbolID, id.SourceBlockLength, id.BlockLength)
	}
	return id, nil
}

// Composer writes payload IDs into composed packets.
type Composer struct {
	scheme   packet.FECScheme
	position Position
}

// NewComposer creates a composer for the given scheme and position.
func NewComposer(scheme packet.FECScheme, position Position) *Composer {
	return &Composer{scheme: scheme, position: position}
}

// Compose writes pkt.FEC as a payload ID. With Footer it is appended to
// pkt.Data; with Header it overwrites the first PayloadIDSize bytes, which
// the repair packet reserves.
func (c *Composer) Compose(pkt *packet.Packet) error {
	id := PayloadID{
		SourceBlockNumber: pkt.FEC.SourceBlockNumber,
		EncodingSymbolID:  pkt.FEC.EncodingSymbolID,
		SourceBlockLength: pkt.FEC.SourceBlockLength,
		BlockLength:       pkt.FEC.BlockLength,
	}

	switch c.position {
	case Footer:
		n := len(pkt.Data)
		if cap(pkt.Data)-n < PayloadIDSize {
			return fmt.Errorf("%w: no room for payload id footer", packet.ErrBufferTooSmall)
		}
		pkt.Data = pkt.Data[:n+PayloadIDSize]
		if err := EncodePayloadID(pkt.Data[n:], c.scheme, id); err != nil {
			pkt.Data = pkt.Data[:n]
			return err
		}
	case Header:
		if len(pkt.Data) < PayloadIDSize {
			return fmt.Errorf("%w: no room for payload id header", packet.ErrBufferTooSmall)
		}
		if err := EncodePayloadID(pkt.Data[:PayloadIDSize], c.scheme, id); err != nil {
			return err
		}
	}
	pkt.Flags |= packet.FlagComposed
	return nil
}

// Parser reads payload IDs from received packets.
type Parser struct {
	scheme   packet.FECScheme
	position Position
}

// NewParser creates a parser for the given scheme and position.
func NewParser(scheme packet.FECScheme, position Position) *Parser {
	return &Parser{scheme: scheme, position: position}
}

// Parse fills pkt.FEC from data and returns the inner bytes: the RTP packet
// for Footer, the repair symbol for Header. Header packets are flagged as
// repair packets.
func (p *Parser) Parse(pkt *packet.Packet, data []byte) ([]byte, error) {
	if len(data) <= PayloadIDSize {
		return nil, fmt.Errorf("%w: packet of %d bytes", ErrMalformedPayloadID, len(data))
	}

	var idBytes, inner []byte
	if p.position == Footer {
		idBytes, inner = data[len(data)-PayloadIDSize:], data[:len(data)-PayloadIDSize]
	} else {
		idBytes, inner = data[:PayloadIDSize], data[PayloadIDSize:]
	}

	id, err := DecodePayloadID(idBytes, p.scheme)
	if err != nil {
		return nil, err
	}

	isRepair := id.EncodingSymbolID >= id.SourceBlockLength
	if isRepair != (p.position == Header) {
		return nil, fmt.Errorf("%w: esi=%d sbl=%d on wrong stream", ErrMalformedPayloadID, id.EncodingSymbolID, id.SourceBlockLength)
	}

	pkt.Flags |= packet.FlagFEC
	if isRepair {
		pkt.Flags |= packet.FlagRepair
	}
	pkt.FEC = packet.FEC{
		Scheme:            p.scheme,
		SourceBlockNumber: id.SourceBlockNumber,
		EncodingSymbolID:  id.EncodingSymbolID,
		SourceBlockLength: id.SourceBlockLength,
		BlockLength:       id.BlockLength,
		Payload:           inner,
	}
	return inner, nil
}
