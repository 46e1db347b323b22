// Package fec implements block forward error correction for the audio
// pipelines.
//
// A block is N source packets followed by K repair packets sharing one
// source block number (SBN). Every packet carries a payload ID with its SBN,
// its encoding symbol ID (ESI, the position within the block), the source
// block length N and the block length N+K. Source packets carry the payload
// ID as a footer after the RTP bytes, repair packets as a header before the
// repair symbol.
//
// # Wire Layouts
//
// All fields are big-endian:
//
//	Reed-Solomon M=8:  SBN:24 | ESI:8  | SBL:16 | BL:16
//	LDPC-Staircase:    SBN:16 | ESI:16 | SBL:16 | BL:16
//
// # Codecs
//
// The erasure code itself sits behind the Codec interface and is looked up
// by scheme in a Registry built once at startup:
//
//	registry := fec.NewDefaultRegistry()
//	codec, err := registry.Get(packet.FECReedSolomonM8)
//
// The default registry contains the Reed-Solomon codec backed by
// github.com/klauspost/reedsolomon. LDPC-Staircase has a wire layout but no
// bundled codec; pipelines report it as unsupported unless a codec is
// registered for it.
//
// # Symbols
//
// Source symbols are the RTP packet bytes prefixed with their 2-byte length
// and zero padded to the longest packet of the block. The prefix lets the
// receiver trim restored packets back to their real size.
//
// # Writer and Reader
//
// Writer (sender side) stamps payload IDs on source packets and emits K
// repair packets when a block fills. Reader (receiver side) pulls source and
// repair packets from two ordered queues and returns source packets in
// order, restoring missing ones whenever at least N of the N+K packets of a
// block are present.
package fec
