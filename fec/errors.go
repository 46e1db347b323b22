package fec

import "errors"

// Codec errors
var (
	// ErrCannotReconstruct indicates fewer than N symbols of a block are present
	ErrCannotReconstruct = errors.New("cannot reconstruct block")

	// ErrUnsupportedBlockSize indicates an (N, K) pair the codec cannot handle
	ErrUnsupportedBlockSize = errors.New("unsupported block size")

	// ErrSymbolSize indicates symbols of different lengths within one block
	ErrSymbolSize = errors.New("symbol size mismatch")
)

// Registry errors
var (
	// ErrUnsupportedScheme indicates a scheme without a registered codec
	ErrUnsupportedScheme = errors.New("unsupported fec scheme")

	// ErrSchemeRegistered indicates a scheme registered twice
	ErrSchemeRegistered = errors.New("fec scheme already registered")
)

// Wire errors
var (
	// ErrMalformedPayloadID indicates a payload ID that is truncated or inconsistent
	ErrMalformedPayloadID = errors.New("malformed fec payload id")

	// ErrBlockLengthChanged indicates a packet whose block lengths differ from its block
	ErrBlockLengthChanged = errors.New("fec block length changed within block")

	// ErrBlockTooFarAhead indicates a packet for a block beyond the reorder window
	ErrBlockTooFarAhead = errors.New("fec block too far ahead")
)
