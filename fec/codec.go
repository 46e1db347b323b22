package fec

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiostream/packet"
)

// Codec is an erasure code over equal-length symbols. Implementations are
// deterministic and keep no state between blocks, apart from caches.
type Codec interface {
	// Encode computes k repair symbols from the source symbols. All source
	// symbols must have the same length.
	Encode(source [][]byte, k int) ([][]byte, error)

	// Decode restores missing source symbols in place. symbols holds the
	// n source symbols followed by the k repair symbols, with an empty slice
	// for every missing one. A missing slice with enough capacity is reused
	// for the restored symbol. It returns ErrCannotReconstruct when fewer
	// than n symbols are present.
	Decode(symbols [][]byte, n, k int) error

	// MaxBlockLength returns the largest n+k the codec supports.
	MaxBlockLength() int
}

// Registry maps FEC schemes to codecs. It is built once and handed to every
// pipeline that needs a codec; lookups are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[packet.FECScheme]Codec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[packet.FECScheme]Codec)}
}

// NewDefaultRegistry creates a registry with every bundled codec.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(packet.FECReedSolomonM8, NewReedSolomonCodec())
	return r
}

// Register adds a codec for a scheme.
func (r *Registry) Register(scheme packet.FECScheme, codec Codec) error {
	if scheme == packet.FECNone {
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codecs[scheme]; ok {
		return fmt.Errorf("%w: %s", ErrSchemeRegistered, scheme)
	}
	r.codecs[scheme] = codec

	logrus.WithFields(logrus.Fields{
		"function": "Registry.Register",
		"scheme":   scheme.String(),
	}).Debug("Registered fec codec")
	return nil
}

// Get returns the codec of a scheme.
func (r *Registry) Get(scheme packet.FECScheme) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	return c, nil
}

// Supports reports whether a codec is registered for scheme.
func (r *Registry) Supports(scheme packet.FECScheme) bool {
	_, err := r.Get(scheme)
	return err == nil
}
