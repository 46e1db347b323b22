// Package limits provides centralized size limits for the audio streaming
// pipeline. These limits are shared by the packet pool, the wire parsers and
// the pipeline configuration validators so that every component agrees on
// the largest datagram, frame and FEC block it has to handle.
//
// # Limit Hierarchy
//
//   - MaxPacketSize (2048 bytes): size of every buffer issued by the packet
//     pool. It bounds a full datagram including RTP header and FEC payload ID.
//
//   - MaxChannels (32): the widest channel mask a sample spec may describe.
//
//   - MaxFECBlockLength (255): the largest N+K block a GF(2^8) code accepts.
//
// # Validation Functions
//
// Each validation function reports a wrapped sentinel error:
//
//	if err := limits.ValidatePacketSize(data); err != nil {
//	    // errors.Is(err, limits.ErrPacketEmpty) or limits.ErrPacketTooLarge
//	}
//
//	if err := limits.ValidateBlockLength(20, 10, limits.MaxFECBlockLength); err != nil {
//	    // errors.Is(err, limits.ErrBlockTooLarge)
//	}
package limits
