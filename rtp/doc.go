// Package rtp implements the RTP layer of the audio pipelines on top of
// github.com/pion/rtp.
//
// The package provides:
//   - FormatMap: payload type to sample spec and encoding
//   - Parser: wire bytes to packet.RTP, with the duration derived from the format
//   - Composer: packet.RTP to wire bytes written in place into the packet buffer
//   - Validator: per-stream continuity checks (SSRC, payload type, jumps)
//
// Audio payloads use L16 (RFC 3551): big-endian signed 16-bit PCM. Payload
// types 10 (stereo) and 11 (mono) at 44100 Hz are registered by default.
//
// Sender example:
//
//	formats := rtp.NewFormatMap()
//	format, _ := formats.Lookup(rtp.PayloadTypeL16Stereo)
//	pkt, _ := pool.NewPacket()
//	pkt.RTP.PayloadType = format.PayloadType
//	pkt.RTP.Payload = ... // encoded samples at pkt.Buffer()[rtp.HeaderSize:]
//	if err := rtp.NewComposer().Compose(pkt); err != nil {
//	    return err
//	}
package rtp
