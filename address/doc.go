// Package address defines the interface kinds and endpoint protocols that
// sender and receiver slots are built from.
//
// Each slot owns at most one endpoint per Interface. The Protocol of an
// endpoint decides the packet framing and, for FEC-capable protocols, the
// erasure code scheme. A source endpoint with an FEC protocol is paired with
// a repair endpoint whose protocol uses the same scheme:
//
//	source: ProtoRTPRS8MSource   (rtp+rs8m)
//	repair: ProtoRS8MRepair      (rs8m)
//
// Endpoint URIs have the form "proto://host:port", e.g. "rtp+rs8m://10.0.0.1:10001".
package address
