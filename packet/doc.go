// Package packet implements the packet model shared by the sender and
// receiver pipelines and the containers packets move through.
//
// # Packet Model
//
// A Packet carries the wire bytes in Data plus parsed views of its layers:
//
//   - UDP: source/destination address and receive time
//   - RTP: SSRC, sequence number, timestamp, duration, payload type, payload
//   - FEC: scheme, source block number, encoding symbol ID, block lengths, symbol
//
// Flags record which layers are present and what role the packet plays
// (audio source, FEC repair, restored by FEC, composed for the wire).
// A packet is immutable once it is handed to the next stage and ownership
// moves with it: whoever holds the packet either passes it on or calls
// Release.
//
// # Allocation
//
// Pool hands out packets backed by fixed-size buffers addressed by index.
// It never grows and never blocks; when every buffer is in use NewPacket
// returns ErrPoolExhausted.
//
//	pool, _ := packet.NewPool(1024, limits.MaxPacketSize)
//	pkt, err := pool.NewPacket()
//	if err != nil {
//	    return err // ErrPoolExhausted
//	}
//	defer pkt.Release()
//
// # Containers
//
// Queue is a goroutine-safe FIFO used at the network boundary. SortedQueue
// keeps packets ordered by sequence number (or by block number and symbol ID
// for repair packets) and drops duplicates. Router dispatches packets to
// writers by flags and Interleaver reorders packets within a block.
//
// # Sequence Arithmetic
//
// Sequence numbers, timestamps and FEC block numbers wrap around; every
// comparison goes through the Seqnum*, Timestamp* and BlockNum* helpers.
package packet
