package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/audiostream/limits"
	"github.com/opd-ai/audiostream/packet"
)

// UDPSender sends composed packets as datagrams. It is the destination
// writer of sender endpoints.
type UDPSender struct {
	conn net.PacketConn

	mu     sync.Mutex
	stats  Stats
	closed bool
}

// NewUDPSender creates a sender writing to conn. The sender does not own
// conn.
func NewUDPSender(conn net.PacketConn) *UDPSender {
	logrus.WithFields(logrus.Fields{
		"function": "NewUDPSender",
		"local":    conn.LocalAddr().String(),
	}).Info("Created udp sender")
	return &UDPSender{conn: conn}
}

// Write implements packet.Writer. The packet is sent to UDP.DstAddr and
// released once sent; on error it stays with the caller.
func (s *UDPSender) Write(pkt *packet.Packet) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	if !pkt.Has(packet.FlagUDP) || pkt.UDP.DstAddr == nil {
		return ErrNoDestination
	}
	if err := limits.ValidatePacketSize(pkt.Data); err != nil {
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
		return err
	}

	n, err := s.conn.WriteTo(pkt.Data, pkt.UDP.DstAddr)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.stats.Dropped++
		logrus.WithFields(logrus.Fields{
			"function": "UDPSender.Write",
			"remote":   pkt.UDP.DstAddr.String(),
			"error":    err.Error(),
		}).Debug("Failed to send datagram")
		return fmt.Errorf("failed to send to %s: %w", pkt.UDP.DstAddr, err)
	}
	s.stats.Packets++
	s.stats.Bytes += uint64(n)
	pkt.Release()
	return nil
}

// Stats returns the send counters.
func (s *UDPSender) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close stops accepting packets. The connection is left open.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// UDPReceiver reads datagrams into pool packets and hands them to a
// receiver endpoint writer.
type UDPReceiver struct {
	conn net.PacketConn
	pool *packet.Pool
	out  packet.Writer
	cfg  ReceiverConfig

	mu    sync.Mutex
	stats Stats
}

// NewUDPReceiver creates a receiver feeding out from conn.
//
// Parameters:
//   - conn: Bound socket; Run owns it until it returns
//   - pool: Pool the packets are allocated from
//   - out: Writer taking ownership of every received packet
//
// Returns:
//   - *UDPReceiver: Receiver ready to Run
func NewUDPReceiver(conn net.PacketConn, pool *packet.Pool, out packet.Writer) *UDPReceiver {
	return NewUDPReceiverWithConfig(conn, pool, out, DefaultReceiverConfig())
}

// NewUDPReceiverWithConfig is NewUDPReceiver with an explicit config.
func NewUDPReceiverWithConfig(conn net.PacketConn, pool *packet.Pool, out packet.Writer, cfg ReceiverConfig) *UDPReceiver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultReceiverConfig().PollInterval
	}
	return &UDPReceiver{conn: conn, pool: pool, out: out, cfg: cfg}
}

// LocalAddr returns the address the receiver listens on.
func (r *UDPReceiver) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

// Stats returns the receive counters.
func (r *UDPReceiver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Run receives until ctx is cancelled or the socket fails. It returns nil
// on cancellation.
func (r *UDPReceiver) Run(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"function": "UDPReceiver.Run",
		"local":    r.conn.LocalAddr().String(),
	}).Info("Receiving datagrams")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.readLoop(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		// Unblock a pending read.
		_ = r.conn.SetReadDeadline(time.Now())
		return nil
	})

	err := g.Wait()
	logrus.WithFields(logrus.Fields{
		"function": "UDPReceiver.Run",
		"packets":  r.Stats().Packets,
	}).Info("Stopped receiving datagrams")
	return err
}

func (r *UDPReceiver) readLoop(ctx context.Context) error {
	scratch := make([]byte, limits.MaxPacketSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.receive(scratch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"function": "UDPReceiver.readLoop",
				"error":    err.Error(),
			}).Error("Receive failed")
			return err
		}
	}
}

// receive reads one datagram. When the pool is exhausted the datagram is
// read into scratch and dropped.
func (r *UDPReceiver) receive(scratch []byte) error {
	_ = r.conn.SetReadDeadline(time.Now().Add(r.cfg.PollInterval))

	pkt, perr := r.pool.NewPacket()
	buf := scratch
	if perr == nil {
		buf = pkt.Buffer()
	}

	n, addr, err := r.conn.ReadFrom(buf)
	if err != nil {
		pkt.Release()
		return err
	}
	if perr != nil {
		r.drop("pool exhausted", addr)
		return nil
	}
	if err := limits.ValidatePacketSize(buf[:n]); err != nil {
		pkt.Release()
		r.drop(err.Error(), addr)
		return nil
	}

	pkt.Data = buf[:n]
	pkt.Flags = packet.FlagUDP
	pkt.UDP = packet.UDP{SrcAddr: addr, DstAddr: r.conn.LocalAddr(), ReceivedAt: time.Now()}

	if err := r.out.Write(pkt); err != nil {
		pkt.Release()
		r.drop(err.Error(), addr)
		return nil
	}

	r.mu.Lock()
	r.stats.Packets++
	r.stats.Bytes += uint64(n)
	r.mu.Unlock()
	return nil
}

func (r *UDPReceiver) drop(reason string, addr net.Addr) {
	r.mu.Lock()
	r.stats.Dropped++
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "UDPReceiver.receive",
		"remote":   addr.String(),
		"reason":   reason,
	}).Debug("Dropping datagram")
}
