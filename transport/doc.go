// Package transport moves packets between pipelines and UDP sockets.
//
// UDPSender is a packet.Writer that sends composed packets to their
// destination address and releases them. It is set as the destination
// writer of sender endpoints:
//
//	conn, _ := net.ListenPacket("udp", ":0")
//	udp := transport.NewUDPSender(conn)
//	ep.SetDestinationWriter(udp)
//	ep.SetDestinationAddress(remote)
//
// UDPReceiver reads datagrams into pool packets and writes them to a
// receiver endpoint until its context is cancelled:
//
//	rx := transport.NewUDPReceiver(conn, pool, ep.Writer())
//	go rx.Run(ctx)
//
// Both sides work on net.PacketConn, so tests can substitute any packet
// connection.
package transport
