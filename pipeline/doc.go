// Package pipeline implements the sender and receiver sides of an audio
// stream.
//
// A SenderSink takes frames from an audio source and turns them into RTP
// packets, optionally protected by FEC blocks and interleaved, and sends them
// to every slot. Each slot has a source endpoint and, for FEC protocols, a
// repair endpoint whose destination writers are usually UDP transports.
//
//	sink, err := pipeline.NewSenderSink(cfg, deps)
//	slot, _ := sink.CreateSlot()
//	src, _ := slot.CreateEndpoint(address.IfaceAudioSource, address.ProtoRTPRS8MSource)
//	src.SetDestinationWriter(udp)
//	src.SetDestinationAddress(sourceAddr)
//	rep, _ := slot.CreateEndpoint(address.IfaceAudioRepair, address.ProtoRS8MRepair)
//	rep.SetDestinationWriter(udp)
//	rep.SetDestinationAddress(repairAddr)
//	err = sink.Write(frame)
//
// A ReceiverSource does the reverse. Packets written to its endpoints are
// routed to one session per remote sender. Each session buffers packets up
// to the target latency, restores lost packets from repair packets, decodes
// them into audio and converts it to the output spec. Read mixes every
// session into one frame.
//
//	source, err := pipeline.NewReceiverSource(cfg, deps)
//	slot, _ := source.CreateSlot()
//	ep, _ := slot.CreateEndpoint(address.IfaceAudioSource, address.ProtoRTP)
//	rx := transport.NewUDPReceiver(conn, deps.Pool, ep.Writer())
//	go rx.Run(ctx)
//	for {
//		ok, err := source.Read(frame)
//		...
//	}
//
// Sessions that play no audio for NoPlaybackTimeout, whose latency leaves the
// allowed bounds, or that keep sending malformed packets are terminated and
// removed at the end of the Read that detected it.
//
// The package starts no goroutines. Write and Read run on the caller's audio
// thread; only endpoint writers are meant to be used from network goroutines.
package pipeline
