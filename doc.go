// Package audiostream streams PCM audio over unreliable datagram networks.
//
// A sender encodes audio frames into RTP packets, protects them with
// forward erasure correction and writes them to one or more endpoints. A
// receiver routes incoming packets into per-sender sessions, buffers them
// to a target latency, repairs losses and mixes every session into one
// output frame. Both sides are driven entirely by the caller's Write and
// Read calls; no goroutine is started by the pipeline itself.
//
// # Packages
//
//   - packet: packet model, buffer pool and queues
//   - rtp: RTP parsing, composing, validation and payload formats
//   - fec: block writer and reader with pluggable erasure codecs
//   - audio: frames, sample specs, channel mapping and resampling
//   - address: interfaces, protocols and endpoint URIs
//   - pipeline: SenderSink and ReceiverSource
//   - sndio: device state model and WAV file backend
//   - transport: UDP sender and receiver loop
//   - netsim: in-process lossy network for tests
//   - factory: environment-driven configuration and shared dependencies
//
// # Getting Started
//
//	f := factory.NewStreamFactory()
//	sink, err := f.NewSenderSink()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	slot, _ := sink.CreateSlot()
//	src, _ := slot.CreateEndpoint(address.IfaceAudioSource, address.ProtoRTPRS8MSource)
//	rpr, _ := slot.CreateEndpoint(address.IfaceAudioRepair, address.ProtoRS8MRepair)
//	src.SetDestinationAddress(sourceAddr)
//	src.SetDestinationWriter(udpSender)
//	rpr.SetDestinationAddress(repairAddr)
//	rpr.SetDestinationWriter(udpSender)
//
//	for {
//	    // fill frame
//	    if err := sink.Write(frame); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// See examples/wav_sender and examples/wav_receiver for complete programs.
package audiostream
