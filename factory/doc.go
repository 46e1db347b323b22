// Package factory builds audiostream sender and receiver pipelines from a
// single, process-wide configuration.
//
// The factory owns the objects every pipeline shares: the RTP format map,
// the FEC codec registry and the packet pool. Pipelines built from one
// factory can exchange packets through the same pool.
//
// # Configuration
//
// Defaults come from pipeline.DefaultSenderConfig and
// pipeline.DefaultReceiverConfig and may be overridden with environment
// variables:
//   - AUDIOSTREAM_SAMPLE_RATE: sender input and receiver output rate in Hz
//   - AUDIOSTREAM_PACKET_LENGTH_MS: audio duration of one packet
//   - AUDIOSTREAM_FEC_SOURCE_PACKETS, AUDIOSTREAM_FEC_REPAIR_PACKETS: FEC block geometry
//   - AUDIOSTREAM_INTERLEAVING: "true" or "false"
//   - AUDIOSTREAM_TARGET_LATENCY_MS: receiver target latency
//   - AUDIOSTREAM_NO_PLAYBACK_TIMEOUT_MS: session watchdog timeout, 0 disables it
//   - AUDIOSTREAM_FREQ_ESTIMATOR: "true" or "false"
//   - AUDIOSTREAM_MAX_SESSIONS: sessions per receiver slot, 0 for unlimited
//   - AUDIOSTREAM_POOL_SIZE: number of packet buffers
//
// Values that do not parse or fall outside the documented bounds are
// logged as warnings and the default is kept.
//
// # Usage
//
//	f := factory.NewStreamFactory()
//
//	sink, err := f.NewSenderSink()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sink.Close()
//
//	source, err := f.NewReceiverSource()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer source.Close()
package factory
