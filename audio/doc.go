// Package audio provides the sample-level building blocks of the streaming
// pipeline: sample specs and channel masks, fixed-length frames, the L16 PCM
// wire codec, channel mapping, linear resampling and mixing.
//
// # Frames
//
// A Frame is a caller-owned buffer of interleaved float32 samples in the
// range [-1, 1]. Its sample rate and channel layout are implied by the
// SampleSpec of the component that produces or consumes it:
//
//	spec := audio.SampleSpec{Rate: 44100, Channels: audio.ChanMaskStereo}
//	frame := audio.NewFrame(spec.NumChannels() * 441) // 10ms
//
// Pipeline stages pull frames through FrameReader and push them through
// FrameWriter. Both interfaces always process the whole frame.
//
// # Conversion
//
// ChannelMapperReader/ChannelMapperWriter convert between channel masks and
// ResamplerReader converts sample rates with linear interpolation. The
// resampler also accepts a scaling factor which the receiver latency monitor
// uses to nudge the effective playback rate.
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent use. Every component is
// owned by the single goroutine driving the pipeline that contains it.
package audio
