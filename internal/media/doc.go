// Package media defines the stream parameters, raw formats and canonical frame
// type shared by the capture engine, plus the sizing rules used to allocate
// per-stream buffers.
//
// Audio is moved in fixed 10 ms quanta: a quantum holds SampleRate/100 samples
// per channel. Video is moved one frame at a time, and every frame handed to a
// downstream consumer is in the canonical I420 layout regardless of the raw
// format produced by the decoder.
package media
