// Package avrt defines the MediaRuntime capability boundary: the set of
// interfaces the pipeline core (reader, decoder, convert) consumes from an
// underlying demultiplexer/decoder library without depending on it
// directly (spec.md §1: "the media demultiplexer/decoder library itself
// ... consumed as an opaque MediaRuntime capability").
//
// internal/ffmpeg provides the only production implementation, backed by
// github.com/asticode/go-astiav. Tests use fakes that satisfy these
// interfaces directly.
package avrt

import "io"

// MediaType classifies a stream.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeAudio
	MediaTypeVideo
)

// Packet is a compressed packet read from an input, as produced by a
// Runtime's demuxer.
type Packet interface {
	StreamIndex() int
	PTS() int64
	DTS() int64
	Duration() int64
	// Size is the payload's accounted size in bytes.
	Size() int
	// Bytes returns the raw compressed payload. The returned slice is
	// only valid until the next call that reuses this Packet.
	Bytes() []byte
	// Release returns the packet to the runtime's pool/allocator.
	Release()
}

// Frame is a decoded frame as produced by a CodecContext.
type Frame interface {
	// PTS is the decoder-reported presentation timestamp, in stream
	// timebase units (not yet scaled to seconds).
	PTS() int64
	IsAudio() bool

	// Video accessors.
	Width() int
	Height() int
	PixelFormatName() string
	Linesize(plane int) int
	PlaneBytes(plane int) ([]byte, error)

	// Audio accessors.
	SampleFormatName() string
	SampleRate() int
	Channels() int
	NbSamples() int

	// PacketDuration is the duration (in stream timebase units) of the
	// packet this frame was decoded from, when known; 0 if unknown.
	PacketDuration() int64
	// RepeatPict is the repeat_pict field ffmpeg attaches to video
	// frames for codecs using field repetition (spec.md §4.4).
	RepeatPict() int

	Release()
}

// Rational is a numerator/denominator pair, mirroring AVRational.
type Rational struct {
	Num, Den int
}

// Seconds converts an integer count in this rational's units to seconds.
func (r Rational) Seconds(units int64) float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(units) * float64(r.Num) / float64(r.Den)
}

// Float returns Num/Den as a float64, or 0 if Den is 0.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Stream describes one elementary stream of an opened input.
type Stream interface {
	Index() int
	MediaType() MediaType
	CodecName() string
	TimeBase() Rational
	CodecTimeBase() Rational
	AvgFrameRate() Rational
	RFrameRate() Rational
	SampleRate() int
	Channels() int
	SampleFormatName() string
	Width() int
	Height() int
	PixelFormatName() string
}

// CodecContext decodes packets from one stream into frames.
type CodecContext interface {
	Stream() Stream
	SendPacket(Packet) error
	// ReceiveFrame decodes one frame into frame. It returns io.EOF (via
	// errors.Is) when the codec has no frame ready for the current
	// packet (EAGAIN) or the decoder has been fully flushed (EOF); both
	// cases are treated identically by internal/decode, matching
	// mr_play.c's decoder_decode_frame.
	ReceiveFrame(frame Frame) error
	// Flush discards any frames still buffered inside the codec and
	// resets its decode state. It does not drain them; draining is done by
	// SendPacket(nil) followed by ReceiveFrame until EOF.
	Flush()
	Close() error
}

// ErrAgainOrEOF should be matched with errors.Is against the error
// returned by CodecContext.ReceiveFrame/SendPacket to detect the
// non-fatal "no data right now" condition.
var ErrAgainOrEOF = io.EOF

// InputContext represents one opened container.
type InputContext interface {
	Streams() []Stream
	// FlagGenPTSDiscontinuity reports whether the input format indicates
	// timestamp discontinuities are possible (spec.md §4.6 step 3).
	FlagGenPTSDiscontinuity() bool
	// ReadPacket reads the next packet from the container. It returns
	// io.EOF when the input is exhausted.
	ReadPacket() (Packet, error)
	OpenCodec(stream Stream) (CodecContext, error)
	Close() error
}

// Runtime is the opaque MediaRuntime capability: it opens inputs and
// builds format converters. internal/ffmpeg.Runtime is the sole
// production implementation.
type Runtime interface {
	OpenInput(url string) (InputContext, error)
	NewResampler(in ResamplerFormat, out ResamplerFormat) (Resampler, error)
	NewScaler(in ScalerFormat, out ScalerFormat) (Scaler, error)
	// NewScratchFrame allocates a Frame for the runtime to decode into.
	// Callers must call Release when done with it.
	NewScratchFrame() Frame
}

// ResamplerFormat describes one side (input or output) of an audio
// resample conversion.
type ResamplerFormat struct {
	SampleFormatName string
	SampleRate       int
	Channels         int
}

// Resampler converts audio frames between two PCM layouts (spec.md §4.5).
type Resampler interface {
	Convert(in Frame, out Frame) error
	Close()
}

// ScalerFormat describes one side of a pixel-format/scale conversion.
type ScalerFormat struct {
	PixelFormatName string
	Width, Height   int
}

// Scaler converts video frames between two pixel formats/sizes (spec.md
// §4.5).
type Scaler interface {
	Scale(in Frame, out Frame) error
	Close()
}
