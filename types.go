package mediacore

import (
	"github.com/avcore/mediacore/internal/format"
	"github.com/avcore/mediacore/internal/message"
	"github.com/avcore/mediacore/internal/queue"
)

// Message, MessageKind and the four notification kinds the core posts
// (spec.md §6) are re-exported here so a host never needs to import
// internal/message directly.
type Message = message.Message
type MessageKind = message.Kind

const (
	InitAudioRender   = message.InitAudioRender
	InitVideoRender   = message.InitVideoRender
	PackQueueIsFull   = message.PackQueueIsFull
	FrameQueueIsEmpty = message.FrameQueueIsEmpty
)

// SampleFormat/PixelFormat and their masks are re-exported the same way,
// so Params can be built without importing internal/format.
type SampleFormat = format.SampleFormat
type SampleFormatMask = format.SampleFormatMask
type PixelFormat = format.PixelFormat
type PixelFormatMask = format.PixelFormatMask

const (
	SampleFormatS16  = format.SampleFormatS16
	SampleFormatS16P = format.SampleFormatS16P
	SampleFormatFLT  = format.SampleFormatFLT
	SampleFormatFLTP = format.SampleFormatFLTP
)

const (
	PixelFormatYUV420P = format.PixelFormatYUV420P
	PixelFormatNV12    = format.PixelFormatNV12
	PixelFormatNV21    = format.PixelFormatNV21
	PixelFormatRGB24   = format.PixelFormatRGB24
)

// SampleFormatBit and PixelFormatBit build the capability bitmasks Params
// expects (spec.md §6 "supported sample-format bitmask").
func SampleFormatBit(f SampleFormat) SampleFormatMask { return format.SampleFormatBit(f) }
func PixelFormatBit(f PixelFormat) PixelFormatMask    { return format.PixelFormatBit(f) }

// Frame is a decoded video frame handed to a Params.DisplayFunc. It
// aliases the engine's own frame-queue slot rather than copying it: per
// spec.md §6, "the frame reference remains valid until the next display
// callback invocation" and no longer. A DisplayFunc that needs the pixels
// afterward must copy them before returning.
type Frame struct {
	f *queue.Frame
}

func (fr Frame) Width() int              { return fr.f.Width }
func (fr Frame) Height() int             { return fr.f.Height }
func (fr Frame) PixelFormat() PixelFormat { return fr.f.PixelFormat }
func (fr Frame) PTS() float64            { return fr.f.PTS }
func (fr Frame) Duration() float64       { return fr.f.Duration }
func (fr Frame) NumPlanes() int          { return len(fr.f.Data) }

// Plane returns plane i's byte slice, or nil if i is out of range.
func (fr Frame) Plane(i int) []byte {
	if i < 0 || i >= len(fr.f.Data) {
		return nil
	}
	return fr.f.Data[i]
}

// Linesize returns plane i's stride in bytes, or 0 if i is out of range.
func (fr Frame) Linesize(i int) int {
	if i < 0 || i >= len(fr.f.Linesize) {
		return 0
	}
	return fr.f.Linesize[i]
}
