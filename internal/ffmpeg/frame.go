package ffmpeg

import (
	"math"

	astiav "github.com/asticode/go-astiav"
)

// frame adapts *astiav.Frame to avrt.Frame.
type frame struct {
	f *astiav.Frame
}

func (fr *frame) PTS() int64 {
	pts := fr.f.Pts()
	if pts == astiav.NoPtsValue {
		return math.MinInt64
	}
	return pts
}

func (fr *frame) IsAudio() bool { return fr.f.SampleFormat() != astiav.SampleFormatNone }

func (fr *frame) Width() int  { return fr.f.Width() }
func (fr *frame) Height() int { return fr.f.Height() }

func (fr *frame) PixelFormatName() string { return fr.f.PixelFormat().String() }

func (fr *frame) Linesize(plane int) int {
	ls := fr.f.Linesize()
	if plane < 0 || plane >= len(ls) {
		return 0
	}
	return ls[plane]
}

func (fr *frame) PlaneBytes(plane int) ([]byte, error) {
	return fr.f.Data().Bytes(plane)
}

func (fr *frame) SampleFormatName() string { return fr.f.SampleFormat().Name() }
func (fr *frame) SampleRate() int          { return fr.f.SampleRate() }
func (fr *frame) Channels() int            { return fr.f.ChannelLayout().Channels() }
func (fr *frame) NbSamples() int           { return fr.f.NbSamples() }

func (fr *frame) PacketDuration() int64 { return fr.f.PktDuration() }
func (fr *frame) RepeatPict() int       { return fr.f.RepeatPict() }

func (fr *frame) Release() {
	fr.f.Unref()
	fr.f.Free()
}
