package ffmpeg

import (
	astiav "github.com/asticode/go-astiav"

	"github.com/avcore/mediacore/internal/avrt"
)

// stream adapts *astiav.Stream to avrt.Stream.
type stream struct {
	st *astiav.Stream

	// codecCtx is set once input.OpenCodec has opened this stream's
	// decoder; CodecTimeBase reads it directly rather than the stream's
	// own (often coarser) container time base.
	codecCtx *astiav.CodecContext
}

func (s *stream) Index() int { return s.st.Index() }

func (s *stream) MediaType() avrt.MediaType {
	switch s.st.CodecParameters().MediaType() {
	case astiav.MediaTypeAudio:
		return avrt.MediaTypeAudio
	case astiav.MediaTypeVideo:
		return avrt.MediaTypeVideo
	default:
		return avrt.MediaTypeUnknown
	}
}

func (s *stream) CodecName() string {
	dec := astiav.FindDecoder(s.st.CodecParameters().CodecID())
	if dec == nil {
		return ""
	}
	return dec.Name()
}

func toRational(r astiav.Rational) avrt.Rational {
	return avrt.Rational{Num: r.Num(), Den: r.Den()}
}

func (s *stream) TimeBase() avrt.Rational { return toRational(s.st.TimeBase()) }

// CodecTimeBase returns the zero Rational until the stream's decoder has
// actually been opened (input.OpenCodec populates codecCtx); callers
// fall further back to their own hardcoded default in that case.
func (s *stream) CodecTimeBase() avrt.Rational {
	if s.codecCtx == nil {
		return avrt.Rational{}
	}
	return toRational(s.codecCtx.TimeBase())
}

func (s *stream) AvgFrameRate() avrt.Rational { return toRational(s.st.AvgFrameRate()) }
func (s *stream) RFrameRate() avrt.Rational   { return toRational(s.st.RFrameRate()) }

func (s *stream) SampleRate() int { return s.st.CodecParameters().SampleRate() }
func (s *stream) Channels() int   { return s.st.CodecParameters().ChannelLayout().Channels() }

func (s *stream) SampleFormatName() string {
	return s.st.CodecParameters().SampleFormat().Name()
}

func (s *stream) Width() int  { return s.st.CodecParameters().Width() }
func (s *stream) Height() int { return s.st.CodecParameters().Height() }

func (s *stream) PixelFormatName() string {
	return s.st.CodecParameters().PixelFormat().String()
}
