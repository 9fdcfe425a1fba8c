package ffmpeg

import astiav "github.com/asticode/go-astiav"

// astiavSampleFormat maps an internal/format sample format name onto its
// astiav.SampleFormat, restricted to the four formats mr_play.c's
// AVSampleFormat2MR/MRSampleFormat2AV tables recognize (S16, S16P, FLT,
// FLTP); anything else is rejected rather than silently coerced.
func astiavSampleFormat(name string) (astiav.SampleFormat, bool) {
	switch name {
	case "s16":
		return astiav.SampleFormatS16, true
	case "s16p":
		return astiav.SampleFormatS16P, true
	case "flt":
		return astiav.SampleFormatFlt, true
	case "fltp":
		return astiav.SampleFormatFltp, true
	default:
		return astiav.SampleFormatNone, false
	}
}

// astiavPixelFormat maps an internal/format pixel format name onto its
// astiav.PixelFormat, restricted to the four formats mr_play.c's
// AVPixelFormat2MR/MRPixelFormat2AV tables recognize (YUV420P, NV12,
// NV21, RGB24).
func astiavPixelFormat(name string) (astiav.PixelFormat, bool) {
	switch name {
	case "yuv420p":
		return astiav.PixelFormatYuv420P, true
	case "nv12":
		return astiav.PixelFormatNv12, true
	case "nv21":
		return astiav.PixelFormatNv21, true
	case "rgb24":
		return astiav.PixelFormatRgb24, true
	default:
		return astiav.PixelFormatNone, false
	}
}
