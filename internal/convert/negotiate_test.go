package convert

import (
	"testing"

	"github.com/avcore/mediacore/internal/format"
)

func TestNegotiateAudioPassThroughWhenNativeMatches(t *testing.T) {
	supported := format.SampleFormatBit(format.SampleFormatS16)
	plan := NegotiateAudio(format.SampleFormatS16, 44100, supported, 44100)
	if plan.NeedsResampler {
		t.Fatal("should not need a resampler when native format and rate both match")
	}
	if plan.TargetFormat != format.SampleFormatS16 || plan.TargetRate != 44100 {
		t.Fatalf("got %+v", plan)
	}
}

func TestNegotiateAudioResamplesOnRateMismatch(t *testing.T) {
	supported := format.SampleFormatBit(format.SampleFormatS16)
	plan := NegotiateAudio(format.SampleFormatS16, 48000, supported, 44100)
	if !plan.NeedsResampler {
		t.Fatal("rate mismatch should require a resampler even when the format is supported")
	}
	if plan.TargetFormat != format.SampleFormatS16 || plan.TargetRate != 44100 {
		t.Fatalf("got %+v", plan)
	}
}

func TestNegotiateAudioFallsBackToPriorityOrder(t *testing.T) {
	// Native S16P isn't supported; host supports S16 and FLTP. Priority
	// order is {FLT, FLTP, S16, S16P}, so FLTP should win over S16.
	supported := format.SampleFormatBit(format.SampleFormatS16) | format.SampleFormatBit(format.SampleFormatFLTP)
	plan := NegotiateAudio(format.SampleFormatS16P, 44100, supported, 44100)
	if !plan.NeedsResampler {
		t.Fatal("unsupported native format should require a resampler")
	}
	if plan.TargetFormat != format.SampleFormatFLTP {
		t.Fatalf("TargetFormat = %v, want FLTP (priority order over S16)", plan.TargetFormat)
	}
}

func TestNegotiateAudioEmptyMaskAcceptsAnything(t *testing.T) {
	plan := NegotiateAudio(format.SampleFormatFLTP, 96000, 0, 44100)
	if plan.NeedsResampler {
		t.Fatal("empty mask means accept anything, no resampler")
	}
	if plan.TargetFormat != format.SampleFormatFLTP || plan.TargetRate != 96000 {
		t.Fatalf("got %+v, want native format/rate passed through", plan)
	}
}

func TestNegotiateVideoPassThroughWhenNativeSupported(t *testing.T) {
	supported := format.PixelFormatBit(format.PixelFormatNV12)
	plan := NegotiateVideo(format.PixelFormatNV12, 1920, 1080, supported)
	if plan.NeedsScaler {
		t.Fatal("should not need a scaler when native format is supported")
	}
	if plan.TargetFormat != format.PixelFormatNV12 || plan.Width != 1920 || plan.Height != 1080 {
		t.Fatalf("got %+v", plan)
	}
}

func TestNegotiateVideoFallsBackToPriorityOrder(t *testing.T) {
	// Native RGB24 isn't supported; host supports NV21 and NV12. Priority
	// order is {YUV420P, NV12, NV21, RGB24}, so NV12 should win.
	supported := format.PixelFormatBit(format.PixelFormatNV21) | format.PixelFormatBit(format.PixelFormatNV12)
	plan := NegotiateVideo(format.PixelFormatRGB24, 640, 480, supported)
	if !plan.NeedsScaler {
		t.Fatal("unsupported native format should require a scaler")
	}
	if plan.TargetFormat != format.PixelFormatNV12 {
		t.Fatalf("TargetFormat = %v, want NV12 (priority order over NV21)", plan.TargetFormat)
	}
	if plan.Width != 640 || plan.Height != 480 {
		t.Fatalf("scaler should target the decoder's intrinsic dimensions, got %dx%d", plan.Width, plan.Height)
	}
}

func TestNegotiateVideoEmptyMaskAcceptsAnything(t *testing.T) {
	plan := NegotiateVideo(format.PixelFormatRGB24, 320, 240, 0)
	if plan.NeedsScaler {
		t.Fatal("empty mask means accept anything, no scaler")
	}
	if plan.TargetFormat != format.PixelFormatRGB24 {
		t.Fatalf("got %+v", plan)
	}
}
