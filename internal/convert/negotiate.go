// Package convert implements the pure format-negotiation rules of spec.md
// §4.5, kept free of any concrete codec/runtime dependency so the
// decision table is unit-testable without cgo. internal/ffmpeg uses this
// package's outputs to decide whether to construct a concrete
// avrt.Resampler/avrt.Scaler.
package convert

import "github.com/avcore/mediacore/internal/format"

// AudioPlan is the outcome of negotiating a decoder's native audio format
// against a host's supported-format mask and target sample rate.
type AudioPlan struct {
	NeedsResampler bool
	TargetFormat   format.SampleFormat
	TargetRate     int
}

// NegotiateAudio implements spec.md §4.5's audio matching rule: no
// resampler is needed when the decoder's native format is supported *and*
// its sample rate already matches the host's; otherwise pick a target
// format (native if supported, else the first supported format in
// priority order) and resample to the host's rate.
//
// An empty supported mask means "accept anything": the resampler is
// skipped and the native format passes through untouched (spec.md §4.5
// Failure clause).
func NegotiateAudio(native format.SampleFormat, nativeRate int, supported format.SampleFormatMask, hostRate int) AudioPlan {
	if supported == 0 {
		return AudioPlan{NeedsResampler: false, TargetFormat: native, TargetRate: nativeRate}
	}

	if supported.Has(native) && nativeRate == hostRate {
		return AudioPlan{NeedsResampler: false, TargetFormat: native, TargetRate: nativeRate}
	}

	target := native
	if !supported.Has(native) {
		target = firstSupportedAudio(supported)
	}
	return AudioPlan{NeedsResampler: true, TargetFormat: target, TargetRate: hostRate}
}

func firstSupportedAudio(supported format.SampleFormatMask) format.SampleFormat {
	for _, f := range format.AudioPriority() {
		if supported.Has(f) {
			return f
		}
	}
	// Unreachable given a nonempty mask built from SampleFormat bits;
	// fall back to the lowest bit set.
	for f := format.SampleFormatS16; f <= format.SampleFormatFLTP; f++ {
		if supported.Has(f) {
			return f
		}
	}
	return format.SampleFormatFLT
}

// VideoPlan is the outcome of negotiating a decoder's native pixel format
// against a host's supported-format mask.
type VideoPlan struct {
	NeedsScaler  bool
	TargetFormat format.PixelFormat
	Width        int
	Height       int
}

// NegotiateVideo implements spec.md §4.5's video matching rule: scan the
// priority order for the first format that is both the decoder's native
// format and supported; if found, no scaler is needed. Otherwise the
// target is the first supported format in priority order, scaled at the
// decoder's intrinsic width/height (a point filter, per spec.md).
//
// An empty supported mask means "accept anything": the scaler is skipped.
func NegotiateVideo(native format.PixelFormat, width, height int, supported format.PixelFormatMask) VideoPlan {
	if supported == 0 {
		return VideoPlan{NeedsScaler: false, TargetFormat: native, Width: width, Height: height}
	}

	for _, f := range format.VideoPriority() {
		if f == native && supported.Has(f) {
			return VideoPlan{NeedsScaler: false, TargetFormat: native, Width: width, Height: height}
		}
	}

	target := firstSupportedVideo(supported)
	return VideoPlan{NeedsScaler: true, TargetFormat: target, Width: width, Height: height}
}

func firstSupportedVideo(supported format.PixelFormatMask) format.PixelFormat {
	for _, f := range format.VideoPriority() {
		if supported.Has(f) {
			return f
		}
	}
	for f := format.PixelFormatYUV420P; f <= format.PixelFormatRGB24; f++ {
		if supported.Has(f) {
			return f
		}
	}
	return format.PixelFormatYUV420P
}
