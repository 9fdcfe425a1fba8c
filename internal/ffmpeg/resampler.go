package ffmpeg

import (
	"fmt"

	astiav "github.com/asticode/go-astiav"

	"github.com/avcore/mediacore/internal/avrt"
)

// resampler adapts *astiav.SoftwareResampleContext to avrt.Resampler. The
// output frame passed to Convert comes from Runtime.NewScratchFrame and
// carries no format of its own, so Convert stamps it with the negotiated
// output layout before handing it to swr, matching swr_convert_frame's
// expectation that the destination frame already declares its format.
type resampler struct {
	swr     *astiav.SoftwareResampleContext
	inFmt   astiav.SampleFormat
	outFmt  astiav.SampleFormat
	inRate  int
	outRate int
	outCh   astiav.ChannelLayout
}

func (r *resampler) Convert(in, out avrt.Frame) error {
	inFr, ok := in.(*frame)
	if !ok {
		return fmt.Errorf("ffmpeg: resampler.Convert: not an ffmpeg frame")
	}
	outFr, ok := out.(*frame)
	if !ok {
		return fmt.Errorf("ffmpeg: resampler.Convert: not an ffmpeg frame")
	}
	outFr.f.Unref()
	outFr.f.SetSampleFormat(r.outFmt)
	outFr.f.SetSampleRate(r.outRate)
	outFr.f.SetChannelLayout(r.outCh)
	if err := r.swr.ConvertFrame(inFr.f, outFr.f); err != nil {
		return fmt.Errorf("ffmpeg: swr ConvertFrame: %w", err)
	}
	return nil
}

func (r *resampler) Close() {
	r.swr.Free()
}
