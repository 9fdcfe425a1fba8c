package ffmpeg

import (
	"fmt"

	astiav "github.com/asticode/go-astiav"

	"github.com/avcore/mediacore/internal/avrt"
)

// scaler adapts *astiav.SoftwareScaleContext to avrt.Scaler. Scale stamps
// the destination frame with the negotiated output geometry and allocates
// a fresh buffer for it on every call, mirroring video.go's dst.SetWidth/SetHeight/
// SetPixelFormat/AllocBuffer sequence ahead of ScaleFrame.
type scaler struct {
	ssc    *astiav.SoftwareScaleContext
	outFmt astiav.PixelFormat
	outW   int
	outH   int
}

func (s *scaler) Scale(in, out avrt.Frame) error {
	inFr, ok := in.(*frame)
	if !ok {
		return fmt.Errorf("ffmpeg: scaler.Scale: not an ffmpeg frame")
	}
	outFr, ok := out.(*frame)
	if !ok {
		return fmt.Errorf("ffmpeg: scaler.Scale: not an ffmpeg frame")
	}
	outFr.f.Unref()
	outFr.f.SetWidth(s.outW)
	outFr.f.SetHeight(s.outH)
	outFr.f.SetPixelFormat(s.outFmt)
	if err := outFr.f.AllocBuffer(1); err != nil {
		return fmt.Errorf("ffmpeg: dst.AllocBuffer: %w", err)
	}
	if err := s.ssc.ScaleFrame(inFr.f, outFr.f); err != nil {
		return fmt.Errorf("ffmpeg: ssc ScaleFrame: %w", err)
	}
	return nil
}

func (s *scaler) Close() {
	s.ssc.Free()
}
