package decode

import (
	"fmt"

	"github.com/avcore/mediacore/internal/avrt"
	"github.com/avcore/mediacore/internal/format"
	"github.com/avcore/mediacore/internal/queue"
)

// pushVideoFrame implements spec.md §4.4's video-specific push rule: PTS is
// the frame's native PTS scaled by the stream time base; duration is the
// packet's duration (scaled) plus the field-repeat correction when known,
// falling back to 1/fps when the packet carried no duration. The frame is
// scaled into the negotiated target pixel format only when negotiation
// called for it.
func (d *Decoder) pushVideoFrame(rf avrt.Frame) error {
	pts := d.ptsSeconds(rf)
	duration := d.videoFrameDuration(rf)

	nativeFormat, ok := format.ParsePixelFormatName(rf.PixelFormatName())
	if !ok {
		return fmt.Errorf("decode: %s: %w: native pixel format %q", d.name, ErrFormatUnsupported, rf.PixelFormatName())
	}

	slot, ok := d.frameq.PeekWritable()
	if !ok {
		return nil
	}

	if !d.videoPlan.NeedsScaler {
		fillVideoSlot(slot, rf, nativeFormat, rf.Width(), rf.Height(), pts, duration)
		d.frameq.Push()
		return nil
	}

	if d.scaler == nil {
		s, err := d.rt.NewScaler(
			avrt.ScalerFormat{PixelFormatName: nativeFormat.RuntimeName(), Width: rf.Width(), Height: rf.Height()},
			avrt.ScalerFormat{PixelFormatName: d.videoPlan.TargetFormat.RuntimeName(), Width: d.videoPlan.Width, Height: d.videoPlan.Height},
		)
		if err != nil {
			return fmt.Errorf("decode: %s: %w: build scaler: %v", d.name, ErrFormatUnsupported, err)
		}
		d.scaler = s
	}

	out := d.rt.NewScratchFrame()
	defer out.Release()
	if err := d.scaler.Scale(rf, out); err != nil {
		return fmt.Errorf("decode: %s: scale: %w", d.name, err)
	}
	fillVideoSlot(slot, out, d.videoPlan.TargetFormat, d.videoPlan.Width, d.videoPlan.Height, pts, duration)
	d.frameq.Push()
	return nil
}

// videoFrameDuration implements spec.md §4.4: "(packet_duration ×
// time_base) + repeat_pict/(2×fps), falling back to 1/fps when packet
// duration is unknown".
func (d *Decoder) videoFrameDuration(rf avrt.Frame) float64 {
	fps := d.fps.Float()
	if fps <= 0 {
		return 0
	}
	if pd := rf.PacketDuration(); pd > 0 {
		return d.timeBase.Seconds(pd) + float64(rf.RepeatPict())/(2*fps)
	}
	return 1 / fps
}

func fillVideoSlot(slot *queue.Frame, rf avrt.Frame, pf format.PixelFormat, width, height int, pts, duration float64) {
	slot.PTS = pts
	slot.Duration = duration
	slot.PixelFormat = pf
	slot.Width = width
	slot.Height = height

	nbPlanes := 3
	if pf == format.PixelFormatNV12 || pf == format.PixelFormatNV21 {
		nbPlanes = 2
	} else if pf == format.PixelFormatRGB24 {
		nbPlanes = 1
	}
	slot.Data = slot.Data[:0]
	slot.Linesize = slot.Linesize[:0]
	for p := 0; p < nbPlanes; p++ {
		b, err := rf.PlaneBytes(p)
		if err != nil {
			break
		}
		slot.Data = append(slot.Data, b)
		slot.Linesize = append(slot.Linesize, rf.Linesize(p))
	}
}
