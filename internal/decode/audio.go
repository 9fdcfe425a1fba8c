package decode

import (
	"fmt"

	"github.com/avcore/mediacore/internal/avrt"
	"github.com/avcore/mediacore/internal/format"
	"github.com/avcore/mediacore/internal/queue"
)

// pushAudioFrame implements spec.md §4.4's audio-specific push rule: PTS is
// the frame's native PTS scaled by the stream time base, the frame is
// resampled into the negotiated target format only when the negotiation
// actually called for one, and the converted (or passed-through) samples
// are copied into a writable FrameQueue slot.
func (d *Decoder) pushAudioFrame(rf avrt.Frame) error {
	pts := d.ptsSeconds(rf)

	nativeFormat, ok := format.ParseSampleFormatName(rf.SampleFormatName())
	if !ok {
		return fmt.Errorf("decode: %s: %w: native sample format %q", d.name, ErrFormatUnsupported, rf.SampleFormatName())
	}

	nativeRate := rf.SampleRate()

	slot, ok := d.frameq.PeekWritable()
	if !ok {
		return nil // upstream aborted while waiting for a slot
	}

	if !d.audioPlan.NeedsResampler {
		fillAudioSlot(slot, rf, nativeFormat, pts, nativeRate)
		d.frameq.Push()
		return nil
	}

	if d.resampler == nil {
		r, err := d.rt.NewResampler(
			avrt.ResamplerFormat{SampleFormatName: nativeFormat.RuntimeName(), SampleRate: rf.SampleRate(), Channels: rf.Channels()},
			avrt.ResamplerFormat{SampleFormatName: d.audioPlan.TargetFormat.RuntimeName(), SampleRate: d.audioPlan.TargetRate, Channels: rf.Channels()},
		)
		if err != nil {
			return fmt.Errorf("decode: %s: %w: build resampler: %v", d.name, ErrFormatUnsupported, err)
		}
		d.resampler = r
	}

	out := d.rt.NewScratchFrame()
	defer out.Release()
	if err := d.resampler.Convert(rf, out); err != nil {
		return fmt.Errorf("decode: %s: resample: %w", d.name, err)
	}
	fillAudioSlot(slot, out, d.audioPlan.TargetFormat, pts, nativeRate)
	d.frameq.Push()
	return nil
}

func fillAudioSlot(slot *queue.Frame, rf avrt.Frame, sf format.SampleFormat, pts float64, nativeRate int) {
	slot.PTS = pts
	slot.SampleFormat = sf
	slot.SampleRate = rf.SampleRate()
	slot.NativeSampleRate = nativeRate
	slot.Channels = rf.Channels()
	slot.NbSamples = rf.NbSamples()
	slot.Duration = float64(rf.NbSamples()) / float64(rf.SampleRate())

	nbPlanes := 1
	if sf.Planar() {
		nbPlanes = rf.Channels()
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
