// Package audiopull implements the pull-model audio endpoint of spec.md
// §4.8: a host audio device calls FetchSamples/FetchPlanar from its own
// callback thread to pull exactly as many bytes as it needs, across frame
// boundaries, updating the audio clock on first touch of each frame.
package audiopull

import (
	"github.com/avcore/mediacore/internal/clock"
	"github.com/avcore/mediacore/internal/message"
	"github.com/avcore/mediacore/internal/queue"
)

// Puller is the audio pull endpoint bound to one FrameQueue and clock.
type Puller struct {
	sampq      *queue.FrameQueue
	audioClock *clock.Clock
	extClock   *clock.Clock
	epoch      *clock.Epoch
	sink       message.Sink

	// Paused mirrors the engine's paused flag: while true, FetchSamples
	// returns 0 and FetchPlanar returns at once, neither touching the
	// queue (spec.md §4.8).
	Paused bool
}

// Options configures a Puller.
type Options struct {
	SampleQueue   *queue.FrameQueue
	AudioClock    *clock.Clock
	ExternalClock *clock.Clock
	// Epoch is the same validity generation AudioClock was constructed
	// with (clock.New's source; ExternalClock is self-serial and takes no
	// epoch). Set calls must stamp this
	// generation, not the frame's own FrameQueue push-serial: those two
	// counters advance independently and would almost never agree,
	// leaving audclk.Get() reading NaN on nearly every call.
	Epoch *clock.Epoch
	Sink  message.Sink
}

// New constructs a Puller.
func New(opt Options) *Puller {
	return &Puller{
		sampq:      opt.SampleQueue,
		audioClock: opt.AudioClock,
		extClock:   opt.ExternalClock,
		epoch:      opt.Epoch,
		sink:       opt.Sink,
	}
}

// touchClock implements spec.md §4.8's first-touch rule: "If af.left_offset
// == 0 (first touch of this frame): compute audio_clock = af.pts +
// frame.sample_count / frame.sample_rate and audclk.set_at(audio_clock, 0,
// now); sync external clock to audio." The serial stamped here is the
// session epoch's current generation (see clock.Epoch), not af.Serial.
//
// The divisor is af.NativeSampleRate, not af.SampleRate: mr_fetch_packet_sample
// divides the (possibly resampled) sample count by the decoder's native
// input rate rather than the rate samples are actually delivered at once
// resampling has changed it. spec.md §9 documents this as a likely minor
// bug in the source that implementations should preserve rather than
// silently fix.
func (p *Puller) touchClock(af *queue.Frame) {
	if af.LeftOffset != 0 || af.RightOffset != 0 {
		return
	}
	audioClock := af.PTS + float64(af.NbSamples)/float64(af.NativeSampleRate)
	p.audioClock.Set(audioClock, p.epoch.Serial())
	p.extClock.SyncTo(p.audioClock)
}

// FetchSamples implements spec.md §4.8's interleaved fetch_samples: it
// fills out fully from as many consecutive frames as needed, and returns 0
// whether it filled the whole buffer or bailed early on an empty queue
// (mirroring mr_fetch_packet_sample's plain status-code return).
func (p *Puller) FetchSamples(out []byte) int {
	if p.Paused {
		return 0
	}

	written := 0
	want := len(out)
	for want > 0 {
		af, ok := p.sampq.PeekReadable(false)
		if !ok {
			message.Post(p.sink, message.FrameQueueIsEmpty, 0, 0)
			return 0
		}

		if af.LeftOffset == 0 {
			p.touchClock(af)
		}

		if len(af.Data) == 0 {
			p.sampq.Next()
			continue
		}
		plane := af.Data[0]
		remaining := len(plane) - af.LeftOffset
		if remaining <= 0 {
			p.sampq.Next()
			continue
		}

		n := want
		if n > remaining {
			n = remaining
		}
		copy(out[written:written+n], plane[af.LeftOffset:af.LeftOffset+n])
		af.LeftOffset += n
		written += n
		want -= n

		if af.LeftOffset >= len(plane) {
			p.sampq.Next()
		}
	}
	return 0
}

// FetchPlanar implements spec.md §4.8's planar fetch_planar: the left and
// right buffers advance independent cursors, and the frame is retired only
// when the left side is exhausted (mirroring mr_fetch_planar_sample).
func (p *Puller) FetchPlanar(lbuf []byte, rbuf []byte) {
	if p.Paused {
		return
	}

	wantL, wantR := len(lbuf), len(rbuf)
	writtenL, writtenR := 0, 0

	for wantL > 0 || wantR > 0 {
		af, ok := p.sampq.PeekReadable(false)
		if !ok {
			message.Post(p.sink, message.FrameQueueIsEmpty, 0, 0)
			return
		}

		if af.LeftOffset == 0 {
			p.touchClock(af)
		}

		var leftPlane, rightPlane []byte
		if len(af.Data) > 0 {
			leftPlane = af.Data[0]
		}
		if len(af.Data) > 1 {
			rightPlane = af.Data[1]
		}

		leftRemaining := len(leftPlane) - af.LeftOffset
		n := wantL
		if n > leftRemaining {
			n = leftRemaining
		}
		if n > 0 {
			copy(lbuf[writtenL:writtenL+n], leftPlane[af.LeftOffset:af.LeftOffset+n])
			writtenL += n
			wantL -= n
			af.LeftOffset += n
		}

		if rightPlane != nil {
			rightRemaining := len(rightPlane) - af.RightOffset
			m := wantR
			if m > rightRemaining {
				m = rightRemaining
			}
			if m > 0 {
				copy(rbuf[writtenR:writtenR+m], rightPlane[af.RightOffset:af.RightOffset+m])
				writtenR += m
				wantR -= m
				af.RightOffset += m
			}
		}

		if af.LeftOffset >= len(leftPlane) {
			p.sampq.Next()
		}
	}
}
