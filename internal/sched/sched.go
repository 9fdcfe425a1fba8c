// Package sched implements the presentation scheduler of spec.md §4.7: the
// video refresh loop that decides when to display a queued frame, when to
// drop one, and keeps the video/external clocks in sync with the playback
// master.
package sched

import (
	"math"
	"sync"
	"time"

	"github.com/avcore/mediacore/internal/clock"
	"github.com/avcore/mediacore/internal/queue"
)

// RefreshPeriod is the scheduler's base tick, spec.md §4.7 "base refresh
// period of 10 ms".
const RefreshPeriod = 10 * time.Millisecond

const (
	minSyncThreshold = 0.04
	maxSyncThreshold = 0.1
)

// Master identifies which clock currently drives playback.
type Master int

const (
	MasterAudio Master = iota
	MasterVideo
	MasterExternal
)

// Scheduler owns the three clocks and the video frame queue, and runs the
// refresh loop described in spec.md §4.7.
type Scheduler struct {
	pictq *queue.FrameQueue

	// flagsMu guards hasAud/hasVid: the reader goroutine flips them as
	// streams are discovered (InitAudioRender/InitVideoRender) while the
	// refresh loop reads them on every tick.
	flagsMu sync.Mutex
	hasAud  bool
	hasVid  bool

	AudioClock    *clock.Clock
	VideoClock    *clock.Clock
	ExternalClock *clock.Clock
	// epoch is the validity generation VideoClock/AudioClock were built
	// with (clock.New's source). VideoClock.Set below must stamp this
	// generation, not vp.Serial: the FrameQueue's per-push serial and the
	// epoch are independent counters that would almost never agree.
	epoch *clock.Epoch

	MaxFrameDuration float64

	// refreshPeriod is the base tick Run sleeps for between ticks
	// (internal/config.Tuning's RefreshRateMillis knob); defaults to
	// RefreshPeriod.
	refreshPeriod time.Duration

	frameTimer float64
	paused     bool

	// Display is invoked once per frame the scheduler decides to show.
	// It receives the frame that was peeked; the scheduler has already
	// advanced past it by the time Display returns.
	Display func(*queue.Frame)
}

// Options configures a new Scheduler.
type Options struct {
	PictureQueue     *queue.FrameQueue
	AudioClock       *clock.Clock
	VideoClock       *clock.Clock
	ExternalClock    *clock.Clock
	Epoch            *clock.Epoch
	HasAudio         bool
	HasVideo         bool
	MaxFrameDuration float64
	Display          func(*queue.Frame)

	// RefreshPeriod overrides the scheduler's base tick (spec.md §4.7's
	// hardcoded 10ms, internal/config.Tuning's RefreshRateMillis knob).
	// Defaults to RefreshPeriod when zero.
	RefreshPeriod time.Duration
}

// New constructs a Scheduler. frameTimer starts at "now" so the first
// refresh tick displays immediately.
func New(opt Options) *Scheduler {
	refresh := opt.RefreshPeriod
	if refresh == 0 {
		refresh = RefreshPeriod
	}
	return &Scheduler{
		pictq:            opt.PictureQueue,
		hasAud:           opt.HasAudio,
		hasVid:           opt.HasVideo,
		AudioClock:       opt.AudioClock,
		VideoClock:       opt.VideoClock,
		ExternalClock:    opt.ExternalClock,
		epoch:            opt.Epoch,
		MaxFrameDuration: opt.MaxFrameDuration,
		refreshPeriod:    refresh,
		frameTimer:       nowSeconds(),
		Display:          opt.Display,
	}
}

var start = time.Now()

func nowSeconds() float64 { return time.Since(start).Seconds() }

// SetPaused toggles the scheduler's paused flag along with all three
// clocks (spec.md §4.9 "play/pause: toggles paused on the engine and on
// all three clocks").
func (s *Scheduler) SetPaused(paused bool) {
	s.paused = paused
	s.AudioClock.SetPaused(paused)
	s.VideoClock.SetPaused(paused)
	s.ExternalClock.SetPaused(paused)
}

// SetHasAudio/SetHasVideo let the engine facade update the master-clock
// selection reactively as the reader discovers streams, since stream
// discovery happens on the reader's own goroutine after Scheduler
// construction.
func (s *Scheduler) SetHasAudio(has bool) {
	s.flagsMu.Lock()
	s.hasAud = has
	s.flagsMu.Unlock()
}

func (s *Scheduler) SetHasVideo(has bool) {
	s.flagsMu.Lock()
	s.hasVid = has
	s.flagsMu.Unlock()
}

// MasterKind implements spec.md §4.7's "Master clock selection": audio
// master when an audio stream exists; else video; else external.
func (s *Scheduler) MasterKind() Master {
	s.flagsMu.Lock()
	hasAud, hasVid := s.hasAud, s.hasVid
	s.flagsMu.Unlock()
	switch {
	case hasAud:
		return MasterAudio
	case hasVid:
		return MasterVideo
	default:
		return MasterExternal
	}
}

// MasterClock returns the Clock MasterKind selects.
func (s *Scheduler) MasterClock() *clock.Clock {
	switch s.MasterKind() {
	case MasterAudio:
		return s.AudioClock
	case MasterVideo:
		return s.VideoClock
	default:
		return s.ExternalClock
	}
}

// Run ticks the refresh loop until stop is closed. It sleeps
// remaining_time (bounded by RefreshPeriod) before every call to Tick, as
// spec.md §4.7 describes.
func (s *Scheduler) Run(stop <-chan struct{}) {
	remaining := s.refreshPeriod
	for {
		select {
		case <-stop:
			return
		case <-time.After(remaining):
		}
		remaining = s.refreshPeriod
		if s.paused {
			continue
		}
		remaining = s.Tick(nowSeconds())
	}
}

// Tick performs one iteration of spec.md §4.7 step 4 (video_refresh) and
// returns the remaining_time the caller should sleep before the next
// tick.
func (s *Scheduler) Tick(now float64) time.Duration {
	remaining := s.refreshPeriod

	for {
		if s.pictq.NbRemaining() == 0 {
			return remaining
		}

		lastvp := s.pictq.PeekLast()
		vp := s.pictq.Peek()
		if lastvp.Serial != vp.Serial {
			s.frameTimer = now
		}

		if s.paused {
			// "Jump to display": force_refresh was never set this tick,
			// so nothing new is shown (spec.md §4.7 step 4/5).
			return remaining
		}

		lastDuration := s.vpDuration(lastvp, vp)
		delay := s.computeTargetDelay(lastDuration)

		if now < s.frameTimer+delay {
			wait := s.frameTimer + delay - now
			if wait < remaining.Seconds() {
				remaining = time.Duration(wait * float64(time.Second))
			}
			return remaining
		}

		s.frameTimer += delay
		if delay > 0 && now-s.frameTimer > 0.1 {
			s.frameTimer = now
		}

		if !math.IsNaN(vp.PTS) {
			s.VideoClock.Set(vp.PTS, s.epoch.Serial())
			s.ExternalClock.SyncTo(s.VideoClock)
		}

		if s.pictq.NbRemaining() > 1 {
			nextvp := s.pictq.PeekNext()
			if now > s.frameTimer+s.vpDuration(vp, nextvp) {
				s.pictq.Next()
				continue
			}
		}

		s.pictq.Next()
		s.displayCurrent()
		return remaining
	}
}

func (s *Scheduler) displayCurrent() {
	if s.Display == nil {
		return
	}
	vp := s.pictq.PeekLast()
	s.Display(vp)
}

// vpDuration implements spec.md §4.7's vp_duration(a, b).
func (s *Scheduler) vpDuration(a, b *queue.Frame) float64 {
	if a.Serial != b.Serial {
		return 0
	}
	d := b.PTS - a.PTS
	if math.IsNaN(d) || d <= 0 || d > s.MaxFrameDuration {
		return a.Duration
	}
	return d
}

// computeTargetDelay implements spec.md §4.7's compute_target_delay.
func (s *Scheduler) computeTargetDelay(delay float64) float64 {
	diff := s.VideoClock.Get() - s.MasterClock().Get()
	syncThreshold := clampFloat(delay, minSyncThreshold, maxSyncThreshold)

	if !math.IsNaN(diff) && math.Abs(diff) < s.MaxFrameDuration {
		switch {
		case diff <= -syncThreshold:
			delay = math.Max(0, delay+diff)
		case diff >= syncThreshold && delay > maxSyncThreshold:
			delay = delay + diff
		case diff >= syncThreshold:
			delay = 2 * delay
		}
	}
	return delay
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
