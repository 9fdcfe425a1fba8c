// Package mediacore is the Engine facade of spec.md §4.9: it wires the
// PacketQueue/FrameQueue pair, the three clocks, the reader, the
// presentation scheduler, and the audio pull endpoint into one playback
// session per Engine, the way mr_play.c's mr_player_instance_create /
// mr_prepare_play / mr_play compose VideoState out of the same pieces.
package mediacore

import (
	"fmt"
	"sync"
	"time"

	"github.com/avcore/mediacore/internal/audiopull"
	"github.com/avcore/mediacore/internal/avrt"
	"github.com/avcore/mediacore/internal/clock"
	"github.com/avcore/mediacore/internal/config"
	"github.com/avcore/mediacore/internal/ffmpeg"
	"github.com/avcore/mediacore/internal/logging"
	"github.com/avcore/mediacore/internal/message"
	"github.com/avcore/mediacore/internal/queue"
	"github.com/avcore/mediacore/internal/reader"
	"github.com/avcore/mediacore/internal/sched"
)

type state int

const (
	stateNotStarted state = iota
	statePrepared
	stateClosed
)

// Params configures a new Engine (spec.md §6's init params): the URL to
// open, the host's capability masks, and the two callbacks the engine
// never blocks on.
type Params struct {
	URL string

	// Runtime defaults to ffmpeg.New() when nil. Tests substitute a fake
	// avrt.Runtime here.
	Runtime avrt.Runtime
	Logger  *logging.Logger
	Tuning  config.Tuning

	// MessageFunc receives every posted Message (spec.md §6). May be nil.
	MessageFunc func(Message)
	// DisplayFunc receives every frame the scheduler decides to show.
	// May be nil (spec.md §1: rendering itself is out of scope).
	DisplayFunc func(Frame)

	SupportedSampleFormats SampleFormatMask
	SupportedSampleRate    int
	SupportedPixelFormats  PixelFormatMask
}

// Engine is one playback session: instance_create allocates it, Prepare
// builds and starts its pipeline, Play/Pause toggle it, and Close tears
// it down. Exactly one Engine exists per URL played.
type Engine struct {
	mu    sync.Mutex
	state state
	log   *logging.Logger
	rt    avrt.Runtime
	tn    config.Tuning
	url   string

	messageFunc func(Message)
	displayFunc func(Frame)

	supportedAudio     SampleFormatMask
	supportedAudioRate int
	supportedVideo     PixelFormatMask

	rdr *reader.Reader

	epoch         *clock.Epoch
	audioClock    *clock.Clock
	videoClock    *clock.Clock
	externalClock *clock.Clock

	audioFrameQ *queue.FrameQueue
	videoFrameQ *queue.FrameQueue

	scheduler *sched.Scheduler
	puller    *audiopull.Puller

	refreshStop chan struct{}
	wg          sync.WaitGroup

	paused bool

	runErrMu sync.Mutex
	runErr   error
}

// NewEngine implements spec.md §4.9's instance_create: it allocates
// engine state and captures the URL, callbacks, and capability masks,
// without touching the network or the runtime yet.
func NewEngine(p Params) *Engine {
	if p.Logger == nil {
		p.Logger = logging.Default
	}
	if p.Runtime == nil {
		p.Runtime = ffmpeg.New()
	}
	if p.Tuning.AudioFrameQueueSize == 0 {
		p.Tuning = config.Defaults()
	}
	return &Engine{
		state:              stateNotStarted,
		log:                p.Logger.Tagged("engine"),
		rt:                 p.Runtime,
		tn:                 p.Tuning,
		url:                p.URL,
		messageFunc:        p.MessageFunc,
		displayFunc:        p.DisplayFunc,
		supportedAudio:     p.SupportedSampleFormats,
		supportedAudioRate: p.SupportedSampleRate,
		supportedVideo:     p.SupportedPixelFormats,
		refreshStop:        make(chan struct{}),
	}
}

// Post implements message.Sink, adapting the engine's own MessageFunc.
func (e *Engine) Post(m Message) {
	if e.messageFunc != nil {
		e.messageFunc(m)
	}
}

// Prepare implements spec.md §4.9's prepare: construct the queues, the
// three clocks (audio/video borrow the session epoch, external borrows
// its own serial), spawn the reader thread, and start the refresh loop.
// It returns once the pipeline is constructed; stream discovery continues
// asynchronously on the reader's own goroutine, with InitAudioRender /
// InitVideoRender messages arriving once each stream opens.
func (e *Engine) Prepare() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateClosed {
		return ErrClosed
	}
	if e.state != stateNotStarted {
		return fmt.Errorf("mediacore: Prepare called in state %d, want not-started", e.state)
	}

	e.rdr = reader.New(reader.Options{
		URL:     e.url,
		Runtime: e.rt,
		Logger:  e.log,
		Sink:    message.SinkFunc(e.dispatchMessage),
		Capabilities: reader.Capabilities{
			AudioFormats: e.supportedAudio,
			AudioRate:    e.supportedAudioRate,
			VideoFormats: e.supportedVideo,
		},
		MaxQueueBytes: e.tn.PacketQueueMaxBytes,
		MaxPacketNum:  e.tn.PacketQueueMaxCount,
		BackoffWait:   time.Duration(e.tn.ReadBackpressureWaitMillis) * time.Millisecond,
	})

	e.audioFrameQ = queue.NewFrameQueue(e.rdr.AudioQueue(), e.tn.AudioFrameQueueSize)
	e.videoFrameQ = queue.NewFrameQueue(e.rdr.VideoQueue(), e.tn.VideoFrameQueueSize)
	e.rdr.SetFrameQueues(e.audioFrameQ, e.videoFrameQ)

	e.epoch = clock.NewEpoch()
	e.audioClock = clock.New(e.epoch)
	e.videoClock = clock.New(e.epoch)
	e.externalClock = clock.New(nil)

	// MaxFrameDuration's discontinuity-aware value (spec.md §4.6 step 3)
	// is only known once the reader has opened the input, which happens
	// asynchronously after Prepare returns; the scheduler is seeded with
	// the common-case default and never revisited; reader.Reader.MaxFrameDuration
	// itself still reflects the accurate per-input value for anything
	// that consults the reader directly.
	e.scheduler = sched.New(sched.Options{
		PictureQueue:     e.videoFrameQ,
		AudioClock:       e.audioClock,
		VideoClock:       e.videoClock,
		ExternalClock:    e.externalClock,
		Epoch:            e.epoch,
		MaxFrameDuration: e.tn.MaxFrameDurationNormalSeconds,
		Display:          e.onDisplay,
		RefreshPeriod:    time.Duration(e.tn.RefreshRateMillis) * time.Millisecond,
	})

	e.puller = audiopull.New(audiopull.Options{
		SampleQueue:   e.audioFrameQ,
		AudioClock:    e.audioClock,
		ExternalClock: e.externalClock,
		Epoch:         e.epoch,
		Sink:          message.SinkFunc(e.dispatchMessage),
	})

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		err := e.rdr.Run()
		if err != nil {
			e.setRunErr(err)
		}
	}()
	go func() {
		defer e.wg.Done()
		e.scheduler.Run(e.refreshStop)
	}()

	e.state = statePrepared
	return nil
}

// dispatchMessage relays a posted message to the host callback and keeps
// the scheduler's master-clock selection current: InitAudioRender/
// InitVideoRender mark that an audio/video stream exists, since stream
// discovery happens asynchronously on the reader's goroutine after
// Prepare returns (spec.md §4.7 "Master clock selection").
func (e *Engine) dispatchMessage(m Message) {
	switch m.Kind {
	case InitAudioRender:
		e.scheduler.SetHasAudio(true)
	case InitVideoRender:
		e.scheduler.SetHasVideo(true)
	}
	e.Post(m)
}

func (e *Engine) onDisplay(f *queue.Frame) {
	if e.displayFunc != nil {
		e.displayFunc(Frame{f: f})
	}
}

func (e *Engine) setRunErr(err error) {
	e.runErrMu.Lock()
	e.runErr = err
	e.runErrMu.Unlock()
}

// Err returns the reader's terminal error, if any, once Prepare has been
// called. A nil result does not mean playback succeeded to completion --
// only that no InputOpenFailure/StreamDiscoveryFailure/ResourceExhausted
// class error has been observed yet.
func (e *Engine) Err() error {
	e.runErrMu.Lock()
	err := e.runErr
	e.runErrMu.Unlock()
	if err != nil {
		return err
	}
	if e.rdr != nil {
		return e.rdr.DecoderErr()
	}
	return nil
}

// Play and Pause implement spec.md §4.9's "play/pause: toggles paused on
// the engine and on all three clocks".
func (e *Engine) Play() error {
	return e.setPaused(false)
}

func (e *Engine) Pause() error {
	return e.setPaused(true)
}

func (e *Engine) setPaused(paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateClosed {
		return ErrClosed
	}
	if e.state != statePrepared {
		return ErrNotPrepared
	}
	e.paused = paused
	e.scheduler.SetPaused(paused)
	e.puller.Paused = paused
	return nil
}

// Paused reports the engine's current play/pause state.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// SetDisplayFunc implements spec.md §4.9's set_display_func: it may be
// called at any time, including before Prepare.
func (e *Engine) SetDisplayFunc(f func(Frame)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.displayFunc = f
}

// FetchSamples and FetchPlanar implement spec.md §4.8's pull-model audio
// endpoint; a host audio callback calls these directly from its own
// thread.
func (e *Engine) FetchSamples(out []byte) int {
	e.mu.Lock()
	p := e.puller
	e.mu.Unlock()
	if p == nil {
		return 0
	}
	return p.FetchSamples(out)
}

func (e *Engine) FetchPlanar(left, right []byte) {
	e.mu.Lock()
	p := e.puller
	e.mu.Unlock()
	if p == nil {
		return
	}
	p.FetchPlanar(left, right)
}

// Close tears the engine down: spec.md §6 notes the source specifies "no
// seek, stop, or destroy" and invites implementers to add one that
// "aborts all queues, joins all threads, releases frames, and frees the
// codec contexts". Close after the first call is a no-op that reports
// ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.state == stateClosed {
		e.mu.Unlock()
		return ErrClosed
	}
	wasPrepared := e.state == statePrepared
	e.state = stateClosed
	e.mu.Unlock()

	if !wasPrepared {
		return nil
	}

	close(e.refreshStop)
	e.rdr.Abort()
	e.audioFrameQ.Signal()
	e.videoFrameQ.Signal()

	e.rdr.WaitDecoders()
	e.wg.Wait()

	var closeErr error
	if d := e.rdr.AudioDecoder(); d != nil {
		if err := d.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	if d := e.rdr.VideoDecoder(); d != nil {
		if err := d.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}
