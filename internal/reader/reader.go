// Package reader implements the demuxer/reader thread of spec.md §4.6: it
// opens the input, selects streams, spawns the audio/video decoders, and
// runs the steady-state packet-pump loop.
package reader

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/avcore/mediacore/internal/avrt"
	"github.com/avcore/mediacore/internal/convert"
	"github.com/avcore/mediacore/internal/decode"
	"github.com/avcore/mediacore/internal/format"
	"github.com/avcore/mediacore/internal/logging"
	"github.com/avcore/mediacore/internal/message"
	"github.com/avcore/mediacore/internal/queue"
)

// ErrInputOpenFailure and ErrStreamDiscoveryFailure are spec.md §7's
// "engine prepare fails; the engine remains in 'not started' state"
// classes, distinguished by which step of Run failed.
var (
	ErrInputOpenFailure       = errors.New("reader: input open failure")
	ErrStreamDiscoveryFailure = errors.New("reader: stream discovery failure")
)

// Default backpressure/capacity knobs, overridable via Options
// (internal/config.Tuning feeds these in practice).
const (
	defaultMaxQueueBytes = 50 * 1024 * 1024
	defaultMaxPacketNum  = 500
	backoffWait          = 10 * time.Millisecond
)

// Capabilities describes what the host can consume, used to negotiate
// decoder output formats (spec.md §4.5).
type Capabilities struct {
	AudioFormats format.SampleFormatMask
	AudioRate    int
	VideoFormats format.PixelFormatMask
}

// Options configures a Reader.
type Options struct {
	URL          string
	Runtime      avrt.Runtime
	Logger       *logging.Logger
	Sink         message.Sink
	Capabilities Capabilities

	// AudioFrameQueue/VideoFrameQueue are the engine-owned FrameQueues
	// the reader's decoders push decoded frames into. The reader itself
	// only owns the two PacketQueues; frame queues, clocks, and the
	// scheduler are wired around it by the engine facade.
	AudioFrameQueue *queue.FrameQueue
	VideoFrameQueue *queue.FrameQueue

	MaxQueueBytes int64
	MaxPacketNum  int

	// BackoffWait overrides how long the reader waits on its
	// read_thread_cond when backpressured (internal/config.Tuning's
	// ReadBackpressureWaitMillis knob). Defaults to backoffWait.
	BackoffWait time.Duration
}

// Reader owns the input context, the two packet queues, and the two
// decoders it spawns once streams are selected.
type Reader struct {
	opt Options
	log *logging.Logger

	input avrt.InputContext

	audioq *queue.PacketQueue
	videoq *queue.PacketQueue

	audioDecoder *decode.Decoder
	videoDecoder *decode.Decoder

	// MaxFrameDuration is spec.md §4.6 step 3's discontinuity-aware
	// bound. Nothing outside the reader reads it: the presentation
	// scheduler is seeded from the tuning's normal value instead.
	MaxFrameDuration float64

	waitMu   sync.Mutex
	waitCond *sync.Cond
	aborted  bool

	// decWG tracks the decoder goroutines openStream spawns, so a caller
	// tearing the engine down can wait for them to actually return
	// before freeing the codec contexts they hold.
	decWG sync.WaitGroup

	decErrMu sync.Mutex
	decErr   error
}

// New opens nothing yet; call Run to perform spec.md §4.6's startup
// sequence and enter the steady-state loop. Run blocks until EOF or abort.
func New(opt Options) *Reader {
	if opt.Logger == nil {
		opt.Logger = logging.Default
	}
	if opt.MaxQueueBytes == 0 {
		opt.MaxQueueBytes = defaultMaxQueueBytes
	}
	if opt.MaxPacketNum == 0 {
		opt.MaxPacketNum = defaultMaxPacketNum
	}
	if opt.BackoffWait == 0 {
		opt.BackoffWait = backoffWait
	}
	r := &Reader{
		opt:    opt,
		log:    opt.Logger.Tagged("reader"),
		audioq: queue.NewPacketQueue("audio"),
		videoq: queue.NewPacketQueue("video"),
	}
	r.waitCond = sync.NewCond(&r.waitMu)
	return r
}

// AudioQueue/VideoQueue/AudioDecoder/VideoDecoder expose the reader's
// constructed pipeline stages to the engine facade, which wires frame
// queues/clocks/scheduler around them.
func (r *Reader) AudioQueue() *queue.PacketQueue { return r.audioq }
func (r *Reader) VideoQueue() *queue.PacketQueue { return r.videoq }
func (r *Reader) AudioDecoder() *decode.Decoder  { return r.audioDecoder }
func (r *Reader) VideoDecoder() *decode.Decoder  { return r.videoDecoder }

// SetFrameQueues wires the engine-owned FrameQueues in after construction,
// since they're built from AudioQueue()/VideoQueue() (the abort source a
// FrameQueue needs), which only exist once New has returned.
func (r *Reader) SetFrameQueues(audio, video *queue.FrameQueue) {
	r.opt.AudioFrameQueue = audio
	r.opt.VideoFrameQueue = video
}

// recordDecoderErr keeps the first terminal error either decoder
// goroutine reports; a decoder returning ErrAborted doesn't count (that's
// ordinary teardown, not a failure).
func (r *Reader) recordDecoderErr(err error) {
	if err == nil {
		return
	}
	r.decErrMu.Lock()
	if r.decErr == nil {
		r.decErr = err
	}
	r.decErrMu.Unlock()
}

// DecoderErr returns the first terminal error reported by either decoder
// goroutine, if any (spec.md §7 ResourceExhausted: "treated as terminal
// by the thread that observed it" -- this is how that reaches a caller
// polling the reader rather than just the log).
func (r *Reader) DecoderErr() error {
	r.decErrMu.Lock()
	defer r.decErrMu.Unlock()
	return r.decErr
}

// NotifyEmpty is passed to each decoder as its onEmptyQueue callback: it
// wakes the reader's backpressure wait immediately, matching
// pthread_cond_signal(&is->read_thread_cond) semantics in mr_play.c.
func (r *Reader) NotifyEmpty() {
	r.waitCond.Broadcast()
}

// Abort stops the reader's steady-state loop at its next poll and aborts
// both packet queues so downstream decoders unblock.
func (r *Reader) Abort() {
	r.waitMu.Lock()
	r.aborted = true
	r.waitMu.Unlock()
	r.waitCond.Broadcast()
	r.audioq.Abort()
	r.videoq.Abort()
}

// WaitDecoders blocks until every decoder goroutine openStream spawned has
// returned, for an orderly shutdown: callers must Abort (or drain to EOF)
// first, then WaitDecoders, then free the codec contexts the decoders hold.
func (r *Reader) WaitDecoders() {
	r.decWG.Wait()
}

// Run performs spec.md §4.6's open/probe/select/open-streams sequence,
// then blocks in the steady-state read loop until EOF or Abort. Each
// decoder's goroutine is spawned from openStream as soon as its stream is
// selected, matching mr_play.c's stream_component_open starting the decode
// thread inline rather than waiting for the caller to do it.
func (r *Reader) Run() error {
	input, err := r.opt.Runtime.OpenInput(r.opt.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInputOpenFailure, err)
	}
	r.input = input

	if input.FlagGenPTSDiscontinuity() {
		r.MaxFrameDuration = 10.0
	} else {
		r.MaxFrameDuration = 3600.0
	}

	videoIdx, audioIdx := selectStreams(input.Streams())

	if audioIdx >= 0 {
		if err := r.openStream(input.Streams()[audioIdx]); err != nil {
			return fmt.Errorf("%w: open audio stream: %v", ErrStreamDiscoveryFailure, err)
		}
	}
	if videoIdx >= 0 {
		if err := r.openStream(input.Streams()[videoIdx]); err != nil {
			return fmt.Errorf("%w: open video stream: %v", ErrStreamDiscoveryFailure, err)
		}
	}

	return r.pumpLoop()
}

// selectStreams implements spec.md §4.6 step 4: prefer the first H.264
// video stream, else the first video stream at all; pick the first audio
// stream (an approximation of ffmpeg's av_find_best_stream scoring, which
// needs bitrate/disposition data the avrt.Stream boundary doesn't expose).
func selectStreams(streams []avrt.Stream) (videoIdx, audioIdx int) {
	videoIdx, audioIdx = -1, -1
	firstVideo := -1
	firstH264 := -1
	for _, s := range streams {
		if s.MediaType() != avrt.MediaTypeVideo {
			continue
		}
		if firstVideo < 0 {
			firstVideo = s.Index()
		}
		if firstH264 < 0 && s.CodecName() == "h264" {
			firstH264 = s.Index()
			break
		}
	}
	if firstH264 >= 0 {
		videoIdx = firstH264
	} else {
		videoIdx = firstVideo
	}

	for _, s := range streams {
		if s.MediaType() == avrt.MediaTypeAudio {
			audioIdx = s.Index()
			break
		}
	}
	return videoIdx, audioIdx
}

// openStream implements spec.md §4.6 step 5 for one stream: build the
// codec context, negotiate a converter, post the matching init-render
// message, and spawn the decoder goroutine.
func (r *Reader) openStream(stream avrt.Stream) error {
	codec, err := r.input.OpenCodec(stream)
	if err != nil {
		return err
	}

	switch stream.MediaType() {
	case avrt.MediaTypeAudio:
		timeBase := avStreamTimeBase(stream.TimeBase(), stream.CodecTimeBase(), 0.025)
		nativeFormat, ok := format.ParseSampleFormatName(stream.SampleFormatName())
		if !ok {
			return fmt.Errorf("reader: unsupported native audio format %q", stream.SampleFormatName())
		}

		d, err := decode.NewAudioDecoder(decode.Options{
			Name:         "audio_decode",
			Logger:       r.log,
			Codec:        codec,
			PacketQueue:  r.audioq,
			FrameQueue:   r.opt.AudioFrameQueue,
			Runtime:      r.opt.Runtime,
			TimeBase:     timeBase,
			OnEmptyQueue: r.NotifyEmpty,
		}, nativeFormat, stream.SampleRate(), r.opt.Capabilities.AudioFormats, r.opt.Capabilities.AudioRate)
		if err != nil {
			return err
		}
		r.audioDecoder = d
		message.Post(r.opt.Sink, message.InitAudioRender, int(targetAudioFormat(nativeFormat, r.opt.Capabilities.AudioFormats)), 0)
		r.decWG.Add(1)
		go func() {
			defer r.decWG.Done()
			if err := d.Run(); err != nil {
				r.log.Printf("audio decoder stopped: %v", err)
				r.recordDecoderErr(err)
			}
		}()

	case avrt.MediaTypeVideo:
		timeBase := avStreamTimeBase(stream.TimeBase(), stream.CodecTimeBase(), 0.04)
		fps := fpsForVideoStream(stream, timeBase)
		nativeFormat, ok := format.ParsePixelFormatName(stream.PixelFormatName())
		if !ok {
			return fmt.Errorf("reader: unsupported native pixel format %q", stream.PixelFormatName())
		}

		d, err := decode.NewVideoDecoder(decode.Options{
			Name:         "video_decode",
			Logger:       r.log,
			Codec:        codec,
			PacketQueue:  r.videoq,
			FrameQueue:   r.opt.VideoFrameQueue,
			Runtime:      r.opt.Runtime,
			TimeBase:     timeBase,
			FPS:          fps,
			OnEmptyQueue: r.NotifyEmpty,
		}, nativeFormat, stream.Width(), stream.Height(), r.opt.Capabilities.VideoFormats)
		if err != nil {
			return err
		}
		r.videoDecoder = d
		message.Post(r.opt.Sink, message.InitVideoRender, stream.Width(), stream.Height())
		r.decWG.Add(1)
		go func() {
			defer r.decWG.Done()
			if err := d.Run(); err != nil {
				r.log.Printf("video decoder stopped: %v", err)
				r.recordDecoderErr(err)
			}
		}()
	}
	return nil
}

// avStreamTimeBase is the Go analogue of mr_play.c's avStreamTimeBase:
// prefer the stream's own time base, fall back to the codec's, fall back
// to a caller-supplied default.
func avStreamTimeBase(streamTB, codecTB avrt.Rational, fallback float64) avrt.Rational {
	if streamTB.Num != 0 && streamTB.Den != 0 {
		return streamTB
	}
	if codecTB.Num != 0 && codecTB.Den != 0 {
		return codecTB
	}
	// Represent the float fallback as the rational 1/N, N = 1/fallback.
	return avrt.Rational{Num: 1, Den: int(1 / fallback)}
}

// fpsForVideoStream is the Go analogue of mr_play.c's fpsForVideoStream:
// prefer avg_frame_rate, fall back to r_frame_rate, fall back to 1/time_base.
func fpsForVideoStream(stream avrt.Stream, timeBase avrt.Rational) avrt.Rational {
	if afr := stream.AvgFrameRate(); afr.Num != 0 && afr.Den != 0 {
		return afr
	}
	if rfr := stream.RFrameRate(); rfr.Num != 0 && rfr.Den != 0 {
		return rfr
	}
	tb := timeBase.Float()
	if tb <= 0 {
		return avrt.Rational{Num: 1, Den: 1}
	}
	return avrt.Rational{Num: timeBase.Den, Den: timeBase.Num}
}

// targetAudioFormat mirrors the decision convert.NegotiateAudio makes,
// purely to report the format chosen in the InitAudioRender message
// (spec.md §4.6 step 5 "post the appropriate init renderer message").
func targetAudioFormat(native format.SampleFormat, supported format.SampleFormatMask) format.SampleFormat {
	plan := convert.NegotiateAudio(native, 0, supported, 0)
	return plan.TargetFormat
}

// needMore implements spec.md §4.6's need_more predicate.
func (r *Reader) needMore() bool {
	as, vs := r.audioq.Stat(), r.videoq.Stat()
	if as.Size+vs.Size > r.opt.MaxQueueBytes {
		return false
	}
	if r.audioDecoder != nil && as.NbPackets >= r.opt.MaxPacketNum {
		return false
	}
	if r.videoDecoder != nil && vs.NbPackets >= r.opt.MaxPacketNum {
		return false
	}
	return true
}

// pumpLoop is spec.md §4.6's steady-state loop: read while need_more,
// back off with a bounded wait otherwise, until EOF or Abort.
func (r *Reader) pumpLoop() error {
	for {
		r.waitMu.Lock()
		aborted := r.aborted
		r.waitMu.Unlock()
		if aborted {
			r.closeInput()
			return nil
		}

		if r.needMore() {
			pkt, err := r.input.ReadPacket()
			if err != nil {
				if errors.Is(err, io.EOF) {
					if r.videoDecoder != nil {
						_ = r.videoq.PutNull(r.streamIndexOf(r.videoDecoder))
					}
					if r.audioDecoder != nil {
						_ = r.audioq.PutNull(r.streamIndexOf(r.audioDecoder))
					}
					r.closeInput()
					return nil
				}
				r.log.Printf("read error (non-fatal): %v", err)
				continue
			}
			r.dispatch(pkt)
			continue
		}

		message.Post(r.opt.Sink, message.PackQueueIsFull, 0, 0)
		r.waitMu.Lock()
		if !r.aborted {
			r.waitUntil(r.opt.BackoffWait)
		}
		r.waitMu.Unlock()
	}
}

// waitUntil blocks on waitCond for at most d, matching
// pthread_cond_timedwait's 10 ms bound. Caller must hold waitMu.
func (r *Reader) waitUntil(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		r.waitCond.Broadcast()
	})
	defer timer.Stop()
	r.waitCond.Wait()
}

func (r *Reader) dispatch(pkt avrt.Packet) {
	defer pkt.Release()

	audioIdx := r.streamIndexOf(r.audioDecoder)
	videoIdx := r.streamIndexOf(r.videoDecoder)

	switch pkt.StreamIndex() {
	case audioIdx:
		if r.audioDecoder == nil {
			return
		}
		r.audioq.BumpSerial()
		_ = r.audioq.Put(queue.Packet{
			Payload:     append([]byte(nil), pkt.Bytes()...),
			StreamIndex: pkt.StreamIndex(),
			Duration:    pkt.Duration(),
			PTS:         pkt.PTS(),
			DTS:         pkt.DTS(),
		})
	case videoIdx:
		if r.videoDecoder == nil {
			return
		}
		r.videoq.BumpSerial()
		_ = r.videoq.Put(queue.Packet{
			Payload:     append([]byte(nil), pkt.Bytes()...),
			StreamIndex: pkt.StreamIndex(),
			Duration:    pkt.Duration(),
			PTS:         pkt.PTS(),
			DTS:         pkt.DTS(),
		})
	default:
		// Stream we didn't select; drop.
	}
}

// streamIndexOf returns the stream index a decoder was opened against, or
// -1 if d is nil. Decoders don't track their own stream index directly
// (avrt.CodecContext.Stream() does), so this reaches through.
func (r *Reader) streamIndexOf(d *decode.Decoder) int {
	if d == nil {
		return -1
	}
	return d.StreamIndex()
}

func (r *Reader) closeInput() {
	if r.input != nil {
		_ = r.input.Close()
		r.input = nil
	}
}
