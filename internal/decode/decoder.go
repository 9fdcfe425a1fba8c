// Package decode implements the per-stream decoder worker of spec.md
// §4.4: it pulls packets from a PacketQueue, submits them to a codec
// context, and pushes decoded (and optionally resampled/scaled) frames
// into a FrameQueue.
package decode

import (
	"errors"
	"fmt"
	"math"

	"github.com/avcore/mediacore/internal/avrt"
	"github.com/avcore/mediacore/internal/convert"
	"github.com/avcore/mediacore/internal/format"
	"github.com/avcore/mediacore/internal/logging"
	"github.com/avcore/mediacore/internal/queue"
)

// ErrFormatUnsupported is returned by the frame-push path when a decoded
// frame's native format has no engine equivalent, or when the resampler or
// scaler for the negotiated target cannot be built (spec.md §7
// FormatUnsupported). New{Audio,Video}Decoder never return it.
var ErrFormatUnsupported = errors.New("decode: format unsupported")

// ErrResourceExhausted is spec.md §7's "allocation failure; treated as
// terminal by the thread that observed it": a codec SendPacket/
// ReceiveFrame call failed for a reason other than backpressure/EOF, so
// this decoder's Run loop gives up on its stream.
var ErrResourceExhausted = errors.New("decode: resource exhausted")

// Kind distinguishes the two decoder flavors of spec.md §4.4.
type Kind int

const (
	KindAudio Kind = iota
	KindVideo
)

// finishedNone is the sentinel "not yet finished" value for
// Decoder.finishedSerial (spec.md §3: "finished == pkt_serial means EOF
// observed on current stream").
const finishedNone = -1

// Decoder is one stream's decode worker (spec.md §4.4). Exactly one
// exists per active audio/video stream.
type Decoder struct {
	kind   Kind
	name   string
	log    *logging.Logger
	codec  avrt.CodecContext
	pktq   *queue.PacketQueue
	frameq *queue.FrameQueue
	rt     avrt.Runtime

	timeBase avrt.Rational
	fps      avrt.Rational // video only; zero value for audio

	// Negotiated target formats (spec.md §4.5), decided once at
	// construction and realized lazily on first frame that actually
	// needs conversion.
	audioPlan convert.AudioPlan
	videoPlan convert.VideoPlan

	resampler avrt.Resampler
	scaler    avrt.Scaler

	pktSerial      int
	finishedSerial int

	// onEmptyQueue is called when the upstream PacketQueue is observed
	// empty (at step 2, and again inside GetOrBuffer before it blocks,
	// so up to twice per iteration) -- this is
	// the empty_queue_cond signal the reader waits on (spec.md §4.4 step
	// 2, §4.6).
	onEmptyQueue func()
}

// Options configures a new Decoder.
type Options struct {
	Name         string
	Logger       *logging.Logger
	Codec        avrt.CodecContext
	PacketQueue  *queue.PacketQueue
	FrameQueue   *queue.FrameQueue
	Runtime      avrt.Runtime
	TimeBase     avrt.Rational
	FPS          avrt.Rational // video only
	OnEmptyQueue func()
}

// NewAudioDecoder constructs an audio Decoder, negotiating a resampler
// per spec.md §4.5 against the host's supported sample formats and rate.
func NewAudioDecoder(opt Options, nativeFormat format.SampleFormat, nativeRate int, supported format.SampleFormatMask, hostRate int) (*Decoder, error) {
	plan := convert.NegotiateAudio(nativeFormat, nativeRate, supported, hostRate)
	d := newDecoder(KindAudio, opt)
	d.audioPlan = plan
	return d, nil
}

// NewVideoDecoder constructs a video Decoder, negotiating a scaler per
// spec.md §4.5 against the host's supported pixel formats.
func NewVideoDecoder(opt Options, nativeFormat format.PixelFormat, width, height int, supported format.PixelFormatMask) (*Decoder, error) {
	plan := convert.NegotiateVideo(nativeFormat, width, height, supported)
	d := newDecoder(KindVideo, opt)
	d.videoPlan = plan
	return d, nil
}

func newDecoder(kind Kind, opt Options) *Decoder {
	l := opt.Logger
	if l == nil {
		l = logging.Default
	}
	return &Decoder{
		kind:           kind,
		name:           opt.Name,
		log:            l.Tagged(opt.Name),
		codec:          opt.Codec,
		pktq:           opt.PacketQueue,
		frameq:         opt.FrameQueue,
		rt:             opt.Runtime,
		timeBase:       opt.TimeBase,
		fps:            opt.FPS,
		finishedSerial: finishedNone,
		onEmptyQueue:   opt.OnEmptyQueue,
	}
}

// StreamIndex returns the index of the stream this decoder was opened
// against.
func (d *Decoder) StreamIndex() int {
	return d.codec.Stream().Index()
}

// Finished reports whether this decoder has observed EOF on the stream it
// is currently decoding (its finished serial matches its current packet
// serial).
func (d *Decoder) Finished() bool {
	return d.finishedSerial == d.pktSerial
}

// Close releases the decoder's codec context and any converter it built.
func (d *Decoder) Close() error {
	if d.resampler != nil {
		d.resampler.Close()
		d.resampler = nil
	}
	if d.scaler != nil {
		d.scaler.Close()
		d.scaler = nil
	}
	return d.codec.Close()
}

// Run is the decoder thread's main loop (spec.md §4.4). It returns when
// the upstream PacketQueue is aborted; any other error is a terminal
// ResourceExhausted-class failure for this stream only.
func (d *Decoder) Run() error {
	for {
		if err := d.drainAndDecode(); err != nil {
			if errors.Is(err, queue.ErrAborted) {
				return nil
			}
			return err
		}
		if d.Finished() {
			// EOF observed on this stream: the codec has been flushed
			// and there is nothing more this decoder can do. It drops
			// out; the frame queue will drain naturally as consumers
			// catch up (spec.md §4.4 step 1).
			return nil
		}
	}
}

// drainAndDecode performs one pass of spec.md §4.4's numbered steps:
// drain buffered frames, signal empty-queue if applicable, pull one
// packet, submit it, and push any frames it yields.
func (d *Decoder) drainAndDecode() error {
	// Step 1: drain buffered frames before pulling a new packet.
	drainedAny, err := d.receiveAndPushAll()
	if err != nil {
		return err
	}
	if drainedAny {
		return nil
	}

	// Step 2: signal the reader if our upstream queue looks empty.
	stat := d.pktq.Stat()
	if stat.NbPackets == 0 && d.onEmptyQueue != nil {
		d.onEmptyQueue()
	}

	// Step 3: pull one packet (buffering behavior handled by
	// PacketQueue.GetOrBuffer, which re-signals onEmptyQueue right
	// before it would otherwise block).
	pkt, err := d.pktq.GetOrBuffer(d.onEmptyQueue)
	if err != nil {
		return err // queue.ErrAborted
	}
	d.pktSerial = pkt.Serial

	if pkt.Null {
		// Null packet: request a drain/flush and mark finished once the
		// codec is empty.
		if err := d.codec.SendPacket(nil); err != nil && !errors.Is(err, avrt.ErrAgainOrEOF) {
			d.log.Printf("flush SendPacket error: %v", err)
		}
		if _, err := d.receiveAndPushAll(); err != nil {
			return err
		}
		d.codec.Flush()
		d.finishedSerial = pkt.Serial
		return nil
	}

	// Step 4: submit to the codec.
	if err := d.codec.SendPacket(&runtimePacket{p: pkt}); err != nil {
		if errors.Is(err, avrt.ErrAgainOrEOF) {
			// API-level violation per spec.md §4.4 step 4: logged, not
			// fatal (DecoderProtocol).
			d.log.Printf("SendPacket reported backpressure after drain (non-fatal)")
			return nil
		}
		return fmt.Errorf("%w: SendPacket: %v", ErrResourceExhausted, err)
	}

	// Step 5: push every frame the packet produced.
	_, err = d.receiveAndPushAll()
	return err
}

// receiveAndPushAll drains ReceiveFrame until it reports no more data,
// pushing each decoded frame into the FrameQueue. It returns whether it
// pushed at least one frame.
func (d *Decoder) receiveAndPushAll() (bool, error) {
	pushedAny := false
	for {
		rf := d.rt.NewScratchFrame()
		err := d.codec.ReceiveFrame(rf)
		if err != nil {
			rf.Release()
			if errors.Is(err, avrt.ErrAgainOrEOF) {
				return pushedAny, nil
			}
			return pushedAny, fmt.Errorf("%w: ReceiveFrame: %v", ErrResourceExhausted, err)
		}

		if err := d.pushFrame(rf); err != nil {
			rf.Release()
			return pushedAny, err
		}
		rf.Release()
		pushedAny = true
	}
}

func (d *Decoder) pushFrame(rf avrt.Frame) error {
	switch d.kind {
	case KindAudio:
		return d.pushAudioFrame(rf)
	default:
		return d.pushVideoFrame(rf)
	}
}

// ptsSeconds converts a frame's native PTS to seconds via the decoder's
// time base, returning NaN for ffmpeg's AV_NOPTS_VALUE-style "unknown"
// sentinel (represented here as math.MinInt64).
func (d *Decoder) ptsSeconds(rf avrt.Frame) float64 {
	raw := rf.PTS()
	if raw == math.MinInt64 {
		return math.NaN()
	}
	return d.timeBase.Seconds(raw)
}
