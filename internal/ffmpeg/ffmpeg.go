// Package ffmpeg is the sole production implementation of avrt.Runtime,
// built directly on github.com/asticode/go-astiav (cgo bindings over
// libavformat/libavcodec/libswscale/libswresample). It is the concrete
// MediaRuntime behind the opaque internal/avrt interface boundary.
package ffmpeg

import (
	"errors"
	"fmt"
	"io"

	astiav "github.com/asticode/go-astiav"

	"github.com/avcore/mediacore/internal/avrt"
)

// Runtime is the astiav-backed avrt.Runtime.
type Runtime struct{}

// New returns a Runtime. Construction is cheap; astiav has no process-wide
// init beyond what the cgo package does in its own init().
func New() *Runtime { return &Runtime{} }

// OpenInput opens url, probes stream info, and wraps the result.
func (r *Runtime) OpenInput(url string) (avrt.InputContext, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("ffmpeg: AllocFormatContext failed")
	}

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("safe", "0", 0)

	if err := fc.OpenInput(url, nil, opts); err != nil {
		fc.Free()
		return nil, fmt.Errorf("ffmpeg: OpenInput: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("ffmpeg: FindStreamInfo: %w", err)
	}
	for _, st := range fc.Streams() {
		st.SetDiscard(astiav.DiscardAll)
	}
	return &input{fc: fc}, nil
}

// NewScratchFrame allocates an empty astiav.Frame for decode output.
func (r *Runtime) NewScratchFrame() avrt.Frame {
	return &frame{f: astiav.AllocFrame()}
}

// NewResampler builds a libswresample-backed Resampler from in to out.
func (r *Runtime) NewResampler(in, out avrt.ResamplerFormat) (avrt.Resampler, error) {
	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		return nil, errors.New("ffmpeg: AllocSoftwareResampleContext failed")
	}
	inFmt, ok := astiavSampleFormat(in.SampleFormatName)
	if !ok {
		swr.Free()
		return nil, fmt.Errorf("ffmpeg: unsupported resampler input format %q", in.SampleFormatName)
	}
	outFmt, ok := astiavSampleFormat(out.SampleFormatName)
	if !ok {
		swr.Free()
		return nil, fmt.Errorf("ffmpeg: unsupported resampler output format %q", out.SampleFormatName)
	}
	return &resampler{
		swr:     swr,
		inFmt:   inFmt,
		outFmt:  outFmt,
		inRate:  in.SampleRate,
		outRate: out.SampleRate,
		outCh:   astiav.ChannelLayoutDefault(out.Channels),
	}, nil
}

// NewScaler builds a libswscale-backed Scaler from in to out.
func (r *Runtime) NewScaler(in, out avrt.ScalerFormat) (avrt.Scaler, error) {
	inFmt, ok := astiavPixelFormat(in.PixelFormatName)
	if !ok {
		return nil, fmt.Errorf("ffmpeg: unsupported scaler input format %q", in.PixelFormatName)
	}
	outFmt, ok := astiavPixelFormat(out.PixelFormatName)
	if !ok {
		return nil, fmt.Errorf("ffmpeg: unsupported scaler output format %q", out.PixelFormatName)
	}
	ssc, err := astiav.CreateSoftwareScaleContext(
		in.Width, in.Height, inFmt,
		out.Width, out.Height, outFmt,
		astiav.NewSoftwareScaleContextFlags(),
	)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: CreateSoftwareScaleContext: %w", err)
	}
	return &scaler{ssc: ssc, outFmt: outFmt, outW: out.Width, outH: out.Height}, nil
}

// input adapts *astiav.FormatContext to avrt.InputContext.
type input struct {
	fc *astiav.FormatContext
}

func (i *input) Streams() []avrt.Stream {
	streams := i.fc.Streams()
	out := make([]avrt.Stream, len(streams))
	for idx, st := range streams {
		out[idx] = &stream{st: st}
	}
	return out
}

func (i *input) FlagGenPTSDiscontinuity() bool {
	ifmt := i.fc.InputFormat()
	if ifmt == nil {
		return false
	}
	return ifmt.Flags().Has(astiav.FormatContextFlagGenpts)
}

func (i *input) ReadPacket() (avrt.Packet, error) {
	pkt := astiav.AllocPacket()
	if err := i.fc.ReadFrame(pkt); err != nil {
		pkt.Free()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return &packet{pkt: pkt}, nil
}

func (i *input) OpenCodec(st avrt.Stream) (avrt.CodecContext, error) {
	s, ok := st.(*stream)
	if !ok {
		return nil, fmt.Errorf("ffmpeg: OpenCodec: not an ffmpeg stream")
	}
	par := s.st.CodecParameters()
	dec := astiav.FindDecoder(par.CodecID())
	if dec == nil {
		return nil, fmt.Errorf("ffmpeg: no decoder for codec %s", par.CodecID())
	}
	ctx := astiav.AllocCodecContext(dec)
	if ctx == nil {
		return nil, errors.New("ffmpeg: AllocCodecContext failed")
	}
	if err := par.ToCodecContext(ctx); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("ffmpeg: ToCodecContext: %w", err)
	}
	ctx.SetPktTimeBase(s.st.TimeBase())
	if err := ctx.Open(dec, nil); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("ffmpeg: codec Open: %w", err)
	}
	s.st.SetDiscard(astiav.DiscardDefault)
	s.codecCtx = ctx
	return &codecContext{ctx: ctx, stream: s}, nil
}

func (i *input) Close() error {
	i.fc.CloseInput()
	i.fc.Free()
	return nil
}
