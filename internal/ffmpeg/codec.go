package ffmpeg

import (
	"errors"
	"fmt"

	astiav "github.com/asticode/go-astiav"

	"github.com/avcore/mediacore/internal/avrt"
)

// codecContext adapts *astiav.CodecContext to avrt.CodecContext.
type codecContext struct {
	ctx    *astiav.CodecContext
	stream *stream
}

func (c *codecContext) Stream() avrt.Stream { return c.stream }

func (c *codecContext) SendPacket(p avrt.Packet) error {
	if p == nil {
		err := c.ctx.SendPacket(nil)
		return wrapCodecErr(err)
	}
	if fp, ok := p.(*packet); ok {
		return wrapCodecErr(c.ctx.SendPacket(fp.pkt))
	}

	// Not one of this adapter's own packets (e.g. internal/decode's
	// runtimePacket) -- rebuild a real astiav.Packet from its copied
	// bytes and metadata before submitting.
	ap, err := newAstiavPacket(p)
	if err != nil {
		return fmt.Errorf("ffmpeg: SendPacket: %w", err)
	}
	defer func() {
		ap.Unref()
		ap.Free()
	}()
	return wrapCodecErr(c.ctx.SendPacket(ap))
}

func (c *codecContext) ReceiveFrame(out avrt.Frame) error {
	fr, ok := out.(*frame)
	if !ok {
		return fmt.Errorf("ffmpeg: ReceiveFrame: not an ffmpeg frame")
	}
	return wrapCodecErr(c.ctx.ReceiveFrame(fr.f))
}

func (c *codecContext) Flush() {
	c.ctx.FlushBuffers()
}

func (c *codecContext) Close() error {
	c.ctx.Free()
	return nil
}

// wrapCodecErr normalizes astiav's EAGAIN/EOF sentinels onto
// avrt.ErrAgainOrEOF, matching internal/decode's expectations.
func wrapCodecErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
		return avrt.ErrAgainOrEOF
	}
	return err
}
