package ffmpeg

import (
	astiav "github.com/asticode/go-astiav"

	"github.com/avcore/mediacore/internal/avrt"
)

// packet adapts *astiav.Packet to avrt.Packet.
type packet struct {
	pkt *astiav.Packet
}

func (p *packet) StreamIndex() int { return p.pkt.StreamIndex() }
func (p *packet) PTS() int64       { return p.pkt.Pts() }
func (p *packet) DTS() int64       { return p.pkt.Dts() }
func (p *packet) Duration() int64  { return p.pkt.Duration() }
func (p *packet) Size() int        { return p.pkt.Size() }

func (p *packet) Bytes() []byte {
	return p.pkt.Data()
}

func (p *packet) Release() {
	p.pkt.Unref()
	p.pkt.Free()
}

// newAstiavPacket builds a real *astiav.Packet from any avrt.Packet's
// copied bytes and metadata. internal/decode's runtimePacket wraps a
// queue.Packet that was already copied out of the reader's PacketQueue,
// so it never carries a live *astiav.Packet of its own; this is how its
// payload gets back into libav's domain for SendPacket.
func newAstiavPacket(p avrt.Packet) (*astiav.Packet, error) {
	ap := astiav.AllocPacket()
	if err := ap.FromData(p.Bytes()); err != nil {
		ap.Free()
		return nil, err
	}
	ap.SetStreamIndex(p.StreamIndex())
	ap.SetPts(p.PTS())
	ap.SetDts(p.DTS())
	ap.SetDuration(p.Duration())
	return ap, nil
}
