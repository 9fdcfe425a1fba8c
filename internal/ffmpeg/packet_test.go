package ffmpeg

import (
	"testing"

	"github.com/avcore/mediacore/internal/avrt"
)

// fakeAVRTPacket stands in for internal/decode's runtimePacket: some
// avrt.Packet that did not originate from this adapter and so carries no
// live *astiav.Packet of its own.
type fakeAVRTPacket struct {
	streamIndex        int
	pts, dts, duration int64
	payload            []byte
}

func (p *fakeAVRTPacket) StreamIndex() int { return p.streamIndex }
func (p *fakeAVRTPacket) PTS() int64       { return p.pts }
func (p *fakeAVRTPacket) DTS() int64       { return p.dts }
func (p *fakeAVRTPacket) Duration() int64  { return p.duration }
func (p *fakeAVRTPacket) Size() int        { return len(p.payload) }
func (p *fakeAVRTPacket) Bytes() []byte    { return p.payload }
func (p *fakeAVRTPacket) Release()         {}

// TestNewAstiavPacketRebuildsFromForeignPacket exercises the path that
// SendPacket takes for any avrt.Packet that isn't this adapter's own
// *packet (internal/decode's runtimePacket, in production): it must
// rebuild a real *astiav.Packet carrying the same bytes and metadata
// rather than rejecting the submission. This requires a real libav
// runtime to link and run (astiav.AllocPacket is cgo-backed).
func TestNewAstiavPacketRebuildsFromForeignPacket(t *testing.T) {
	var _ avrt.Packet = (*fakeAVRTPacket)(nil)

	src := &fakeAVRTPacket{
		streamIndex: 1,
		pts:         1000,
		dts:         990,
		duration:    40,
		payload:     []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}

	ap, err := newAstiavPacket(src)
	if err != nil {
		t.Fatalf("newAstiavPacket: %v", err)
	}
	defer func() {
		ap.Unref()
		ap.Free()
	}()

	wrapped := &packet{pkt: ap}
	if wrapped.StreamIndex() != src.StreamIndex() {
		t.Errorf("StreamIndex = %d, want %d", wrapped.StreamIndex(), src.StreamIndex())
	}
	if wrapped.PTS() != src.PTS() {
		t.Errorf("PTS = %d, want %d", wrapped.PTS(), src.PTS())
	}
	if wrapped.DTS() != src.DTS() {
		t.Errorf("DTS = %d, want %d", wrapped.DTS(), src.DTS())
	}
	if wrapped.Duration() != src.Duration() {
		t.Errorf("Duration = %d, want %d", wrapped.Duration(), src.Duration())
	}
	if string(wrapped.Bytes()) != string(src.Bytes()) {
		t.Errorf("Bytes = %v, want %v", wrapped.Bytes(), src.Bytes())
	}
}
