package decode

import "github.com/avcore/mediacore/internal/queue"

// runtimePacket adapts a queue.Packet (the engine's in-memory packet
// representation, already copied out of whatever the MediaRuntime handed
// the reader) back into the avrt.Packet shape a CodecContext expects for
// SendPacket. The runtime adapter is responsible for copying Bytes() into
// its own native packet representation before submitting to the codec.
type runtimePacket struct {
	p queue.Packet
}

func (r *runtimePacket) StreamIndex() int { return r.p.StreamIndex }
func (r *runtimePacket) PTS() int64       { return r.p.PTS }
func (r *runtimePacket) DTS() int64       { return r.p.DTS }
func (r *runtimePacket) Duration() int64  { return r.p.Duration }
func (r *runtimePacket) Size() int        { return len(r.p.Payload) }
func (r *runtimePacket) Bytes() []byte    { return r.p.Payload }
func (r *runtimePacket) Release()         {}
