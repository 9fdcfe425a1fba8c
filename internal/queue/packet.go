// Package queue implements the bounded packet and frame queues that sit
// between the demuxer, the decoders, and their consumers (spec.md §4.1, §4.2).
package queue

import (
	"errors"
	"sync"
)

// ErrAborted is returned by a blocking queue operation once the queue has
// been aborted. It is not a decode error; callers treat it as end-of-work.
var ErrAborted = errors.New("queue: aborted")

// nodeOverhead approximates the per-node bookkeeping cost counted against
// a PacketQueue's byte budget, mirroring mr_play.c's
// `sizeof(MRAVPacketNode)` contribution to `q->size`.
const nodeOverhead = 24

// minPacketDuration is the floor applied to a packet's duration when it is
// folded into a PacketQueue's running duration total (spec.md §3, "duration
// clamped to a minimum of 15 units").
const minPacketDuration = 15

// Packet is the compressed-payload unit carried by a PacketQueue. Size()
// is its accounted byte size, payload plus node overhead (used for budget
// accounting only, never for slicing); Duration is in the stream's
// timebase units.
type Packet struct {
	Payload     []byte
	StreamIndex int
	Duration    int64
	PTS         int64
	DTS         int64
	Serial      int
	// Null marks a payload-less EOF sentinel for StreamIndex, per
	// spec.md's "Null packet" (put_null).
	Null bool
}

// Size is the packet's accounted byte size: payload bytes plus node
// overhead, matching spec.md's `size = Σ(pkt.size + node_overhead)`.
func (p *Packet) Size() int64 {
	return int64(len(p.Payload)) + nodeOverhead
}

type packetNode struct {
	pkt  Packet
	next *packetNode
}

// PacketQueue is a bounded FIFO of compressed packets with serial tagging,
// byte/count/duration accounting, and abort-broadcast semantics (spec.md
// §3, §4.1). The zero value is not usable; construct with NewPacketQueue.
type PacketQueue struct {
	name string

	mu   sync.Mutex
	cond *sync.Cond

	first, last *packetNode
	nbPackets   int
	size        int64
	duration    int64

	serial  int
	aborted bool

	// recycle is a freelist of detached nodes, strictly internal (spec.md
	// §4.1 "Node pool"). Never observable from outside the package.
	recycle      *packetNode
	recycleCount int
	allocCount   int
}

// NewPacketQueue creates an empty PacketQueue. name is used only for
// diagnostics.
func NewPacketQueue(name string) *PacketQueue {
	q := &PacketQueue{name: name}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Name returns the queue's diagnostic name.
func (q *PacketQueue) Name() string { return q.name }

func (q *PacketQueue) allocNode() *packetNode {
	if q.recycle != nil {
		n := q.recycle
		q.recycle = n.next
		q.recycleCount--
		n.next = nil
		return n
	}
	q.allocCount++
	return &packetNode{}
}

func (q *PacketQueue) freeNode(n *packetNode) {
	n.pkt = Packet{}
	n.next = q.recycle
	q.recycle = n
	q.recycleCount++
}

// Put appends pkt to the tail of the queue, stamping it with the queue's
// current serial. It fails with ErrAborted if the queue has already been
// aborted; the caller still owns pkt's payload in that case and is
// responsible for discarding it. Put never blocks.
func (q *PacketQueue) Put(pkt Packet) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.putLocked(pkt)
}

func (q *PacketQueue) putLocked(pkt Packet) error {
	if q.aborted {
		return ErrAborted
	}

	pkt.Serial = q.serial
	n := q.allocNode()
	n.pkt = pkt
	n.next = nil

	if q.last == nil {
		q.first = n
	} else {
		q.last.next = n
	}
	q.last = n
	q.nbPackets++
	q.size += pkt.Size()
	d := pkt.Duration
	if d < minPacketDuration {
		d = minPacketDuration
	}
	q.duration += d

	q.cond.Broadcast()
	return nil
}

// PutNull enqueues a payload-less sentinel packet for streamIndex,
// interpreted by a Decoder as end-of-stream (spec.md §4.1 put_null).
func (q *PacketQueue) PutNull(streamIndex int) error {
	return q.Put(Packet{StreamIndex: streamIndex, Null: true})
}

// Get pops the packet at the head of the queue. If block is false and the
// queue is empty, it returns ok=false with a nil error. If block is true,
// it waits until a packet is available or the queue is aborted, in which
// case it returns ErrAborted.
func (q *PacketQueue) Get(block bool) (pkt Packet, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.getLocked(block)
}

func (q *PacketQueue) getLocked(block bool) (Packet, bool, error) {
	for {
		if q.aborted {
			return Packet{}, false, ErrAborted
		}

		if q.first != nil {
			n := q.first
			q.first = n.next
			if q.first == nil {
				q.last = nil
			}
			q.nbPackets--
			q.size -= n.pkt.Size()
			d := n.pkt.Duration
			if d < minPacketDuration {
				d = minPacketDuration
			}
			q.duration -= d

			pkt := n.pkt
			q.freeNode(n)
			return pkt, true, nil
		}

		if !block {
			return Packet{}, false, nil
		}
		q.cond.Wait()
	}
}

// GetOrBuffer performs a non-blocking Get first (so a waiting producer can
// be woken by the empty-queue signal a decoder sends before parking), then
// falls back to a blocking Get. This matches
// mr_play.c's packet_queue_get_or_buffering, which exists so the decoder
// can notify the reader's empty_queue_cond before it blocks itself.
func (q *PacketQueue) GetOrBuffer(onEmpty func()) (Packet, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pkt, ok, err := q.getLocked(false)
	if err != nil {
		return Packet{}, err
	}
	if ok {
		return pkt, nil
	}

	if onEmpty != nil {
		onEmpty()
	}

	pkt, _, err = q.getLocked(true)
	return pkt, err
}

// Abort marks the queue as aborted and wakes every current and future
// waiter. Callers must re-check Aborted() after waking, as spec.md §9
// requires (there is no cancellation primitive more granular than this).
func (q *PacketQueue) Abort() {
	q.mu.Lock()
	q.aborted = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Aborted reports whether Abort has been called.
func (q *PacketQueue) Aborted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.aborted
}

// Serial returns the queue's current serial counter (see BumpSerial). No
// Clock reads it; clock validity is tracked by clock.Epoch.
func (q *PacketQueue) Serial() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.serial
}

// BumpSerial increments the queue's serial and returns the new value. The
// reader calls this once per enqueued packet (spec.md §4.6, "stamp the
// target queue's serial (incrementing it per packet -- another source
// idiosyncrasy preserved here)").
func (q *PacketQueue) BumpSerial() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.serial++
	return q.serial
}

// Stats is a point-in-time snapshot of a PacketQueue's accounted state,
// used by the reader's backpressure predicate and by tests asserting
// spec.md §8 invariant 1.
type Stats struct {
	NbPackets int
	Size      int64
	Duration  int64
}

// Stat returns a snapshot of the queue's current accounting fields.
func (q *PacketQueue) Stat() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{NbPackets: q.nbPackets, Size: q.size, Duration: q.duration}
}

// Flush drops all currently queued packets, returning their nodes to the
// internal freelist. Engine teardown does not call it; Close aborts the
// queues instead.
func (q *PacketQueue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.first
	for n != nil {
		next := n.next
		q.freeNode(n)
		n = next
	}
	q.first, q.last = nil, nil
	q.nbPackets = 0
	q.size = 0
	q.duration = 0
}
