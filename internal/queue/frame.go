package queue

import (
	"sync"

	"github.com/avcore/mediacore/internal/format"
)

// Frame is a decoded unit of either audio samples or video pixels,
// reused in-place as FrameQueue slots are recycled (spec.md §3).
type Frame struct {
	PTS      float64 // presentation timestamp, seconds
	Duration float64 // estimated duration, seconds
	Serial   int

	// Video fields.
	Width, Height int
	PixelFormat   format.PixelFormat

	// Audio fields.
	SampleFormat format.SampleFormat
	SampleRate   int
	Channels     int
	NbSamples    int
	// NativeSampleRate is the decoder's native (pre-resample) sample
	// rate, carried separately from SampleRate so the audio pull
	// endpoint's clock update can reproduce mr_play.c's
	// mr_fetch_packet_sample bug: it divides the (possibly resampled)
	// sample count by the *native* rate rather than the rate the samples
	// are actually delivered at (spec.md §9 Open Question: "preserved
	// here ... implementers should flag it rather than 'fix' it
	// silently").
	NativeSampleRate int

	// Data holds the decoded planes: for video, one slice per plane
	// (Y/U/V, or packed RGB in a single plane); for audio, either a
	// single interleaved plane or one slice per channel when
	// SampleFormat.Planar() is true.
	Data     [][]byte
	Linesize []int

	// LeftOffset/RightOffset are the partial-consumption cursors used by
	// the audio pull endpoint (spec.md §3: "∈ [0, plane_size]; on
	// entering the queue both are 0"). LeftOffset tracks Data[0] (or the
	// single interleaved plane); RightOffset tracks Data[1] for planar
	// stereo.
	LeftOffset  int
	RightOffset int
}

func (fr *Frame) reset() {
	fr.PTS = 0
	fr.Duration = 0
	fr.Serial = 0
	fr.Width, fr.Height = 0, 0
	fr.SampleRate, fr.Channels, fr.NbSamples = 0, 0, 0
	fr.NativeSampleRate = 0
	fr.Data = fr.Data[:0]
	fr.Linesize = fr.Linesize[:0]
	fr.LeftOffset, fr.RightOffset = 0, 0
}

// upstream is the minimal view of a PacketQueue a FrameQueue needs in
// order to detect abort (spec.md §3 "Ownership": a non-owning reference,
// the engine guarantees the PacketQueue outlives the FrameQueue).
type upstream interface {
	Aborted() bool
}

// FrameQueue is a fixed-capacity ring of Frame slots with separate
// read/write indices, blocking peek-writable/peek-readable, and exactly
// one reader (spec.md §4.2).
type FrameQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	slots []Frame
	cap   int

	rindex, windex int
	size           int

	serial int // bumped once per pushed frame (spec.md §4.4 audio note)
	pktq   upstream
}

// NewFrameQueue creates a FrameQueue of the given capacity, bound to pktq
// for abort detection. capacity is clamped to [1, 16] per spec.md §4.2.
func NewFrameQueue(pktq upstream, capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	if capacity > 16 {
		capacity = 16
	}
	f := &FrameQueue{
		slots: make([]Frame, capacity),
		cap:   capacity,
		pktq:  pktq,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// PeekWritable blocks while the queue is full and the upstream packet
// queue is not aborted, then returns the slot at windex (without
// advancing), with its consumption cursors reset to zero. ok is false if
// the upstream queue aborted while waiting.
func (f *FrameQueue) PeekWritable() (frame *Frame, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for f.size >= f.cap && !f.pktq.Aborted() {
		f.cond.Wait()
	}
	if f.pktq.Aborted() {
		return nil, false
	}

	slot := &f.slots[f.windex]
	slot.LeftOffset, slot.RightOffset = 0, 0
	return slot, true
}

// Push commits the slot most recently returned by PeekWritable, advancing
// windex and waking any blocked reader. The committed slot's Serial field
// is stamped with the queue's post-increment serial counter (spec.md §4.4
// "Frame-queue serial: incremented once per pushed frame").
func (f *FrameQueue) Push() {
	f.mu.Lock()
	f.serial++
	f.slots[f.windex].Serial = f.serial
	f.windex = (f.windex + 1) % f.cap
	f.size++
	f.mu.Unlock()
	f.cond.Broadcast()
}

// PeekReadable returns the frame at rindex. If block is false and the
// queue is empty, it returns (nil, false) immediately. If block is true,
// it waits until a frame is available or the upstream queue is aborted,
// in which case it also returns (nil, false).
func (f *FrameQueue) PeekReadable(block bool) (*Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for f.size <= 0 {
		if !block || f.pktq.Aborted() {
			return nil, false
		}
		f.cond.Wait()
	}
	return &f.slots[f.rindex], true
}

// PeekLast returns the most recently displayed frame (the one just before
// rindex), for use by the presentation scheduler only.
func (f *FrameQueue) PeekLast() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := (f.rindex - 1 + f.cap) % f.cap
	return &f.slots[idx]
}

// Peek returns the frame at rindex, for use by the presentation scheduler
// only.
func (f *FrameQueue) Peek() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &f.slots[f.rindex]
}

// PeekNext returns the frame at rindex+1 mod capacity, for use by the
// presentation scheduler's drop-frame lookahead only.
func (f *FrameQueue) PeekNext() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := (f.rindex + 1) % f.cap
	return &f.slots[idx]
}

// Next releases the frame at rindex, advances rindex, and wakes any
// blocked producer. Only the queue's single reader may call this.
func (f *FrameQueue) Next() {
	f.mu.Lock()
	f.slots[f.rindex].reset()
	f.rindex = (f.rindex + 1) % f.cap
	f.size--
	f.mu.Unlock()
	f.cond.Broadcast()
}

// NbRemaining returns the number of frames currently queued.
func (f *FrameQueue) NbRemaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Capacity returns the queue's fixed capacity.
func (f *FrameQueue) Capacity() int { return f.cap }

// Serial returns the FrameQueue's own push counter, bumped once per
// pushed frame (spec.md §3/§4.4's "Frame-queue serial"). Each Frame is
// stamped with this value at Push time, and the scheduler compares two
// frames' Serial fields to detect a discontinuity between them; the
// audio puller does not read it. It is not used as a Clock's serialSource -- see clock.Epoch for
// that (spec.md §9).
func (f *FrameQueue) Serial() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.serial
}

// Signal wakes any producer or consumer blocked on this queue without
// changing its state, used after an upstream abort to make sure both
// sides re-check the abort flag (spec.md §9).
func (f *FrameQueue) Signal() {
	f.cond.Broadcast()
}
