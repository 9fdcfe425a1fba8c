package audiopull

import (
	"math"
	"testing"

	"github.com/avcore/mediacore/internal/clock"
	"github.com/avcore/mediacore/internal/message"
	"github.com/avcore/mediacore/internal/queue"
)

type fakePktQueue struct{ aborted bool }

func (u *fakePktQueue) Aborted() bool { return u.aborted }

func newTestPuller(t *testing.T, cap int) (*Puller, *queue.FrameQueue, *clock.Epoch) {
	t.Helper()
	up := &fakePktQueue{}
	fq := queue.NewFrameQueue(up, cap)
	e := clock.NewEpoch()
	p := New(Options{
		SampleQueue:   fq,
		AudioClock:    clock.New(e),
		ExternalClock: clock.New(nil),
		Epoch:         e,
	})
	return p, fq, e
}

func pushFrame(t *testing.T, fq *queue.FrameQueue, pts float64, nativeRate int, data []byte) {
	t.Helper()
	slot, ok := fq.PeekWritable()
	if !ok {
		t.Fatal("PeekWritable ok=false")
	}
	slot.PTS = pts
	slot.NativeSampleRate = nativeRate
	slot.NbSamples = len(data) / 2
	slot.Data = [][]byte{data}
	fq.Push()
}

func TestFetchSamplesWithinOneFrame(t *testing.T) {
	p, fq, _ := newTestPuller(t, 3)
	pushFrame(t, fq, 0, 44100, []byte{1, 2, 3, 4, 5, 6})

	out := make([]byte, 4)
	p.FetchSamples(out)
	if out[0] != 1 || out[3] != 4 {
		t.Fatalf("got %v, want first 4 bytes of frame", out)
	}
	if fq.NbRemaining() != 1 {
		t.Fatalf("frame should still be queued (partially consumed), NbRemaining=%d", fq.NbRemaining())
	}
}

func TestFetchSamplesAcrossFrameBoundary(t *testing.T) {
	p, fq, _ := newTestPuller(t, 3)
	pushFrame(t, fq, 0, 44100, []byte{1, 2})
	pushFrame(t, fq, 1, 44100, []byte{3, 4})

	out := make([]byte, 4)
	p.FetchSamples(out)
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("got %v, want %v", out, want)
		}
	}
	if fq.NbRemaining() != 0 {
		t.Fatalf("both frames should be fully consumed, NbRemaining=%d", fq.NbRemaining())
	}
}

func TestFetchSamplesEmptyQueuePostsMessage(t *testing.T) {
	var posted *message.Message
	p, _, _ := newTestPuller(t, 3)
	p.sink = message.SinkFunc(func(m message.Message) { posted = &m })

	out := make([]byte, 4)
	p.FetchSamples(out)

	if posted == nil || posted.Kind != message.FrameQueueIsEmpty {
		t.Fatalf("expected FrameQueueIsEmpty posted, got %+v", posted)
	}
}

func TestFetchSamplesTouchesAudioClockOnce(t *testing.T) {
	p, fq, e := newTestPuller(t, 3)
	pushFrame(t, fq, 2.0, 44100, []byte{1, 2, 3, 4})

	out := make([]byte, 2)
	p.FetchSamples(out)

	got := p.audioClock.Get()
	if math.IsNaN(got) {
		t.Fatal("audio clock should be valid after first touch of a frame")
	}
	if p.audioClock.Serial() != e.Serial() {
		t.Fatalf("audio clock serial = %d, want epoch serial %d", p.audioClock.Serial(), e.Serial())
	}

	// A second fetch that continues inside the same frame must leave the
	// clock alone.
	p.audioClock.Set(100.0, e.Serial())
	p.FetchSamples(out)
	if got := p.audioClock.Get(); math.Abs(got-100.0) > 1.0 {
		t.Fatalf("audio clock = %v after a second fetch from the same frame, want it left near 100", got)
	}
}

func TestFetchSamplesPausedReturnsWithoutTouchingQueue(t *testing.T) {
	p, fq, _ := newTestPuller(t, 3)
	pushFrame(t, fq, 0, 44100, []byte{1, 2, 3, 4})
	p.Paused = true

	out := make([]byte, 4)
	p.FetchSamples(out)

	if fq.NbRemaining() != 1 {
		t.Fatalf("paused fetch should not consume the queue, NbRemaining=%d", fq.NbRemaining())
	}
}

func TestFetchPlanarIndependentCursors(t *testing.T) {
	p, fq, _ := newTestPuller(t, 3)
	slot, ok := fq.PeekWritable()
	if !ok {
		t.Fatal("PeekWritable ok=false")
	}
	slot.PTS = 0
	slot.NativeSampleRate = 44100
	left := []byte{1, 2, 3, 4}
	right := []byte{10, 20, 30, 40}
	slot.Data = [][]byte{left, right}
	fq.Push()

	lbuf := make([]byte, 2)
	rbuf := make([]byte, 4)
	p.FetchPlanar(lbuf, rbuf)

	if lbuf[0] != 1 || lbuf[1] != 2 {
		t.Fatalf("left buf = %v, want [1 2]", lbuf)
	}
	if rbuf[0] != 10 || rbuf[3] != 40 {
		t.Fatalf("right buf = %v, want [10 20 30 40]", rbuf)
	}
}
