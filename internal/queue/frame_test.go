package queue

import (
	"testing"
	"time"
)

// fakeUpstream is a minimal upstream satisfying the abort-detection
// interface a FrameQueue needs, without pulling in a real PacketQueue.
type fakeUpstream struct{ aborted bool }

func (u *fakeUpstream) Aborted() bool { return u.aborted }

func TestFrameQueuePushPeekNext(t *testing.T) {
	up := &fakeUpstream{}
	q := NewFrameQueue(up, 3)

	slot, ok := q.PeekWritable()
	if !ok {
		t.Fatal("PeekWritable: ok=false")
	}
	slot.PTS = 1.5
	q.Push()

	if got := q.NbRemaining(); got != 1 {
		t.Fatalf("NbRemaining = %d, want 1", got)
	}

	rf, ok := q.PeekReadable(false)
	if !ok {
		t.Fatal("PeekReadable: ok=false")
	}
	if rf.PTS != 1.5 {
		t.Fatalf("PeekReadable PTS = %v, want 1.5", rf.PTS)
	}
	if rf.Serial != 1 {
		t.Fatalf("pushed frame Serial = %d, want 1 (first push)", rf.Serial)
	}

	q.Next()
	if got := q.NbRemaining(); got != 0 {
		t.Fatalf("NbRemaining after Next = %d, want 0", got)
	}
}

func TestFrameQueueCapacityClamped(t *testing.T) {
	up := &fakeUpstream{}
	if got := NewFrameQueue(up, 0).Capacity(); got != 1 {
		t.Fatalf("capacity(0) clamped to %d, want 1", got)
	}
	if got := NewFrameQueue(up, 100).Capacity(); got != 16 {
		t.Fatalf("capacity(100) clamped to %d, want 16", got)
	}
}

func TestFrameQueueBlocksWhenFull(t *testing.T) {
	up := &fakeUpstream{}
	q := NewFrameQueue(up, 1)

	slot, _ := q.PeekWritable()
	slot.PTS = 1
	q.Push()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.PeekWritable()
		done <- ok
	}()

	select {
	case <-done:
		t.Fatal("PeekWritable returned while queue was full and not aborted")
	case <-time.After(50 * time.Millisecond):
	}

	q.Next() // frees a slot, wakes the blocked writer
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("PeekWritable returned ok=false after a slot freed up")
		}
	case <-time.After(time.Second):
		t.Fatal("PeekWritable did not unblock after Next")
	}
}

func TestFrameQueueAbortUnblocksReader(t *testing.T) {
	up := &fakeUpstream{}
	q := NewFrameQueue(up, 2)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.PeekReadable(true)
		done <- ok
	}()

	up.aborted = true
	q.Signal()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("PeekReadable returned ok=true after upstream abort")
		}
	case <-time.After(time.Second):
		t.Fatal("PeekReadable did not unblock after Signal")
	}
}

func TestFrameQueuePeekLastAndNext(t *testing.T) {
	up := &fakeUpstream{}
	q := NewFrameQueue(up, 3)

	for i := 0; i < 2; i++ {
		slot, _ := q.PeekWritable()
		slot.PTS = float64(i)
		q.Push()
	}

	cur := q.Peek()
	next := q.PeekNext()
	if cur.PTS != 0 || next.PTS != 1 {
		t.Fatalf("Peek/PeekNext PTS = %v/%v, want 0/1", cur.PTS, next.PTS)
	}

	q.Next()
	last := q.PeekLast()
	if last.PTS != 0 {
		t.Fatalf("PeekLast PTS = %v, want 0", last.PTS)
	}
}
