package clock

import (
	"math"
	"testing"
)

func TestNewExternalClockNeverStale(t *testing.T) {
	c := New(nil)
	// A self-serial clock adopts whatever serial it is set with, so no
	// serial value can make it stale (an epoch-bound clock set with 7
	// would read NaN here).
	c.Set(3.0, 7)
	got := c.Get()
	if math.IsNaN(got) {
		t.Fatal("external clock (self-serial) reads NaN after Set with an arbitrary serial")
	}
}

func TestNewEpochBoundClockStaleUntilSet(t *testing.T) {
	e := NewEpoch()
	c := New(e)
	if !math.IsNaN(c.Get()) {
		t.Fatal("epoch-bound clock should read NaN before any Set")
	}
	c.Set(1.0, e.Serial())
	if math.IsNaN(c.Get()) {
		t.Fatal("epoch-bound clock should be valid right after Set with the current epoch serial")
	}
}

func TestEpochBumpInvalidatesClock(t *testing.T) {
	e := NewEpoch()
	c := New(e)
	c.Set(2.0, e.Serial())
	if math.IsNaN(c.Get()) {
		t.Fatal("clock should be valid before Bump")
	}
	e.Bump()
	if !math.IsNaN(c.Get()) {
		t.Fatal("clock should read NaN once its epoch generation is stale")
	}
}

func TestClockGetProjectsForwardWhilePlaying(t *testing.T) {
	c := New(nil)
	c.Set(10.0, c.Serial())
	a := c.Get()
	b := c.Get()
	if b < a {
		t.Fatalf("clock should be monotonically nondecreasing while playing: %v then %v", a, b)
	}
}

func TestClockPausedFreezesValue(t *testing.T) {
	c := New(nil)
	c.Set(5.0, c.Serial())
	c.SetPaused(true)
	a := c.Get()
	b := c.Get()
	if a != b {
		t.Fatalf("paused clock value drifted: %v then %v", a, b)
	}
}

func TestSyncToAdoptsStaleClock(t *testing.T) {
	// master is Epoch-sourced and Set correctly against its own epoch;
	// slave is self-sourced (as the external clock always is), so
	// adopting master's serial keeps it self-consistent regardless of
	// which generation master came from (spec.md §4.9 "external clock is
	// never invalidated").
	e := NewEpoch()
	master := New(e)
	master.Set(100.0, e.Serial())

	slave := New(nil) // never Set, reads NaN until synced
	slave.SyncTo(master)

	if math.IsNaN(slave.Get()) {
		t.Fatal("SyncTo should have adopted the master's value for a stale slave")
	}
}

func TestSyncToIgnoresNaNOther(t *testing.T) {
	c := New(nil)
	c.Set(42.0, c.Serial())
	before := c.Get()

	e := NewEpoch()
	other := New(e) // never Set against e, stale, reads NaN
	c.SyncTo(other)

	after := c.Get()
	if math.Abs(after-before) > 1.0 {
		t.Fatalf("SyncTo should not have adopted a NaN other clock: before=%v after=%v", before, after)
	}
}

func TestSyncToSkipsWithinNoSyncThreshold(t *testing.T) {
	master := New(nil)
	master.Set(0.0, master.Serial())

	slave := New(nil)
	slave.Set(0.5, slave.Serial())

	slave.SyncTo(master)
	got := slave.Get()
	if math.Abs(got-0.5) > 0.2 {
		t.Fatalf("SyncTo should not resync within NoSyncThreshold: got %v, want near 0.5", got)
	}
}
