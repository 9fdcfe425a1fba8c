// Package clock implements the monotonic-derived presentation clocks used
// for A/V synchronization (spec.md §4.3).
package clock

import (
	"math"
	"sync"
	"time"
)

// NoSyncThreshold is the maximum clock disagreement tolerated before
// sync_slave_to refuses to adopt the other clock's value (spec.md §4.3:
// AV_NOSYNC_THRESHOLD).
const NoSyncThreshold = 10.0

var start = time.Now()

// now returns a monotonic seconds timestamp, mirroring
// av_gettime_relative()/1e6 in mr_play.c.
func now() float64 {
	return time.Since(start).Seconds()
}

// serialSource is satisfied by the upstream queue a Clock borrows its
// serial from, so the clock can detect that its source has rewound or
// restarted (spec.md §4.3, §9).
type serialSource interface {
	Serial() int
}

type selfSerial struct{ serial *int }

func (s selfSerial) Serial() int { return *s.serial }

// Epoch is a shared validity generation for the audio/video clocks of one
// playback session. The source material bumps a packet-queue serial on
// every packet and a frame-queue serial on every pushed frame -- two
// independent counters that disagree on almost every tick, which would
// make Clock.Get() read NaN for most of a session rather than only across
// a genuine discontinuity (spec.md §9: "a reimplementation may choose a
// cleaner scheme provided tests 1-6 still pass"). Epoch is that scheme:
// one counter per playback session, bumped only when the pipeline is torn
// down and rebuilt (never during steady-state decode), shared by the
// audio and video clocks so both stay valid for the life of the session.
type Epoch struct {
	mu    sync.Mutex
	value int
}

// NewEpoch returns an Epoch starting at generation 0.
func NewEpoch() *Epoch { return &Epoch{} }

// Serial implements serialSource.
func (e *Epoch) Serial() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Bump advances the epoch, invalidating every Clock still set to the
// previous generation. The engine itself never calls it; only the
// package's tests do.
func (e *Epoch) Bump() {
	e.mu.Lock()
	e.value++
	e.mu.Unlock()
}

// Clock is one of the engine's three logical clocks (audio, video,
// external). It is safe for concurrent reads; writes should be
// externally serialized by the caller holding whatever mutex protects the
// owning pipeline stage (spec.md §5 places clock writes under the
// frame-queue mutex of the owning stream).
type Clock struct {
	mu sync.Mutex

	pts        float64
	ptsDrift   float64
	lastUpdate float64
	speed      float64
	serial     int
	paused     bool

	source serialSource
}

// New creates a Clock that reads its "is this clock stale" signal from
// source's serial. Pass nil to have the clock borrow its own serial field
// (used for the external clock, which therefore never goes stale -- spec.md
// §9 "The external clock is initialized with a pointer to its own serial,
// so it is never invalidated"). Every clock starts with a NaN pts, so even
// a self-serial clock reads NaN until its first Set or SyncTo.
func New(source serialSource) *Clock {
	c := &Clock{speed: 1.0, serial: -1}
	if source == nil {
		c.source = selfSerial{serial: &c.serial}
	} else {
		c.source = source
	}
	c.setAt(math.NaN(), -1, now())
	return c
}

func (c *Clock) setAt(pts float64, serial int, t float64) {
	c.pts = pts
	c.lastUpdate = t
	c.ptsDrift = pts - t
	c.serial = serial
}

// SetAt updates the clock to pts/serial as of wall-clock time t (seconds).
func (c *Clock) SetAt(pts float64, serial int, t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAt(pts, serial, t)
}

// Set updates the clock to pts/serial as of the current time.
func (c *Clock) Set(pts float64, serial int) {
	c.SetAt(pts, serial, now())
}

// Get returns the clock's current projected PTS in seconds. It returns
// NaN if the clock's recorded serial disagrees with its source's current
// serial (spec.md §3 invariant 3, §4.3).
func (c *Clock) Get() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source.Serial() != c.serial {
		return math.NaN()
	}
	if c.paused {
		return c.pts
	}
	t := now()
	return c.ptsDrift + t - (t-c.lastUpdate)*(1-c.speed)
}

// SetPaused sets the clock's paused flag; while paused, Get freezes at the
// last-set PTS.
func (c *Clock) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

// Paused reports the clock's paused flag.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Speed returns the clock's playback speed. Always 1.0 in this engine
// (spec.md §1: "no operation changes it from 1.0"), but the field and
// accessor exist because Get()'s formula depends on it.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Serial returns the serial the clock was last set with.
func (c *Clock) Serial() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serial
}

// SyncTo adopts other's value and serial if other reads a finite value
// and either this clock is stale (NaN) or the two disagree by more than
// NoSyncThreshold seconds (spec.md §4.3 sync_slave_to).
func (c *Clock) SyncTo(other *Clock) {
	myVal := c.Get()
	otherVal := other.Get()
	if math.IsNaN(otherVal) {
		return
	}
	if math.IsNaN(myVal) || math.Abs(myVal-otherVal) > NoSyncThreshold {
		other.mu.Lock()
		pts, serial := other.pts, other.serial
		// other.pts is the raw base, not the projected value; adopt the
		// drift/timestamp pair directly so the two clocks agree exactly.
		drift, lastUpdate := other.ptsDrift, other.lastUpdate
		other.mu.Unlock()

		c.mu.Lock()
		c.pts, c.serial, c.ptsDrift, c.lastUpdate = pts, serial, drift, lastUpdate
		c.mu.Unlock()
	}
}
