package mediacore

import (
	"io"
	"testing"
	"time"

	"github.com/avcore/mediacore/internal/avrt"
)

// fakeInput is a stream-less InputContext: Prepare's reader goroutine opens
// it, finds nothing to decode, hits EOF immediately, and returns -- enough
// to exercise the Engine's full construct/wait/teardown lifecycle without
// a real demuxer.
type fakeInput struct {
	closed bool
}

func (i *fakeInput) Streams() []avrt.Stream             { return nil }
func (i *fakeInput) FlagGenPTSDiscontinuity() bool       { return false }
func (i *fakeInput) ReadPacket() (avrt.Packet, error)    { return nil, io.EOF }
func (i *fakeInput) OpenCodec(avrt.Stream) (avrt.CodecContext, error) {
	return nil, nil
}
func (i *fakeInput) Close() error { i.closed = true; return nil }

type fakeRuntime struct {
	input   *fakeInput
	openErr error
}

func (r *fakeRuntime) OpenInput(string) (avrt.InputContext, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.input, nil
}
func (r *fakeRuntime) NewResampler(avrt.ResamplerFormat, avrt.ResamplerFormat) (avrt.Resampler, error) {
	return nil, nil
}
func (r *fakeRuntime) NewScaler(avrt.ScalerFormat, avrt.ScalerFormat) (avrt.Scaler, error) {
	return nil, nil
}
func (r *fakeRuntime) NewScratchFrame() avrt.Frame { return nil }

func TestEngineLifecyclePrepareToClose(t *testing.T) {
	rt := &fakeRuntime{input: &fakeInput{}}
	var messages []Message
	e := NewEngine(Params{
		URL:     "fake://empty",
		Runtime: rt,
		MessageFunc: func(m Message) {
			messages = append(messages, m)
		},
	})

	if err := e.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if e.Paused() {
		t.Fatal("Paused() true right after Play")
	}

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !e.Paused() {
		t.Fatal("Paused() false right after Pause")
	}

	// Give the reader goroutine a moment to run its stream-less pumpLoop
	// to completion (it should return almost immediately on first EOF);
	// a clean EOF leaves Err() nil, so Close below is what actually
	// blocks until the goroutine has exited.
	time.Sleep(50 * time.Millisecond)
	if err := e.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil on a clean EOF", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !rt.input.closed {
		t.Fatal("Close should have closed the underlying input context")
	}

	// A second Close is a no-op, reported as ErrClosed.
	if err := e.Close(); err != ErrClosed {
		t.Fatalf("second Close = %v, want ErrClosed", err)
	}
}

func TestEnginePrepareTwiceFails(t *testing.T) {
	rt := &fakeRuntime{input: &fakeInput{}}
	e := NewEngine(Params{URL: "fake://empty", Runtime: rt})
	if err := e.Prepare(); err != nil {
		t.Fatalf("first Prepare: %v", err)
	}
	if err := e.Prepare(); err == nil {
		t.Fatal("second Prepare should have failed")
	}
	_ = e.Close()
}

func TestEngineOperationsAfterCloseReturnErrClosed(t *testing.T) {
	rt := &fakeRuntime{input: &fakeInput{}}
	e := NewEngine(Params{URL: "fake://empty", Runtime: rt})

	if err := e.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := e.Play(); err != ErrClosed {
		t.Fatalf("Play after Close = %v, want ErrClosed", err)
	}
	if err := e.Pause(); err != ErrClosed {
		t.Fatalf("Pause after Close = %v, want ErrClosed", err)
	}
	if err := e.Prepare(); err != ErrClosed {
		t.Fatalf("Prepare after Close = %v, want ErrClosed", err)
	}
}

func TestEnginePlayBeforePrepareFails(t *testing.T) {
	e := NewEngine(Params{URL: "fake://empty", Runtime: &fakeRuntime{input: &fakeInput{}}})
	if err := e.Play(); err != ErrNotPrepared {
		t.Fatalf("Play before Prepare = %v, want ErrNotPrepared", err)
	}
}

func TestEngineInputOpenFailurePropagatesAsErr(t *testing.T) {
	rt := &fakeRuntime{openErr: ErrInputOpenFailure}
	e := NewEngine(Params{URL: "fake://bad", Runtime: rt})
	if err := e.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	deadline := time.After(time.Second)
	for e.Err() == nil {
		select {
		case <-deadline:
			t.Fatal("engine never surfaced the reader's open failure via Err()")
		case <-time.After(time.Millisecond):
		}
	}

	_ = e.Close()
}
