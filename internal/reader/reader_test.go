package reader

import (
	"errors"
	"testing"
	"time"
)

func TestNewDefaultsBackoffWaitWhenZero(t *testing.T) {
	r := New(Options{URL: "fake://empty"})
	if r.opt.BackoffWait != backoffWait {
		t.Fatalf("BackoffWait = %v, want default %v", r.opt.BackoffWait, backoffWait)
	}
}

func TestNewKeepsExplicitBackoffWait(t *testing.T) {
	custom := 25 * time.Millisecond
	r := New(Options{URL: "fake://empty", BackoffWait: custom})
	if r.opt.BackoffWait != custom {
		t.Fatalf("BackoffWait = %v, want %v", r.opt.BackoffWait, custom)
	}
}

func TestDecoderErrKeepsFirstOnly(t *testing.T) {
	r := &Reader{}
	if r.DecoderErr() != nil {
		t.Fatal("DecoderErr on a fresh Reader should be nil")
	}

	first := errors.New("boom")
	r.recordDecoderErr(first)
	r.recordDecoderErr(errors.New("second failure, should be ignored"))

	if got := r.DecoderErr(); got != first {
		t.Fatalf("DecoderErr = %v, want the first recorded error %v", got, first)
	}
}

func TestDecoderErrIgnoresNil(t *testing.T) {
	r := &Reader{}
	r.recordDecoderErr(nil)
	if r.DecoderErr() != nil {
		t.Fatal("recordDecoderErr(nil) should not set an error")
	}
}
