package mediacore

import (
	"errors"

	"github.com/avcore/mediacore/internal/decode"
	"github.com/avcore/mediacore/internal/queue"
	"github.com/avcore/mediacore/internal/reader"
)

// Error kinds the core distinguishes (spec.md §7), re-exported at the
// facade boundary so a host can classify a failure with errors.Is without
// reaching into internal packages.
var (
	// ErrAborted is returned once a queue has been aborted; it propagates
	// as end-of-work to whichever goroutine observed it.
	ErrAborted = queue.ErrAborted

	// ErrFormatUnsupported means a resampler or scaler could not be
	// built for the negotiated formats; it aborts the affected stream
	// only, never the whole engine unless that was the sole media
	// stream.
	ErrFormatUnsupported = decode.ErrFormatUnsupported

	// ErrInputOpenFailure and ErrStreamDiscoveryFailure mean the reader
	// could not open the input or find a usable stream. Input opening runs
	// on the reader's goroutine after Prepare has returned nil, so the
	// failure is reported by Err, not by Prepare; the engine is then in
	// its prepared state, Prepare cannot be called on it again, and a
	// retry needs a fresh Engine.
	ErrInputOpenFailure       = reader.ErrInputOpenFailure
	ErrStreamDiscoveryFailure = reader.ErrStreamDiscoveryFailure

	// ErrResourceExhausted means a decoder's codec SendPacket or
	// ReceiveFrame call failed for a reason other than backpressure or
	// EOF; Err reports it once the failing decoder's goroutine has
	// returned, terminal for that stream only.
	ErrResourceExhausted = decode.ErrResourceExhausted

	// ErrClosed is returned by operations attempted after Close.
	ErrClosed = errors.New("mediacore: engine closed")

	// ErrNotPrepared is returned by operations that require Prepare to
	// have succeeded first.
	ErrNotPrepared = errors.New("mediacore: engine not prepared")
)
