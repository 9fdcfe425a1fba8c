// Package message defines the engine's message-posting vocabulary
// (spec.md §4.9 "msg_post(kind, arg1, arg2) dispatches to the message
// callback if registered; the core never blocks on the callback").
package message

// Kind identifies one of the engine's host-facing notifications.
type Kind int

const (
	// InitAudioRender carries the negotiated sample format (as its Arg1,
	// a format.SampleFormat cast to int) once the audio decoder opens.
	InitAudioRender Kind = iota
	// InitVideoRender carries width (Arg1) and height (Arg2) once the
	// video decoder opens.
	InitVideoRender
	// PackQueueIsFull is posted by the reader each time it backs off
	// because the queues' combined byte budget is exceeded or an active
	// stream's packet queue is at its packet-count cap.
	PackQueueIsFull
	// FrameQueueIsEmpty is posted by the audio pull endpoint when it has
	// nothing to hand the host.
	FrameQueueIsEmpty
)

func (k Kind) String() string {
	switch k {
	case InitAudioRender:
		return "InitAudioRender"
	case InitVideoRender:
		return "InitVideoRender"
	case PackQueueIsFull:
		return "PackQueueIsFull"
	case FrameQueueIsEmpty:
		return "FrameQueueIsEmpty"
	default:
		return "unknown"
	}
}

// Message is one posted notification.
type Message struct {
	Kind Kind
	Arg1 int
	Arg2 int
}

// Sink receives posted messages. The core never blocks on it: a nil Sink
// means "drop", and a Sink implementation that wants to hand work off to
// another goroutine must do so itself (e.g. buffer into a channel).
type Sink interface {
	Post(Message)
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func(Message)

func (f SinkFunc) Post(m Message) { f(m) }

// Post sends m to sink if non-nil, matching mr_play.c's
// "dispatches ... if registered" semantics.
func Post(sink Sink, kind Kind, arg1, arg2 int) {
	if sink == nil {
		return
	}
	sink.Post(Message{Kind: kind, Arg1: arg1, Arg2: arg2})
}
