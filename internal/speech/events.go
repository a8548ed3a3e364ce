package speech

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by a provider with no usable recognition
// capability behind it.
var ErrNotSupported = errors.New("speech recognition not supported")

type EventKind int

const (
	// KindResult carries one recognition hypothesis, interim or final.
	KindResult EventKind = iota
	// KindError carries an error code from the recognition vocabulary.
	KindError
	// KindEnd marks a natural end of the capture stream.
	KindEnd
)

// Event is one recognition event. The variants are bounded: Result, Error
// and End, consumed via a single channel per stream.
type Event struct {
	Kind       EventKind
	Transcript string
	// Confidence is a recognizer score in [0,1], meaningful only when
	// HasConfidence is set. A reported zero is distinct from no report.
	Confidence    float64
	HasConfidence bool
	Final         bool
	Code          string // set for KindError
}

// Options configures one capture session.
type Options struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// Stream is one open capture session.
type Stream interface {
	// Events yields recognition events. The channel is closed after the
	// stream ends, KindEnd is emitted first.
	Events() <-chan Event
	// Send forwards a raw audio chunk to the recognizer.
	Send(audio []byte) error
	// Close stops the stream, idempotent.
	Close() error
}

// Provider resolves the recognition capability once at startup. The
// pipeline depends only on this interface, never on how the capability
// was detected.
type Provider interface {
	Supported() bool
	Open(ctx context.Context, opts Options) (Stream, error)
}
