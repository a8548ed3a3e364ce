package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/Kerim-Sabic/free-cluely/internal/api"
	"github.com/Kerim-Sabic/free-cluely/internal/diarize"
	"github.com/Kerim-Sabic/free-cluely/internal/domain"
)

const fixedSpeakerLabel = "You"

// AssemblerConfig wires one assembler. OnSegment is required, OnError is
// optional.
type AssemblerConfig struct {
	Provider     Provider
	Detector     *diarize.Detector
	Options      Options
	Diarize      bool
	OnSegment    func(domain.TranscriptSegment)
	OnError      func(error)
	RetryBackoff time.Duration // defaults to one second
}

// Assembler turns the provider's event stream into transcript segments.
// One segment per final non-empty result, in arrival order, with unique
// IDs. It owns restart-on-end and the transient-error policy.
type Assembler struct {
	provider  Provider
	detector  *diarize.Detector
	opts      Options
	diarize   bool
	onSegment func(domain.TranscriptSegment)
	onError   func(error)
	backoff   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	listening bool
	stream    Stream
	cancel    context.CancelFunc

	// owned by the run goroutine
	counter int64
	lastTS  int64
	retried bool
}

func NewAssembler(cfg AssemblerConfig) (*Assembler, error) {
	if cfg.OnSegment == nil {
		return nil, fmt.Errorf("no OnSegment")
	}
	res := &Assembler{
		provider:  cfg.Provider,
		detector:  cfg.Detector,
		opts:      cfg.Options,
		diarize:   cfg.Diarize,
		onSegment: cfg.OnSegment,
		onError:   cfg.OnError,
		backoff:   cfg.RetryBackoff,
		now:       time.Now,
	}
	if res.backoff <= 0 {
		res.backoff = time.Second
	}
	return res, nil
}

// IsSupported reports the capability probe result. The provider is
// resolved once at construction and never changes.
func (a *Assembler) IsSupported() bool {
	return a.provider != nil && a.provider.Supported()
}

func (a *Assembler) IsListening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// Start begins a new listening session. Calling it while already
// listening is tolerated and does nothing. An unsupported or missing
// provider is reported through OnError, never panics.
func (a *Assembler) Start(ctx context.Context) {
	a.mu.Lock()
	if a.listening {
		a.mu.Unlock()
		return
	}
	if !a.IsSupported() {
		a.mu.Unlock()
		a.reportError(ErrNotSupported)
		return
	}
	// fresh session: the detector resets here, not on auto-restarts
	if a.detector != nil {
		a.detector.Reset()
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.listening = true
	a.mu.Unlock()
	go a.run(runCtx)
}

// Stop ends the session. Idempotent, it does not cancel in-flight
// translation work downstream.
func (a *Assembler) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.listening {
		return
	}
	a.listening = false
	if a.cancel != nil {
		a.cancel()
	}
	if a.stream != nil {
		_ = a.stream.Close()
	}
}

// SendAudio forwards a raw audio chunk to the active capture stream.
func (a *Assembler) SendAudio(audio []byte) error {
	a.mu.Lock()
	st := a.stream
	a.mu.Unlock()
	if st == nil {
		return fmt.Errorf("no active speech stream")
	}
	return st.Send(audio)
}

func (a *Assembler) run(ctx context.Context) {
	defer a.markStopped()
	first := true
	for {
		st, err := a.provider.Open(ctx, a.opts)
		if err != nil {
			if first {
				a.reportError(fmt.Errorf("open speech stream: %w", err))
			} else {
				// restart failure, no further retry this cycle
				goapp.Log.Error().Err(err).Msg("can't restart speech stream")
			}
			return
		}
		a.setStream(st)
		a.retried = false
		first = false

		again := a.consume(ctx, st)
		_ = st.Close()
		a.setStream(nil)
		if !again {
			return
		}
	}
}

// consume drains one stream, returns true when a new one should be opened.
func (a *Assembler) consume(ctx context.Context, st Stream) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-st.Events():
			if !ok {
				// natural end of stream
				return a.opts.Continuous && a.IsListening()
			}
			switch ev.Kind {
			case KindResult:
				a.handleResult(ev)
			case KindError:
				if restart := a.handleError(ctx, ev); restart {
					return a.IsListening()
				}
			case KindEnd:
				return a.opts.Continuous && a.IsListening()
			}
		}
	}
}

func (a *Assembler) handleResult(ev Event) {
	if !ev.Final {
		// interim hypotheses are not converted to segments
		return
	}
	text := strings.TrimSpace(ev.Transcript)
	if text == "" {
		return
	}
	ts := a.now().UnixMilli()
	if ts < a.lastTS {
		ts = a.lastTS
	}
	a.lastTS = ts
	a.counter++

	speaker := fixedSpeakerLabel
	if a.diarize && a.detector != nil {
		speaker = a.detector.Label(ts)
	}
	seg := domain.TranscriptSegment{
		ID:        fmt.Sprintf("%d-%d", ts, a.counter),
		Speaker:   speaker,
		Text:      text,
		Timestamp: ts,
	}
	if ev.HasConfidence {
		c := ev.Confidence
		seg.Confidence = &c
	}
	a.onSegment(seg)
}

// handleError applies the error policy: no-speech and aborted are
// expected noise, network and audio-capture get one delayed restart per
// stream cycle, everything else is reported without retry.
func (a *Assembler) handleError(ctx context.Context, ev Event) bool {
	switch ev.Code {
	case api.ErrCodeNoSpeech, api.ErrCodeAborted:
		goapp.Log.Debug().Str("code", ev.Code).Msg("recognition noise")
		return false
	case api.ErrCodeNetwork, api.ErrCodeAudioCapture:
		a.reportError(fmt.Errorf("speech capture error: %s", ev.Code))
		if a.retried || !a.IsListening() {
			return false
		}
		a.retried = true
		select {
		case <-time.After(a.backoff):
			return true
		case <-ctx.Done():
			return false
		}
	default:
		a.reportError(fmt.Errorf("speech recognition error: %s", ev.Code))
		return false
	}
}

func (a *Assembler) setStream(st Stream) {
	a.mu.Lock()
	a.stream = st
	a.mu.Unlock()
}

func (a *Assembler) markStopped() {
	a.mu.Lock()
	a.listening = false
	a.stream = nil
	a.mu.Unlock()
}

func (a *Assembler) reportError(err error) {
	goapp.Log.Error().Err(err).Msg("speech pipeline")
	if a.onError != nil {
		a.onError(err)
	}
}
