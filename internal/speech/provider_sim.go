package speech

import (
	"context"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

var simPhrases = []string{
	"Good morning everyone",
	"Let's go through the agenda",
	"I will share the numbers from last week",
	"Any questions so far",
	"Let's move on to the next topic",
}

// SimProvider produces a canned transcript. It backs the demo mode used
// when no recognition backend is configured, and the tests.
type SimProvider struct {
	phrases  []string
	interval time.Duration
}

func NewSimProvider(interval time.Duration) *SimProvider {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	goapp.Log.Info().Dur("interval", interval).Msg("simulated speech provider")
	return &SimProvider{phrases: simPhrases, interval: interval}
}

func (p *SimProvider) Supported() bool { return true }

func (p *SimProvider) Open(ctx context.Context, opts Options) (Stream, error) {
	s := &simStream{events: make(chan Event), done: make(chan struct{})}
	go s.run(ctx, p.phrases, p.interval, opts.InterimResults)
	return s, nil
}

type simStream struct {
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func (s *simStream) Events() <-chan Event { return s.events }

func (s *simStream) Send(audio []byte) error { return nil }

func (s *simStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *simStream) run(ctx context.Context, phrases []string, interval time.Duration, interim bool) {
	defer close(s.events)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for _, phrase := range phrases {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}
		if interim {
			if !s.emit(ctx, Event{Kind: KindResult, Transcript: phrase}) {
				return
			}
		}
		if !s.emit(ctx, Event{Kind: KindResult, Transcript: phrase, Confidence: 0.9, HasConfidence: true, Final: true}) {
			return
		}
	}
	s.emit(ctx, Event{Kind: KindEnd})
}

func (s *simStream) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}
