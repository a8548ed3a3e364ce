package session

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/oklog/ulid/v2"

	"github.com/Kerim-Sabic/free-cluely/internal/api"
	"github.com/Kerim-Sabic/free-cluely/internal/domain"
	"github.com/Kerim-Sabic/free-cluely/internal/translate"
)

// Listener is the speech capture side of the pipeline.
type Listener interface {
	Start(ctx context.Context)
	Stop()
	IsListening() bool
	IsSupported() bool
	SendAudio(audio []byte) error
}

// Translator is the serialized translation relay. All segment translation
// goes through it, there is no ad-hoc per-segment path.
type Translator interface {
	Enqueue(ctx context.Context, text string) <-chan translate.Result
	SetTargetLanguage(lang string)
	Clear()
}

// Recorder is the external meeting-record boundary.
type Recorder interface {
	Start(ctx context.Context, meetingID string, startedAt time.Time) error
	End(ctx context.Context, meetingID string, endedAt time.Time, durationMinutes int) error
}

// Store persists finished transcripts and kept session audio.
type Store interface {
	SaveTranscript(ctx context.Context, tr *domain.Transcript) error
	SaveAudio(ctx context.Context, id string, chunks [][]byte) error
}

// Config wires one controller. Relay, Recorder and Store are optional,
// Write is required.
type Config struct {
	Relay     Translator
	Recorder  Recorder
	Store     Store
	Write     func(msg *api.ServerEvent) error
	KeepAudio bool
	Translate bool
}

// Controller owns one client's meeting lifecycle: it accumulates segments
// in arrival order, relays them for translation keyed by segment ID, and
// on stop notifies the meeting-record backend and persists the
// transcript. Segment lists are owned exclusively by the active meeting
// and discarded when it ends.
type Controller struct {
	listener  Listener
	relay     Translator
	recorder  Recorder
	store     Store
	write     func(msg *api.ServerEvent) error
	keepAudio bool
	translate bool

	mu           sync.Mutex
	active       bool
	meetingID    string
	startedAt    time.Time
	ctx          context.Context
	segments     []domain.TranscriptSegment
	translations map[string]domain.TranslatedSegment
	audio        [][]byte
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Write == nil {
		return nil, fmt.Errorf("no Write")
	}
	return &Controller{
		relay:     cfg.Relay,
		recorder:  cfg.Recorder,
		store:     cfg.Store,
		write:     cfg.Write,
		keepAudio: cfg.KeepAudio,
		translate: cfg.Translate && cfg.Relay != nil,
	}, nil
}

// Bind attaches the capture pipeline. Called once after construction,
// the assembler needs the controller's callbacks first.
func (c *Controller) Bind(l Listener) {
	c.listener = l
}

// Start opens a new meeting. Starting while one is active is tolerated.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		goapp.Log.Warn().Msg("meeting already active")
		return
	}
	c.active = true
	c.meetingID = ulid.Make().String()
	c.startedAt = time.Now()
	c.ctx = ctx
	c.segments = nil
	c.translations = map[string]domain.TranslatedSegment{}
	c.audio = nil
	id, startedAt := c.meetingID, c.startedAt
	c.mu.Unlock()

	goapp.Log.Info().Str("meeting", id).Msg("Starting meeting")
	if c.recorder != nil {
		// fail open: the session proceeds without the record
		if err := c.recorder.Start(ctx, id, startedAt); err != nil {
			goapp.Log.Error().Err(err).Msg("can't record meeting start")
		}
	}
	if c.listener != nil {
		c.listener.Start(ctx)
	}
	c.send(&api.ServerEvent{Event: api.EventMeetingStarted, MeetingID: id})
}

// Stop closes the active meeting: stops capture, drops queued
// translations, notifies the recorder and persists the transcript.
// In-flight translation is not cancelled, a late result for a stopped
// meeting is discarded.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	id := c.meetingID
	startedAt := c.startedAt
	segments := c.segments
	translations := translationList(c.segments, c.translations)
	audio := c.audio
	c.segments = nil
	c.translations = nil
	c.audio = nil
	c.mu.Unlock()

	if c.listener != nil {
		c.listener.Stop()
	}
	if c.relay != nil {
		c.relay.Clear()
	}

	endedAt := time.Now()
	durationMin := int(math.Round(endedAt.Sub(startedAt).Minutes()))
	goapp.Log.Info().Str("meeting", id).Int("min", durationMin).Msg("Stopping meeting")
	if c.recorder != nil {
		if err := c.recorder.End(ctx, id, endedAt, durationMin); err != nil {
			goapp.Log.Error().Err(err).Msg("can't record meeting end")
		}
	}
	if c.store != nil {
		tr := &domain.Transcript{
			MeetingID:       id,
			StartedAt:       startedAt,
			DurationMinutes: durationMin,
			Segments:        segments,
			Translations:    translations,
		}
		if err := c.store.SaveTranscript(ctx, tr); err != nil {
			goapp.Log.Error().Err(err).Msg("can't save transcript")
		}
		if len(audio) > 0 {
			if err := c.store.SaveAudio(ctx, id, audio); err != nil {
				goapp.Log.Error().Err(err).Msg("can't save audio")
			}
		}
	}
	c.send(&api.ServerEvent{Event: api.EventMeetingStopped, MeetingID: id})
}

// HandleSegment consumes one assembled segment. Exactly one call per
// final recognition result, in arrival order.
func (c *Controller) HandleSegment(seg domain.TranscriptSegment) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.segments = append(c.segments, seg)
	id := c.meetingID
	ctx := c.ctx
	c.mu.Unlock()

	c.send(&api.ServerEvent{Event: api.EventSegment, MeetingID: id, Segment: &seg})
	if c.translate {
		ch := c.relay.Enqueue(ctx, seg.Text)
		go c.applyTranslation(id, seg.ID, ch)
	}
}

// HandleError surfaces a pipeline error to the client as a transient
// banner. Translation failures never reach here, they fail open inside
// the relay.
func (c *Controller) HandleError(err error) {
	c.send(&api.ServerEvent{Event: api.EventError, Error: err.Error()})
}

// HandleAudio keeps a raw audio chunk for the session record and forwards
// it to the recognizer.
func (c *Controller) HandleAudio(chunk []byte) {
	c.mu.Lock()
	if c.active && c.keepAudio {
		c.audio = append(c.audio, chunk)
	}
	c.mu.Unlock()
	if c.listener != nil && c.listener.IsListening() {
		if err := c.listener.SendAudio(chunk); err != nil {
			goapp.Log.Debug().Err(err).Msg("can't forward audio")
		}
	}
}

// SetTargetLanguage switches translation target for segments enqueued
// from now on.
func (c *Controller) SetTargetLanguage(lang string) {
	if c.relay != nil {
		c.relay.SetTargetLanguage(lang)
	}
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) applyTranslation(meetingID, segmentID string, ch <-chan translate.Result) {
	res, ok := <-ch
	if !ok || !res.OK {
		return
	}
	tr := domain.TranslatedSegment{SegmentID: segmentID, Text: res.Text, Language: res.Lang}
	c.mu.Lock()
	if !c.active || c.meetingID != meetingID {
		// the meeting ended while the request was in flight
		c.mu.Unlock()
		return
	}
	c.translations[segmentID] = tr
	c.mu.Unlock()
	c.send(&api.ServerEvent{Event: api.EventTranslation, MeetingID: meetingID, Translation: &tr})
}

func (c *Controller) send(msg *api.ServerEvent) {
	if err := c.write(msg); err != nil {
		goapp.Log.Error().Err(err).Str("event", msg.Event).Msg("can't send event")
	}
}

// translationList orders translations by the segment sequence, keyed by
// segment ID rather than position.
func translationList(segments []domain.TranscriptSegment, byID map[string]domain.TranslatedSegment) []domain.TranslatedSegment {
	var res []domain.TranslatedSegment
	for _, seg := range segments {
		if tr, ok := byID[seg.ID]; ok {
			res = append(res, tr)
		}
	}
	return res
}
