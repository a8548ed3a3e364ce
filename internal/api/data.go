package api

import "github.com/Kerim-Sabic/free-cluely/internal/domain"

// Hypothesis is one recognition alternative from the speech backend.
type Hypothesis struct {
	Transcript string  `json:"transcript"`
	Likelihood float64 `json:"likelihood"`
}

type Result struct {
	Hypotheses []Hypothesis `json:"hypotheses"`
	Final      bool         `json:"final"`
}

// FullResult is the recognition backend wire format, one message per
// recognition cycle.
type FullResult struct {
	Status        int     `json:"status"`
	SegmentStart  float64 `json:"segment-start,omitempty"`
	SegmentLength float64 `json:"segment-length,omitempty"`
	Result        Result  `json:"result,omitempty"`
	Segment       int     `json:"segment"`
	ID            string  `json:"id,omitempty"`
}

// Recognition error vocabulary. The first two are expected noise,
// network and audio-capture are retriable.
const (
	ErrCodeNoSpeech     = "no-speech"
	ErrCodeAborted      = "aborted"
	ErrCodeNetwork      = "network"
	ErrCodeAudioCapture = "audio-capture"
)

// ClientEvent is a text frame sent by the meeting client.
type ClientEvent struct {
	Event    string `json:"event"`
	Language string `json:"language,omitempty"`
}

// ServerEvent is a text frame pushed to the meeting client.
type ServerEvent struct {
	Event       string                    `json:"event"`
	MeetingID   string                    `json:"meetingId,omitempty"`
	Segment     *domain.TranscriptSegment `json:"segment,omitempty"`
	Translation *domain.TranslatedSegment `json:"translation,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

const (
	EventStartMeeting   = "START_MEETING"
	EventStopMeeting    = "STOP_MEETING"
	EventSetLanguage    = "SET_LANGUAGE"
	EventMeetingStarted = "MEETING_STARTED"
	EventMeetingStopped = "MEETING_STOPPED"
	EventSegment        = "SEGMENT"
	EventTranslation    = "TRANSLATION"
	EventError          = "ERROR"
)
