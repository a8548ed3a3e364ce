package domain

import "time"

// TranscriptSegment is one finalized utterance. It is never mutated after
// creation. ID is unique within a session even for same-millisecond events.
type TranscriptSegment struct {
	ID         string   `json:"id"`
	Speaker    string   `json:"speaker"`
	Text       string   `json:"text"`
	Timestamp  int64    `json:"timestamp"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// TranslatedSegment carries the target-language rendering of a segment,
// keyed by the segment ID.
type TranslatedSegment struct {
	SegmentID string `json:"segmentId"`
	Text      string `json:"text"`
	Language  string `json:"language"`
}

// Transcript is the persisted record of one finished meeting.
type Transcript struct {
	MeetingID       string              `json:"meetingId"`
	StartedAt       time.Time           `json:"startedAt"`
	DurationMinutes int                 `json:"durationMinutes"`
	Segments        []TranscriptSegment `json:"segments"`
	Translations    []TranslatedSegment `json:"translations,omitempty"`
}
