package diarize

import (
	"fmt"
	"time"
)

// DefaultSwitchThreshold is the silence gap after which the detector
// assumes the other party started talking.
const DefaultSwitchThreshold = 2 * time.Second

const historyCap = 20

type sample struct {
	speaker int
	at      int64
}

// Detector assigns speaker labels from inter-utterance silence gaps alone.
// It alternates between two speakers: a gap longer than the threshold
// toggles the current one. It cannot tell more than two speakers apart,
// and a single speaker pausing long enough is labeled as the second.
//
// A Detector is owned by one listening session and is not safe for
// concurrent use.
type Detector struct {
	threshold      time.Duration
	lastSpeechTime int64
	currentSpeaker int
	history        []sample
}

func New(threshold time.Duration) *Detector {
	if threshold <= 0 {
		threshold = DefaultSwitchThreshold
	}
	return &Detector{threshold: threshold, currentSpeaker: 1}
}

// Label returns the speaker label for an utterance finalized at the given
// unix-ms timestamp. The first utterance of a session never toggles.
func (d *Detector) Label(atMs int64) string {
	if d.lastSpeechTime != 0 && atMs-d.lastSpeechTime > d.threshold.Milliseconds() {
		if d.currentSpeaker == 1 {
			d.currentSpeaker = 2
		} else {
			d.currentSpeaker = 1
		}
	}
	d.lastSpeechTime = atMs
	// kept for future smoothing, not consumed yet
	d.history = append(d.history, sample{speaker: d.currentSpeaker, at: atMs})
	if len(d.history) > historyCap {
		d.history = d.history[len(d.history)-historyCap:]
	}
	return fmt.Sprintf("Speaker %d", d.currentSpeaker)
}

// Reset returns the detector to its initial state. Call it at the start of
// every new listening session so state does not leak across meetings.
func (d *Detector) Reset() {
	d.lastSpeechTime = 0
	d.currentSpeaker = 1
	d.history = nil
}
