package diarize

import (
	"testing"
	"time"
)

func TestDetector_Label(t *testing.T) {
	tests := []struct {
		name  string
		times []int64
		want  []string
	}{
		{name: "single", times: []int64{100}, want: []string{"Speaker 1"}},
		{name: "no toggle on first utterance after long silence",
			times: []int64{5000}, want: []string{"Speaker 1"}},
		{name: "short gaps keep speaker",
			times: []int64{0, 500, 1000}, want: []string{"Speaker 1", "Speaker 1", "Speaker 1"}},
		{name: "toggle on long gap",
			times: []int64{0, 500, 3000}, want: []string{"Speaker 1", "Speaker 1", "Speaker 2"}},
		{name: "gap exactly at threshold keeps speaker",
			times: []int64{0, 2000}, want: []string{"Speaker 1", "Speaker 1"}},
		{name: "toggle back",
			times: []int64{0, 3000, 6000}, want: []string{"Speaker 1", "Speaker 2", "Speaker 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(2 * time.Second)
			for i, at := range tt.times {
				if got := d.Label(at); got != tt.want[i] {
					t.Errorf("Label(%d) = %s, want %s", at, got, tt.want[i])
				}
			}
		})
	}
}

func TestDetector_Reset(t *testing.T) {
	times := []int64{0, 500, 3000, 3500, 7000}
	d := New(0)
	var first []string
	for _, at := range times {
		first = append(first, d.Label(at))
	}
	d.Reset()
	for i, at := range times {
		if got := d.Label(at); got != first[i] {
			t.Errorf("after Reset() Label(%d) = %s, want %s", at, got, first[i])
		}
	}
}

func TestDetector_HistoryBounded(t *testing.T) {
	d := New(0)
	for i := 0; i < historyCap+15; i++ {
		d.Label(int64(i * 100))
	}
	if len(d.history) != historyCap {
		t.Errorf("history length = %d, want %d", len(d.history), historyCap)
	}
	// oldest entries evicted first
	if d.history[0].at != int64(15*100) {
		t.Errorf("oldest history entry at = %d, want %d", d.history[0].at, 15*100)
	}
}
