package db

import (
	"context"
	"testing"
	"time"

	"github.com/Kerim-Sabic/free-cluely/internal/domain"
)

func TestMemoryDataManager_Transcript(t *testing.T) {
	m := NewMemoryDataManager()
	tr := &domain.Transcript{
		MeetingID:       "m-1",
		StartedAt:       time.Now(),
		DurationMinutes: 12,
		Segments: []domain.TranscriptSegment{
			{ID: "1-1", Speaker: "Speaker 1", Text: "hello", Timestamp: 100},
		},
	}
	if err := m.SaveTranscript(context.Background(), tr); err != nil {
		t.Fatalf("SaveTranscript() failed: %v", err)
	}
	got, err := m.GetTranscript(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("GetTranscript() failed: %v", err)
	}
	if got.MeetingID != "m-1" || len(got.Segments) != 1 || got.Segments[0].Text != "hello" {
		t.Errorf("GetTranscript() = %+v", got)
	}
	if _, err := m.GetTranscript(context.Background(), "missing"); err == nil {
		t.Error("GetTranscript() succeeded for missing id")
	}
}

func TestMemoryDataManager_Audio(t *testing.T) {
	m := NewMemoryDataManager()
	chunks := [][]byte{{0x01, 0x00, 0x02, 0x00}, {0x03, 0x00}}
	if err := m.SaveAudio(context.Background(), "m-1", chunks); err != nil {
		t.Fatalf("SaveAudio() failed: %v", err)
	}
	data, err := m.GetAudio(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("GetAudio() failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty wav data")
	}
	if string(data[:4]) != "RIFF" {
		t.Errorf("wav header = %q, want RIFF", data[:4])
	}
}

func TestMemoryDataManager_AudioMisaligned(t *testing.T) {
	m := NewMemoryDataManager()
	chunks := [][]byte{{0x01, 0x00, 0x02}}
	if err := m.SaveAudio(context.Background(), "m-1", chunks); err == nil {
		t.Error("SaveAudio() succeeded for misaligned pcm")
	}
	if _, err := m.GetAudio(context.Background(), "m-1"); err == nil {
		t.Error("GetAudio() returned data for failed save")
	}
}
