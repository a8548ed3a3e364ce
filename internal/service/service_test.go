package service

import (
	"context"
	"testing"

	"github.com/Kerim-Sabic/free-cluely/internal/domain"
	"github.com/Kerim-Sabic/free-cluely/internal/translate"
)

type fakeReader struct{}

func (fakeReader) GetTranscript(ctx context.Context, meetingID string) (*domain.Transcript, error) {
	return &domain.Transcript{MeetingID: meetingID}, nil
}

func (fakeReader) GetAudio(ctx context.Context, meetingID string) ([]byte, error) {
	return nil, nil
}

type fakeLister struct{}

func (fakeLister) Languages(ctx context.Context) []translate.Language { return nil }

func Test_validate(t *testing.T) {
	full := func() *Data {
		return &Data{
			WSHandlerMeeting: &WSMeetingHandler{},
			Transcripts:      fakeReader{},
			Languages:        fakeLister{},
		}
	}
	tests := []struct {
		name    string
		alter   func(d *Data)
		wantErr bool
	}{
		{name: "ok", alter: func(d *Data) {}},
		{name: "no ws handler", alter: func(d *Data) { d.WSHandlerMeeting = nil }, wantErr: true},
		{name: "no transcripts", alter: func(d *Data) { d.Transcripts = nil }, wantErr: true},
		{name: "no languages", alter: func(d *Data) { d.Languages = nil }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := full()
			tt.alter(d)
			err := validate(d)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
