package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Kerim-Sabic/free-cluely/internal/api"
	"github.com/Kerim-Sabic/free-cluely/internal/db"
	"github.com/Kerim-Sabic/free-cluely/internal/speech"
)

func TestWSMeetingHandler_MeetingFlow(t *testing.T) {
	store := db.NewMemoryDataManager()
	handler := NewWSMeetingHandler(WSMeetingConfig{
		Provider: speech.NewSimProvider(10 * time.Millisecond),
		Store:    store,
		Options:  speech.Options{Language: "en-US"},
		Diarize:  true,
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer ws.Close()
		_ = handler.HandleConnection(context.Background(), ws)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(api.ClientEvent{Event: api.EventStartMeeting}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var meetingID string
	var segments, translations int
	deadline := time.Now().Add(3 * time.Second)
	stopped := false
	for !stopped {
		_ = conn.SetReadDeadline(deadline)
		var ev api.ServerEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		switch ev.Event {
		case api.EventMeetingStarted:
			meetingID = ev.MeetingID
		case api.EventTranslation:
			translations++
		case api.EventSegment:
			segments++
			if ev.Segment == nil || ev.Segment.Text == "" || ev.Segment.Speaker == "" {
				t.Errorf("bad segment event: %+v", ev)
			}
			if segments == 2 {
				if err := conn.WriteJSON(api.ClientEvent{Event: api.EventStopMeeting}); err != nil {
					t.Fatalf("write stop failed: %v", err)
				}
			}
		case api.EventMeetingStopped:
			stopped = true
		}
	}
	if meetingID == "" {
		t.Fatal("no meeting id received")
	}
	if segments < 2 {
		t.Fatalf("got %d segments, want at least 2", segments)
	}
	// no relay configured, the meeting runs without translation
	if translations != 0 {
		t.Errorf("got %d translation events with no relay", translations)
	}

	tr, err := store.GetTranscript(context.Background(), meetingID)
	if err != nil {
		t.Fatalf("transcript not persisted: %v", err)
	}
	if len(tr.Segments) < 2 {
		t.Errorf("persisted %d segments, want at least 2", len(tr.Segments))
	}
}
