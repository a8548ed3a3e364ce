package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/Kerim-Sabic/free-cluely/internal/utils"
)

// Meetings notifies the meeting-record backend about session lifecycle.
// Only the HTTP status is consumed from its responses.
type Meetings struct {
	httpclient *http.Client
	url        string
	timeout    time.Duration
}

func NewMeetings(url string) (*Meetings, error) {
	if url == "" {
		return nil, fmt.Errorf("no url")
	}
	res := &Meetings{
		url:        strings.TrimSuffix(url, "/"),
		timeout:    time.Second * 5,
		httpclient: &http.Client{Transport: newTransport()},
	}
	goapp.Log.Info().Str("url", url).Msg("Meetings")
	return res, nil
}

type startRequest struct {
	MeetingID string    `json:"meetingId"`
	StartedAt time.Time `json:"startedAt"`
}

type endRequest struct {
	MeetingID       string    `json:"meetingId"`
	EndedAt         time.Time `json:"endedAt"`
	DurationMinutes int       `json:"durationMinutes"`
}

// Start records a meeting start.
func (c *Meetings) Start(ctx context.Context, meetingID string, startedAt time.Time) error {
	return c.post(ctx, "/api/meetings/start", startRequest{MeetingID: meetingID, StartedAt: startedAt})
}

// End records a meeting end.
func (c *Meetings) End(ctx context.Context, meetingID string, endedAt time.Time, durationMinutes int) error {
	return c.post(ctx, "/api/meetings/end", endRequest{MeetingID: meetingID, EndedAt: endedAt, DurationMinutes: durationMinutes})
}

func (c *Meetings) post(ctx context.Context, path string, payload interface{}) error {
	defer utils.MeasureTime("meetings"+path, time.Now())
	ctx, cancelF := context.WithTimeout(ctx, c.timeout)
	defer cancelF()

	b := new(bytes.Buffer)
	if err := json.NewEncoder(b).Encode(payload); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.url+path, b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(ctx)
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1000))
		_ = resp.Body.Close()
	}()
	if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
		return fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
	}
	return nil
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 5
	res.MaxIdleConns = 2
	res.MaxIdleConnsPerHost = 2
	res.IdleConnTimeout = 90 * time.Second
	return res
}
