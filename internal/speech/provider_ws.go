package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/gorilla/websocket"

	"github.com/Kerim-Sabic/free-cluely/internal/api"
)

// Recognition backend status codes.
const (
	statusOK       = 0
	statusNoSpeech = 1
	statusAborted  = 2
	statusNotAvail = 9
)

// WSProvider opens capture streams against a streaming recognition
// backend over WebSocket.
type WSProvider struct {
	backendURL string
}

func NewWSProvider(backendURL string) *WSProvider {
	res := &WSProvider{backendURL: backendURL}
	goapp.Log.Info().Str("be url", backendURL).Msg("speech provider")
	return res
}

func (p *WSProvider) Supported() bool {
	return p.backendURL != ""
}

func (p *WSProvider) Open(ctx context.Context, opts Options) (Stream, error) {
	if !p.Supported() {
		return nil, ErrNotSupported
	}
	q := url.Values{}
	if opts.Language != "" {
		q.Set("lang", opts.Language)
	}
	if opts.InterimResults {
		q.Set("interim", "true")
	}
	wsURL := p.backendURL
	if enc := q.Encode(); enc != "" {
		wsURL = fmt.Sprintf("%s?%s", wsURL, enc)
	}
	c, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("can't dial to URL: %w", err)
	}
	s := &wsStream{conn: c, events: make(chan Event)}
	go s.readLoop(ctx)
	return s, nil
}

type wsStream struct {
	conn      *websocket.Conn
	events    chan Event
	closeOnce sync.Once
}

func (s *wsStream) Events() <-chan Event {
	return s.events
}

func (s *wsStream) Send(audio []byte) error {
	return s.conn.WriteMessage(websocket.BinaryMessage, audio)
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func (s *wsStream) readLoop(ctx context.Context) {
	defer close(s.events)
	defer goapp.Log.Debug().Msg("speech read routine ended")
	for {
		mType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) ||
				errors.Is(err, net.ErrClosed) {
				goapp.Log.Info().Msg("speech connection closed")
			} else {
				goapp.Log.Error().Err(err).Send()
			}
			s.emit(ctx, Event{Kind: KindEnd})
			return
		}
		if mType != websocket.TextMessage {
			continue
		}
		var fr api.FullResult
		if err := json.Unmarshal(message, &fr); err != nil {
			goapp.Log.Error().Err(err).Msg("decode err")
			continue
		}
		if !s.emit(ctx, toEvent(&fr)) {
			return
		}
	}
}

func (s *wsStream) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// toEvent maps one backend message to the bounded event vocabulary. The
// highest-likelihood hypothesis wins.
func toEvent(fr *api.FullResult) Event {
	if fr.Status != statusOK {
		return Event{Kind: KindError, Code: statusCode(fr.Status)}
	}
	best := -1
	for i, h := range fr.Result.Hypotheses {
		if best < 0 || h.Likelihood > fr.Result.Hypotheses[best].Likelihood {
			best = i
		}
	}
	if best < 0 {
		return Event{Kind: KindResult, Final: fr.Result.Final}
	}
	h := fr.Result.Hypotheses[best]
	return Event{
		Kind:          KindResult,
		Transcript:    h.Transcript,
		Confidence:    h.Likelihood,
		HasConfidence: true,
		Final:         fr.Result.Final,
	}
}

func statusCode(status int) string {
	switch status {
	case statusNoSpeech:
		return api.ErrCodeNoSpeech
	case statusAborted:
		return api.ErrCodeAborted
	case statusNotAvail:
		return api.ErrCodeNetwork
	}
	return fmt.Sprintf("status-%d", status)
}
