package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/gorilla/websocket"

	"github.com/Kerim-Sabic/free-cluely/internal/api"
	"github.com/Kerim-Sabic/free-cluely/internal/diarize"
	"github.com/Kerim-Sabic/free-cluely/internal/session"
	"github.com/Kerim-Sabic/free-cluely/internal/speech"
)

// WSMeetingHandler owns one meeting client connection: binary frames are
// audio for the recognizer, text frames are client events. Each
// connection gets its own detector, assembler and session controller;
// the relay, recorder and store are process-scoped and shared.
type WSMeetingHandler struct {
	provider  speech.Provider
	relay     session.Translator
	recorder  session.Recorder
	store     session.Store
	opts      speech.Options
	diarize   bool
	threshold time.Duration
	keepAudio bool
}

type WSMeetingConfig struct {
	Provider  speech.Provider
	Relay     session.Translator
	Recorder  session.Recorder
	Store     session.Store
	Options   speech.Options
	Diarize   bool
	Threshold time.Duration
	KeepAudio bool
}

func NewWSMeetingHandler(cfg WSMeetingConfig) *WSMeetingHandler {
	res := &WSMeetingHandler{
		provider:  cfg.Provider,
		relay:     cfg.Relay,
		recorder:  cfg.Recorder,
		store:     cfg.Store,
		opts:      cfg.Options,
		diarize:   cfg.Diarize,
		threshold: cfg.Threshold,
		keepAudio: cfg.KeepAudio,
	}
	goapp.Log.Info().Bool("diarize", cfg.Diarize).Str("lang", cfg.Options.Language).Msg("meeting ws handler")
	return res
}

// HandleConnection loops until the connection closes. It stops any
// active meeting on the way out.
func (kp *WSMeetingHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	var writeLock sync.Mutex
	writeFunc := func(msg *api.ServerEvent) error {
		writeLock.Lock()
		defer writeLock.Unlock()
		return conn.WriteJSON(msg)
	}

	ctrl, err := session.NewController(session.Config{
		Relay:     kp.relay,
		Recorder:  kp.recorder,
		Store:     kp.store,
		Write:     writeFunc,
		KeepAudio: kp.keepAudio,
		Translate: kp.relay != nil,
	})
	if err != nil {
		return err
	}
	asm, err := speech.NewAssembler(speech.AssemblerConfig{
		Provider:  kp.provider,
		Detector:  diarize.New(kp.threshold),
		Options:   kp.opts,
		Diarize:   kp.diarize,
		OnSegment: ctrl.HandleSegment,
		OnError:   ctrl.HandleError,
	})
	if err != nil {
		return err
	}
	ctrl.Bind(asm)

	closeCtx, cf := context.WithCancel(ctx)
	defer cf()
	readCh := readWebSocket(closeCtx, conn)
loop:
	for {
		select {
		case <-closeCtx.Done():
			goapp.Log.Info().Msg("context canceled")
			break loop
		case d, ok := <-readCh:
			if !ok {
				goapp.Log.Info().Msg("channel closed")
				break loop
			}
			if d.t == websocket.BinaryMessage {
				ctrl.HandleAudio(d.msg)
				continue
			}
			if d.t != websocket.TextMessage {
				continue
			}
			goapp.Log.Trace().Str("msg", string(d.msg)).Send()
			var ev api.ClientEvent
			if err := json.Unmarshal(d.msg, &ev); err != nil {
				goapp.Log.Error().Err(err).Msg("decode err")
				continue
			}
			kp.dispatch(closeCtx, ctrl, &ev)
		}
	}
	ctrl.Stop(ctx)
	goapp.Log.Info().Msg("handleConnection finish")
	return nil
}

func (kp *WSMeetingHandler) dispatch(ctx context.Context, ctrl *session.Controller, ev *api.ClientEvent) {
	switch ev.Event {
	case api.EventStartMeeting:
		ctrl.Start(ctx)
	case api.EventStopMeeting:
		ctrl.Stop(ctx)
	case api.EventSetLanguage:
		ctrl.SetTargetLanguage(ev.Language)
	default:
		goapp.Log.Warn().Str("event", ev.Event).Msg("unknown client event")
	}
}

type data struct {
	t   int
	msg []byte
}

func readWebSocket(ctx context.Context, in *websocket.Conn) <-chan data {
	resCh := make(chan data)
	go func() {
		defer close(resCh)
		defer goapp.Log.Debug().Msg("read routine ended")
		for {
			mType, message, err := in.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) ||
					errors.Is(err, net.ErrClosed) {
					goapp.Log.Info().Msg("connection closed")
					return
				}
				goapp.Log.Error().Err(err).Send()
				return
			}
			select {
			case resCh <- data{t: mType, msg: message}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return resCh
}
