package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/labstack/gommon/color"

	"github.com/Kerim-Sabic/free-cluely/internal/clients"
	"github.com/Kerim-Sabic/free-cluely/internal/db"
	"github.com/Kerim-Sabic/free-cluely/internal/service"
	"github.com/Kerim-Sabic/free-cluely/internal/session"
	"github.com/Kerim-Sabic/free-cluely/internal/speech"
	"github.com/Kerim-Sabic/free-cluely/internal/translate"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var provider speech.Provider
	if cfg.GetBool("speech.simulate") {
		provider = speech.NewSimProvider(cfg.GetDuration("speech.simulateInterval"))
	} else {
		provider = speech.NewWSProvider(cfg.GetString("speech.url"))
	}

	// translation is an optional overlay, no backend means transcripts only
	var relay *translate.Relay
	if url := cfg.GetString("translate.url"); url != "" {
		r, err := translate.NewRelay(url, cfg.GetString("translate.key"),
			cfg.GetString("translate.source"), cfg.GetString("translate.target"))
		if err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't init translator")
		}
		relay = r
	} else {
		goapp.Log.Info().Msg("No translate.url provided, translation is off")
	}

	var recorder session.Recorder
	if url := cfg.GetString("meetings.url"); url != "" {
		r, err := clients.NewMeetings(url)
		if err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't init meetings client")
		}
		recorder = r
	}

	store, transcripts, err := newDataManager(cfg.GetString("redis.url"), cfg.GetString("encryption.key"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init data manager")
	}

	wsCfg := service.WSMeetingConfig{
		Provider: provider,
		Recorder: recorder,
		Store:    store,
		Options: speech.Options{
			Continuous:     true,
			InterimResults: cfg.GetBool("speech.interim"),
			Language:       cfg.GetString("speech.lang"),
		},
		Diarize:   cfg.GetBool("diarize.enabled"),
		Threshold: cfg.GetDuration("diarize.threshold"),
		KeepAudio: cfg.GetBool("audio.keep"),
	}

	data := &service.Data{}
	data.Ctx = ctx
	data.Port = cfg.GetInt("port")
	data.Transcripts = transcripts
	data.Languages = translate.StaticLister(translate.DefaultLanguages())
	if relay != nil {
		wsCfg.Relay = relay
		data.Languages = relay
	}
	data.WSHandlerMeeting = service.NewWSMeetingHandler(wsCfg)

	doneCh, err := service.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}

	/////////////////////// Waiting for terminate
	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

// newDataManager picks Redis when configured, the in-memory mirror
// otherwise. Both serve persistence and the transcript read side.
func newDataManager(redisURL, encryptionKey string) (session.Store, service.TranscriptReader, error) {
	if redisURL != "" {
		m, err := db.NewRedisDataManager(redisURL, encryptionKey)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	}
	m := db.NewMemoryDataManager()
	return m, m, nil
}

var (
	version = "DEV"
)

func printBanner() {
	banner :=
		`
    MEETING TRANSCRIPTION WRAPPER v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/Kerim-Sabic/free-cluely"))
}
