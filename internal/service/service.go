package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/gorilla/websocket"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Kerim-Sabic/free-cluely/internal/domain"
	"github.com/Kerim-Sabic/free-cluely/internal/translate"
)

// TranscriptReader serves persisted meeting records.
type TranscriptReader interface {
	GetTranscript(ctx context.Context, meetingID string) (*domain.Transcript, error)
	GetAudio(ctx context.Context, meetingID string) ([]byte, error)
}

// LanguageLister exposes the translation backend's language list.
type LanguageLister interface {
	Languages(ctx context.Context) []translate.Language
}

// Data keeps data required for service work
type Data struct {
	Port             int
	WSHandlerMeeting *WSMeetingHandler
	Transcripts      TranscriptReader
	Languages        LanguageLister
	Ctx              context.Context
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) (<-chan struct{}, error) {
	goapp.Log.Info().Msgf("Starting meeting wrapper service at %d", data.Port)
	if err := validate(data); err != nil {
		return nil, err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 10 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	res := make(chan struct{}, 1)
	go func() {
		defer close(res)
		if err := gracehttp.Serve(e.Server); err != nil {
			goapp.Log.Error().Err(err).Msg("can't start web server")
		}
		goapp.Log.Info().Msg("exit http routine")
	}()
	return res, nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("meeting_wrapper", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.GET("/live", live(data))
	e.GET("/client/ws/meeting", subscribe(data, data.WSHandlerMeeting))
	e.GET("/meetings/:id/transcript", transcript(data))
	e.GET("/meetings/:id/audio", audio(data))
	e.GET("/languages", languages(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func transcript(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		tr, err := data.Transcripts.GetTranscript(c.Request().Context(), c.Param("id"))
		if err != nil {
			goapp.Log.Error().Err(err).Str("id", c.Param("id")).Msg("can't get transcript")
			return echo.NewHTTPError(http.StatusNotFound, "no transcript")
		}
		return c.JSON(http.StatusOK, tr)
	}
}

func audio(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		wav, err := data.Transcripts.GetAudio(c.Request().Context(), c.Param("id"))
		if err != nil {
			goapp.Log.Error().Err(err).Str("id", c.Param("id")).Msg("can't get audio")
			return echo.NewHTTPError(http.StatusNotFound, "no audio")
		}
		return c.Blob(http.StatusOK, "audio/wav", wav)
	}
}

func languages(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, data.Languages.Languages(c.Request().Context()))
	}
}

func validate(data *Data) error {
	if data.WSHandlerMeeting == nil {
		return fmt.Errorf("no WSHandlerMeeting")
	}
	if data.Transcripts == nil {
		return fmt.Errorf("no Transcripts")
	}
	if data.Languages == nil {
		return fmt.Errorf("no Languages")
	}
	return nil
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

func subscribe(data *Data, handler *WSMeetingHandler) func(echo.Context) error {
	return func(c echo.Context) error {
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return err
		}
		defer ws.Close()

		return handler.HandleConnection(data.Ctx, ws)
	}
}
