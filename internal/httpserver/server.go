// Package httpserver assembles the HTTP and websocket routes.
package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/chadiek/voice-agent/internal/config"
	"github.com/chadiek/voice-agent/internal/realtime"
	"github.com/chadiek/voice-agent/internal/relay"
	"github.com/chadiek/voice-agent/internal/session"
	"github.com/chadiek/voice-agent/internal/twilio"
	"github.com/chadiek/voice-agent/internal/webhook"
)

const dialTimeout = 10 * time.Second

// DialFunc opens the AI channel for one call.
type DialFunc func(ctx context.Context) (relay.AIChannel, error)

// Server bundles the router and the per-call dependencies.
type Server struct {
	Echo *echo.Echo

	cfg      config.Config
	log      zerolog.Logger
	registry *session.Registry
	notifier *webhook.Client
	dialAI   DialFunc
	upgrader websocket.Upgrader
}

// New constructs the server with all routes registered.
func New(cfg config.Config, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: session.NewRegistry(),
		notifier: webhook.NewClient(cfg.WebhookURL, log),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	s.dialAI = s.dialRealtime
	s.routes()
	return s
}

func (s *Server) routes() {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	voice := twilio.NewVoiceHandler(s.registry, s.notifier, s.cfg.Greeting, s.log)
	e.POST("/incoming-call", voice.HandleIncomingCall, twilio.AuthMiddleware(s.cfg.TwilioAuthToken))

	e.GET("/media-stream", s.handleMediaStream)

	s.Echo = e
}

func (s *Server) dialRealtime(ctx context.Context) (relay.AIChannel, error) {
	return realtime.Dial(ctx, realtime.Config{
		URL:    realtime.DefaultURL,
		APIKey: s.cfg.OpenAIKey,
		Model:  s.cfg.OpenAIModel,
	}, s.log)
}

// handleMediaStream upgrades the carrier connection, opens its AI channel and
// pumps frames between them until either side goes away.
func (s *Server) handleMediaStream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("media stream upgrade failed")
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(c.Request().Context(), dialTimeout)
	ai, err := s.dialAI(ctx)
	cancel()
	if err != nil {
		s.log.Error().Err(err).Msg("ai channel dial failed")
		return nil
	}

	var writeMu sync.Mutex
	write := func(data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	r := relay.New(ai, s.notifier, s.registry, s.cfg.Tuning, relay.Config{
		Voice:        s.cfg.Voice,
		Instructions: s.cfg.Instructions,
		Temperature:  s.cfg.Temperature,
	}, write, s.log)

	go r.Run()
	go func() {
		// Unblock the carrier read loop when the AI side winds the call down.
		<-r.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.Close("carrier connection closed")
			return nil
		}
		ev, err := twilio.DecodeStreamEvent(data)
		if err != nil {
			s.log.Debug().Err(err).Msg("unparseable carrier frame")
			continue
		}
		r.HandleStreamEvent(ev)
	}
}
