package twilio

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go/twiml"

	"github.com/chadiek/voice-agent/internal/session"
	"github.com/chadiek/voice-agent/internal/webhook"
)

// Greeter resolves the personalized first message for a caller.
type Greeter interface {
	Send(ctx context.Context, p webhook.Payload) (webhook.Response, error)
}

// VoiceHandler answers new-call notifications with TwiML that connects the
// call to the media stream.
type VoiceHandler struct {
	registry        *session.Registry
	greeter         Greeter
	defaultGreeting string
	lookupTimeout   time.Duration
	log             zerolog.Logger
}

// NewVoiceHandler constructs the call-accept handler.
func NewVoiceHandler(reg *session.Registry, greeter Greeter, defaultGreeting string, log zerolog.Logger) *VoiceHandler {
	return &VoiceHandler{
		registry:        reg,
		greeter:         greeter,
		defaultGreeting: defaultGreeting,
		lookupTimeout:   5 * time.Second,
		log:             log.With().Str("component", "voice").Logger(),
	}
}

// HandleIncomingCall accepts a call: resolves the greeting (best effort),
// registers the session, and returns the <Connect><Stream> routing response
// with the greeting and caller identity as stream parameters.
func (h *VoiceHandler) HandleIncomingCall(c echo.Context) error {
	params := requestParams(c)

	callerNumber := params["From"]
	if callerNumber == "" {
		callerNumber = "Unknown"
	}
	callSID := params["CallSid"]
	if callSID == "" {
		callSID = session.FallbackID()
	}
	log := h.log.With().Str("call", callSID).Logger()
	log.Info().Str("caller", callerNumber).Msg("incoming call")

	greeting := h.defaultGreeting
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.lookupTimeout)
	defer cancel()
	resp, err := h.greeter.Send(ctx, webhook.Payload{
		Route: webhook.RouteGreeting,
		Data1: callerNumber,
		Data2: "empty",
	})
	switch {
	case err != nil:
		// the caller still gets the default greeting
		log.Warn().Err(err).Msg("greeting lookup failed")
	case resp.Message != "":
		greeting = resp.Message
	}

	h.registry.Put(session.New(callSID, callerNumber, greeting))

	stream := &twiml.VoiceStream{
		Url: "wss://" + streamHost(c.Request()) + "/media-stream",
		InnerElements: []twiml.Element{
			&twiml.VoiceParameter{Name: "firstMessage", Value: greeting},
			&twiml.VoiceParameter{Name: "callerNumber", Value: callerNumber},
		},
	}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}

	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		log.Error().Err(err).Msg("failed to build routing response")
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, doc)
}
