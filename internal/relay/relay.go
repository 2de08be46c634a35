// Package relay bridges one carrier media stream with one AI realtime channel.
package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chadiek/voice-agent/internal/audio"
	"github.com/chadiek/voice-agent/internal/realtime"
	"github.com/chadiek/voice-agent/internal/session"
	"github.com/chadiek/voice-agent/internal/speech"
	"github.com/chadiek/voice-agent/internal/twilio"
	"github.com/chadiek/voice-agent/internal/webhook"
)

const (
	toolTimeout       = 15 * time.Second
	transcriptTimeout = 10 * time.Second
)

// AIChannel is the realtime connection the relay drives. *realtime.Client
// satisfies it.
type AIChannel interface {
	Events() <-chan realtime.Event
	UpdateSession(cfg realtime.SessionConfig) error
	CreateUserMessage(text string) error
	CreateFunctionOutput(output string) error
	CreateResponse(instructions string) error
	CancelResponse() error
	AppendAudio(payload string) error
	Close() error
}

// Notifier delivers automation webhook calls. *webhook.Client satisfies it.
type Notifier interface {
	Send(ctx context.Context, p webhook.Payload) (webhook.Response, error)
}

// Config carries the per-call session parameters the relay applies once the
// AI channel reports ready.
type Config struct {
	Voice        string
	Instructions string
	Temperature  float64
}

// Relay owns one call: the carrier websocket feeds it stream events, the AI
// channel feeds it realtime events, and it arbitrates between them.
type Relay struct {
	ai       AIChannel
	notifier Notifier
	registry *session.Registry
	write    func(data []byte) error
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	sess    *session.Session
	caller  string
	thread  string
	ready   bool
	flushed bool
	est     *audio.Estimator
	det     *speech.Detector
	arb     *speech.Arbiter

	closeOnce sync.Once
	done      chan struct{}
}

// New builds a relay for a single call. write sends a raw frame back to the
// carrier websocket.
func New(ai AIChannel, notifier Notifier, registry *session.Registry, tuning speech.Tuning, cfg Config, write func([]byte) error, log zerolog.Logger) *Relay {
	return &Relay{
		ai:       ai,
		notifier: notifier,
		registry: registry,
		write:    write,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		est:      audio.NewEstimator(),
		det:      speech.NewDetector(tuning),
		arb:      speech.NewArbiter(tuning),
		done:     make(chan struct{}),
	}
}

// Run consumes AI events until the channel closes. Call it on its own
// goroutine; the carrier read loop drives HandleStreamEvent concurrently.
func (r *Relay) Run() {
	for ev := range r.ai.Events() {
		switch e := ev.(type) {
		case realtime.SessionCreated:
			r.configureSession()
		case realtime.SessionUpdated:
			r.log.Debug().Msg("ai session configured")
		case realtime.AudioDelta:
			r.forwardAgentAudio(e)
		case realtime.UserTranscript:
			r.appendTurn(session.SpeakerUser, strings.TrimSpace(e.Transcript))
		case realtime.ResponseDone:
			r.finishResponse(e)
		case realtime.FunctionCallDone:
			go r.handleTool(e)
		case realtime.ServerError:
			r.log.Error().Str("message", e.Message).Msg("ai channel error")
		case realtime.Info:
			r.log.Debug().Str("type", e.Type).Msg("ai event")
		}
	}
	r.Close("ai channel closed")
}

// HandleStreamEvent processes one decoded carrier frame.
func (r *Relay) HandleStreamEvent(ev twilio.StreamEvent) {
	switch e := ev.(type) {
	case twilio.StartEvent:
		r.handleStart(e)
	case twilio.MediaEvent:
		r.handleMedia(e)
	case twilio.ClearEvent:
		r.resetSpeechState()
		r.log.Debug().Msg("carrier clear, speech state reset")
	case twilio.StopEvent:
		r.Close("stop event")
	}
}

// Close tears the call down. Safe to call from any goroutine and any number
// of times; only the first call acts.
func (r *Relay) Close(reason string) {
	r.closeOnce.Do(func() {
		close(r.done)
		r.log.Info().Str("reason", reason).Msg("call ended")
		if err := r.ai.Close(); err != nil {
			r.log.Debug().Err(err).Msg("ai channel close")
		}
		r.deliverTranscript()
		r.mu.Lock()
		sess := r.sess
		r.mu.Unlock()
		if sess != nil {
			r.registry.Remove(sess.CallSID)
		}
	})
}

// Done is closed when the call has been torn down.
func (r *Relay) Done() <-chan struct{} { return r.done }

func (r *Relay) handleStart(e twilio.StartEvent) {
	sess := r.registry.Resolve(e.CallSID)
	sess.BindStream(e.StreamSID)
	if e.FirstMessage != "" {
		sess.SetGreeting(e.FirstMessage)
	}

	caller := e.CallerNumber
	if caller == "" {
		caller = sess.CallerNumber
	}

	r.mu.Lock()
	r.sess = sess
	r.caller = caller
	r.mu.Unlock()

	r.log.Info().Str("call", e.CallSID).Str("stream", e.StreamSID).Msg("media stream started")
	r.tryFlushGreeting()
}

func (r *Relay) handleMedia(e twilio.MediaEvent) {
	if err := r.ai.AppendAudio(e.Payload); err != nil {
		r.log.Warn().Err(err).Msg("append audio")
	}

	frame, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		r.log.Warn().Err(err).Msg("bad media payload")
		return
	}

	now := r.now()
	r.mu.Lock()
	level, ok := r.est.Level(frame)
	if !ok {
		r.mu.Unlock()
		return
	}
	var cancel bool
	if r.det.Classify(level, now) {
		cancel = r.arb.Speech(now)
	} else {
		r.arb.Silence(now)
	}
	r.mu.Unlock()

	if cancel {
		r.log.Info().Msg("caller interrupted agent, cancelling response")
		if err := r.ai.CancelResponse(); err != nil {
			r.log.Warn().Err(err).Msg("cancel response")
		}
	}
}

// configureSession applies the session parameters and then attempts the
// greeting flush; configuration always precedes the first message.
func (r *Relay) configureSession() {
	err := r.ai.UpdateSession(realtime.SessionConfig{
		Voice:        r.cfg.Voice,
		Instructions: r.cfg.Instructions,
		Temperature:  r.cfg.Temperature,
		Tools:        toolSchemas(),
	})
	if err != nil {
		r.log.Error().Err(err).Msg("session update")
		return
	}

	r.mu.Lock()
	r.ready = true
	r.mu.Unlock()
	r.tryFlushGreeting()
}

// tryFlushGreeting sends the queued greeting exactly once, after both the AI
// channel is ready and the start event has bound the session.
func (r *Relay) tryFlushGreeting() {
	r.mu.Lock()
	if !r.ready || r.sess == nil || r.flushed {
		r.mu.Unlock()
		return
	}
	r.flushed = true
	sess := r.sess
	r.mu.Unlock()

	greeting := sess.TakeGreeting()
	if greeting == "" {
		return
	}
	if err := r.ai.CreateUserMessage(greeting); err != nil {
		r.log.Warn().Err(err).Msg("queue greeting")
		return
	}
	if err := r.ai.CreateResponse(""); err != nil {
		r.log.Warn().Err(err).Msg("trigger greeting response")
	}
}

func (r *Relay) forwardAgentAudio(e realtime.AudioDelta) {
	now := r.now()
	r.mu.Lock()
	if r.arb.Suppressing(now) {
		r.mu.Unlock()
		return
	}
	r.arb.AgentAudio(now)
	sess := r.sess
	r.mu.Unlock()

	if sess == nil {
		return
	}
	frame, err := twilio.MarshalMedia(sess.StreamSID(), e.Delta)
	if err != nil {
		r.log.Warn().Err(err).Msg("marshal media")
		return
	}
	if err := r.write(frame); err != nil {
		r.log.Warn().Err(err).Msg("write carrier frame")
	}
}

func (r *Relay) finishResponse(e realtime.ResponseDone) {
	text := e.Transcript
	if text == "" {
		text = "Agent message not found"
	}
	r.appendTurn(session.SpeakerAgent, text)

	now := r.now()
	r.mu.Lock()
	r.arb.ResponseDone(now)
	r.det.Reset()
	r.est.Reset()
	r.mu.Unlock()
}

func (r *Relay) appendTurn(sp session.Speaker, text string) {
	if text == "" {
		return
	}
	r.mu.Lock()
	sess := r.sess
	r.mu.Unlock()
	if sess == nil {
		return
	}
	sess.AppendTurn(sp, text)
}

func (r *Relay) resetSpeechState() {
	r.mu.Lock()
	r.est.Reset()
	r.det.Reset()
	r.arb.Reset()
	r.mu.Unlock()
}

// handleTool runs on its own goroutine so the audio paths keep flowing while
// the automation endpoint is in flight.
func (r *Relay) handleTool(call realtime.FunctionCallDone) {
	ctx, cancel := context.WithTimeout(context.Background(), toolTimeout)
	defer cancel()

	switch call.Name {
	case "question_and_answer":
		r.answerQuestion(ctx, call)
	case "book_medical_appointment":
		r.bookAppointment(ctx, call)
	default:
		r.log.Debug().Str("tool", call.Name).Msg("unknown tool call ignored")
	}
}

func (r *Relay) answerQuestion(ctx context.Context, call realtime.FunctionCallDone) {
	var args struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		r.log.Warn().Err(err).Msg("bad question arguments")
		r.apologize()
		return
	}

	r.mu.Lock()
	thread := r.thread
	r.mu.Unlock()

	resp, err := r.notifier.Send(ctx, webhook.Payload{
		Route: webhook.RouteQuestion,
		Data1: args.Question,
		Data2: thread,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("question lookup failed")
		r.apologize()
		return
	}
	if resp.Thread != "" {
		r.mu.Lock()
		r.thread = resp.Thread
		r.mu.Unlock()
	}

	if err := r.ai.CreateFunctionOutput(resp.Message); err != nil {
		r.log.Warn().Err(err).Msg("send function output")
		return
	}
	if err := r.ai.CreateResponse("Answer the caller's question using this information, briefly and naturally: " + resp.Message); err != nil {
		r.log.Warn().Err(err).Msg("trigger answer response")
	}
}

func (r *Relay) bookAppointment(ctx context.Context, call realtime.FunctionCallDone) {
	var args struct {
		Date    string `json:"date"`
		Service string `json:"service"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		r.log.Warn().Err(err).Msg("bad booking arguments")
		r.apologize()
		return
	}

	r.mu.Lock()
	caller := r.caller
	r.mu.Unlock()

	resp, err := r.notifier.Send(ctx, webhook.Payload{
		Route: webhook.RouteBooking,
		Data1: caller,
		Data2: map[string]string{"date": args.Date, "service": args.Service},
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("booking failed")
		r.apologize()
		return
	}

	if err := r.ai.CreateFunctionOutput(resp.Message); err != nil {
		r.log.Warn().Err(err).Msg("send function output")
		return
	}
	if err := r.ai.CreateResponse("Confirm the appointment outcome to the caller: " + resp.Message); err != nil {
		r.log.Warn().Err(err).Msg("trigger booking response")
	}
}

func (r *Relay) apologize() {
	if err := r.ai.CreateResponse("Apologize briefly and tell the caller you could not complete that request right now."); err != nil {
		r.log.Warn().Err(err).Msg("trigger apology response")
	}
}

func (r *Relay) deliverTranscript() {
	r.mu.Lock()
	sess := r.sess
	caller := r.caller
	r.mu.Unlock()
	if sess == nil {
		return
	}
	transcript := sess.RenderTranscript()
	if transcript == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), transcriptTimeout)
	defer cancel()
	_, err := r.notifier.Send(ctx, webhook.Payload{
		Route: webhook.RouteTranscript,
		Data1: caller,
		Data2: transcript,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("transcript delivery failed")
		return
	}
	r.log.Info().Str("call", sess.CallSID).Msg("transcript delivered")
}

func toolSchemas() []realtime.Tool {
	return []realtime.Tool{
		{
			Type:        "function",
			Name:        "question_and_answer",
			Description: "Answer the caller's questions about the clinic, its services and prices.",
			Parameters: realtime.ToolParameters{
				Type:       "object",
				Properties: map[string]realtime.ToolProperty{"question": {Type: "string"}},
				Required:   []string{"question"},
			},
		},
		{
			Type:        "function",
			Name:        "book_medical_appointment",
			Description: "Book an appointment for the caller once a date and a service have been agreed.",
			Parameters: realtime.ToolParameters{
				Type: "object",
				Properties: map[string]realtime.ToolProperty{
					"date":    {Type: "string"},
					"service": {Type: "string"},
				},
				Required: []string{"date", "service"},
			},
		},
	}
}
