// Package realtime is the client side of the AI realtime channel: one
// authenticated duplex websocket per call carrying session configuration,
// caller audio, and the model's audio/text/function events.
package realtime

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultURL is the production realtime endpoint; the model is passed as a
// query parameter.
const DefaultURL = "wss://api.openai.com/v1/realtime"

// Config carries what Dial needs.
type Config struct {
	// URL is the endpoint base; DefaultURL when empty. http(s) schemes are
	// rewritten to ws(s) so tests can point at httptest servers.
	URL    string
	APIKey string
	Model  string
}

// Client is one live realtime connection. Sends are serialized internally;
// events are consumed from the Events channel, which closes when the
// connection dies.
type Client struct {
	conn   *websocket.Conn
	events chan Event
	log    zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects and authenticates the realtime channel and starts the read
// loop. The returned client is ready to send immediately; configuration
// should wait for the SessionCreated event.
func Dial(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("realtime: API key is empty")
	}
	base := cfg.URL
	if base == "" {
		base = DefaultURL
	}
	base = strings.Replace(base, "http://", "ws://", 1)
	base = strings.Replace(base, "https://", "wss://", 1)
	url := fmt.Sprintf("%s?model=%s", base, cfg.Model)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
		log:    log.With().Str("component", "realtime").Logger(),
	}
	go c.readLoop()
	return c, nil
}

// Events returns the decoded inbound event stream. Closed on disconnect.
func (c *Client) Events() <-chan Event { return c.events }

// UpdateSession sends the session configuration: codec parameters fixed to
// the carrier's G.711 µ-law on both paths, server-side turn detection, and
// the caller-configurable voice, persona, temperature, and tools.
func (c *Client) UpdateSession(cfg SessionConfig) error {
	return c.send(sessionUpdateMsg{
		Type: "session.update",
		Session: sessionBody{
			TurnDetection:           turnDetection{Type: "server_vad"},
			InputAudioFormat:        "g711_ulaw",
			OutputAudioFormat:       "g711_ulaw",
			Voice:                   cfg.Voice,
			Instructions:            cfg.Instructions,
			Modalities:              []string{"text", "audio"},
			Temperature:             cfg.Temperature,
			InputAudioTranscription: transcription{Model: "whisper-1"},
			Tools:                   cfg.Tools,
			ToolChoice:              "auto",
		},
	})
}

// CreateUserMessage injects a user text turn into the conversation.
func (c *Client) CreateUserMessage(text string) error {
	return c.send(conversationItemMsg{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type:    "message",
			Role:    "user",
			Content: []itemContent{{Type: "input_text", Text: text}},
		},
	})
}

// CreateFunctionOutput injects a tool invocation's result.
func (c *Client) CreateFunctionOutput(output string) error {
	return c.send(conversationItemMsg{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type:   "function_call_output",
			Role:   "system",
			Output: output,
		},
	})
}

// CreateResponse triggers generation, optionally with ad-hoc instructions
// for this one response.
func (c *Client) CreateResponse(instructions string) error {
	msg := responseCreateMsg{Type: "response.create"}
	if instructions != "" {
		msg.Response = &responseParams{
			Modalities:   []string{"text", "audio"},
			Instructions: instructions,
		}
	}
	return c.send(msg)
}

// CancelResponse interrupts the in-progress generation. The connection
// stays open; the next caller turn starts a fresh response.
func (c *Client) CancelResponse() error {
	return c.send(responseCancelMsg{Type: "response.cancel"})
}

// AppendAudio forwards one base64 carrier frame verbatim.
func (c *Client) AppendAudio(payload string) error {
	return c.send(audioAppendMsg{Type: "input_audio_buffer.append", Audio: payload})
}

// Close tears the connection down. Safe to call more than once and
// concurrently with in-flight sends.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *Client) send(msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("realtime send: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("realtime read loop ended")
			}
			return
		}
		ev, err := decodeEvent(raw)
		if err != nil {
			// one bad frame never ends the call
			c.log.Warn().Err(err).Msg("dropping malformed realtime message")
			continue
		}
		c.events <- ev
	}
}
