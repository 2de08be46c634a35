// Package webhook talks to the external automation endpoint that resolves
// greetings, receives transcripts, answers questions, and books appointments.
// The endpoint multiplexes all four behaviors over one POST interface keyed
// by a route field.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Route values understood by the automation endpoint.
const (
	RouteGreeting   = "1" // data1: caller number
	RouteTranscript = "2" // data1: caller number, data2: transcript text
	RouteQuestion   = "3" // data1: question, data2: thread id
	RouteBooking    = "4" // data1: caller number, data2: {date, service}
)

// Payload is the tagged request body.
type Payload struct {
	Route string `json:"route"`
	Data1 string `json:"data1"`
	Data2 any    `json:"data2"`
}

// Response is the normalized endpoint reply. Plain-text bodies are a valid
// fallback and land in Message verbatim.
type Response struct {
	Message string
	Thread  string
}

// wire covers both reply shapes the endpoint produces.
type wire struct {
	Message      string `json:"message"`
	FirstMessage string `json:"firstMessage"`
	Thread       string `json:"thread"`
}

// Client posts payloads to the automation endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient returns a client with a bounded request timeout.
func NewClient(url string, log zerolog.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "webhook").Logger(),
	}
}

// Send posts one payload and normalizes the reply.
func (c *Client) Send(ctx context.Context, p Payload) (Response, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Response{}, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().Str("route", p.Route).Msg("sending webhook request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		// plain text is a valid reply: the whole body is the message
		return Response{Message: strings.TrimSpace(string(raw))}, nil
	}
	msg := w.Message
	if msg == "" {
		msg = w.FirstMessage
	}
	if msg == "" {
		// JSON without a recognized field; fall back to the raw body
		msg = strings.TrimSpace(string(raw))
	}
	return Response{Message: msg, Thread: w.Thread}, nil
}
