// Package twilio covers the carrier-facing surface: the media-stream wire
// model, the call-accept TwiML handler, and request signature validation.
package twilio

import (
	"encoding/json"
	"fmt"
)

// StreamEvent is one decoded message from the carrier media stream.
type StreamEvent interface {
	isStreamEvent()
}

// StartEvent opens a media stream and carries the stream handle plus the
// custom parameters embedded in the call-routing response.
type StartEvent struct {
	StreamSID    string
	CallSID      string
	FirstMessage string
	CallerNumber string
}

// MediaEvent carries one base64-encoded µ-law audio frame.
type MediaEvent struct {
	Payload string
}

// ClearEvent asks the relay to reset its speech state.
type ClearEvent struct{}

// StopEvent ends the media stream.
type StopEvent struct{}

func (StartEvent) isStreamEvent() {}
func (MediaEvent) isStreamEvent() {}
func (ClearEvent) isStreamEvent() {}
func (StopEvent) isStreamEvent()  {}

type streamEnvelope struct {
	Event string `json:"event"`
	Start *struct {
		StreamSID        string            `json:"streamSid"`
		CallSID          string            `json:"callSid"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// DecodeStreamEvent maps one raw carrier frame to its variant. Unknown event
// kinds are an error; the caller logs and drops them.
func DecodeStreamEvent(raw []byte) (StreamEvent, error) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode stream event: %w", err)
	}
	switch env.Event {
	case "start":
		ev := StartEvent{}
		if env.Start != nil {
			ev.StreamSID = env.Start.StreamSID
			ev.CallSID = env.Start.CallSID
			ev.FirstMessage = env.Start.CustomParameters["firstMessage"]
			ev.CallerNumber = env.Start.CustomParameters["callerNumber"]
		}
		return ev, nil
	case "media":
		if env.Media == nil {
			return nil, fmt.Errorf("media event without media body")
		}
		return MediaEvent{Payload: env.Media.Payload}, nil
	case "clear":
		return ClearEvent{}, nil
	case "stop":
		return StopEvent{}, nil
	default:
		return nil, fmt.Errorf("unknown stream event %q", env.Event)
	}
}

type outboundMedia struct {
	Event     string       `json:"event"`
	StreamSID string       `json:"streamSid"`
	Media     mediaPayload `json:"media"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

// MarshalMedia frames one outbound audio payload, tagged with the stream
// handle so the carrier routes it to the right call leg.
func MarshalMedia(streamSID, payload string) ([]byte, error) {
	return json.Marshal(outboundMedia{
		Event:     "media",
		StreamSID: streamSID,
		Media:     mediaPayload{Payload: payload},
	})
}
