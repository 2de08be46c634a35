package realtime

import (
	"encoding/json"
	"fmt"
)

// Event is one decoded message from the AI realtime channel. The decode
// happens once at the channel boundary; consumers switch on the concrete
// type instead of re-inspecting type strings.
type Event interface {
	isEvent()
}

// SessionCreated signals the channel is ready for configuration.
type SessionCreated struct{}

// SessionUpdated acknowledges a session configuration.
type SessionUpdated struct{}

// AudioDelta carries one base64 chunk of synthesized response audio.
type AudioDelta struct {
	Delta string
}

// FunctionCallDone carries a completed tool invocation.
type FunctionCallDone struct {
	Name      string
	Arguments string
	CallID    string
}

// ResponseDone marks the end of a generation turn. Transcript is empty when
// the response payload carried no textual component.
type ResponseDone struct {
	Transcript string
}

// UserTranscript carries a finalized transcription of caller audio.
type UserTranscript struct {
	Transcript string
}

// ServerError is an error reported by the AI service on the open channel.
type ServerError struct {
	Message string
}

// Info covers the message kinds that are informational only.
type Info struct {
	Type string
}

func (SessionCreated) isEvent()   {}
func (SessionUpdated) isEvent()   {}
func (AudioDelta) isEvent()       {}
func (FunctionCallDone) isEvent() {}
func (ResponseDone) isEvent()     {}
func (UserTranscript) isEvent()   {}
func (ServerError) isEvent()      {}
func (Info) isEvent()             {}

type envelope struct {
	Type string `json:"type"`
}

type audioDeltaWire struct {
	Delta string `json:"delta"`
}

type functionCallWire struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id"`
}

type responseDoneWire struct {
	Response struct {
		Output []struct {
			Content []struct {
				Transcript string `json:"transcript"`
			} `json:"content"`
		} `json:"output"`
	} `json:"response"`
}

type userTranscriptWire struct {
	Transcript string `json:"transcript"`
}

type serverErrorWire struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// decodeEvent maps one raw frame to its event variant.
func decodeEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	switch env.Type {
	case "session.created":
		return SessionCreated{}, nil
	case "session.updated":
		return SessionUpdated{}, nil
	case "response.audio.delta":
		var w audioDeltaWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode audio delta: %w", err)
		}
		return AudioDelta{Delta: w.Delta}, nil
	case "response.function_call_arguments.done":
		var w functionCallWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode function call: %w", err)
		}
		return FunctionCallDone{Name: w.Name, Arguments: w.Arguments, CallID: w.CallID}, nil
	case "response.done":
		var w responseDoneWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode response done: %w", err)
		}
		return ResponseDone{Transcript: firstTranscript(w)}, nil
	case "conversation.item.input_audio_transcription.completed":
		var w userTranscriptWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode user transcript: %w", err)
		}
		return UserTranscript{Transcript: w.Transcript}, nil
	case "error":
		var w serverErrorWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode server error: %w", err)
		}
		return ServerError{Message: w.Error.Message}, nil
	default:
		return Info{Type: env.Type}, nil
	}
}

func firstTranscript(w responseDoneWire) string {
	for _, out := range w.Response.Output {
		for _, c := range out.Content {
			if c.Transcript != "" {
				return c.Transcript
			}
		}
	}
	return ""
}
