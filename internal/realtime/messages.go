package realtime

// Outbound message shapes for the realtime channel.

// Tool describes one callable function exposed to the model.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters is the JSON-schema fragment describing a tool's arguments.
type ToolParameters struct {
	Type       string                  `json:"type"`
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required"`
}

// ToolProperty is one argument's schema.
type ToolProperty struct {
	Type string `json:"type"`
}

// SessionConfig is the per-call session configuration sent exactly once after
// the channel signals ready.
type SessionConfig struct {
	Voice        string
	Instructions string
	Temperature  float64
	Tools        []Tool
}

type sessionUpdateMsg struct {
	Type    string      `json:"type"`
	Session sessionBody `json:"session"`
}

type sessionBody struct {
	TurnDetection           turnDetection `json:"turn_detection"`
	InputAudioFormat        string        `json:"input_audio_format"`
	OutputAudioFormat       string        `json:"output_audio_format"`
	Voice                   string        `json:"voice"`
	Instructions            string        `json:"instructions"`
	Modalities              []string      `json:"modalities"`
	Temperature             float64       `json:"temperature"`
	InputAudioTranscription transcription `json:"input_audio_transcription"`
	Tools                   []Tool        `json:"tools"`
	ToolChoice              string        `json:"tool_choice"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type transcription struct {
	Model string `json:"model"`
}

type conversationItemMsg struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []itemContent `json:"content,omitempty"`
	Output  string        `json:"output,omitempty"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseCreateMsg struct {
	Type     string          `json:"type"`
	Response *responseParams `json:"response,omitempty"`
}

type responseParams struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions"`
}

type responseCancelMsg struct {
	Type string `json:"type"`
}

type audioAppendMsg struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}
