// Package session holds per-call state and the process-wide call registry.
package session

import (
	"strings"
	"sync"
)

// Speaker identifies who produced a transcript turn.
type Speaker string

const (
	SpeakerUser  Speaker = "User"
	SpeakerAgent Speaker = "Agent"
)

// Turn is one finalized utterance in a call's transcript.
type Turn struct {
	Speaker Speaker
	Text    string
}

// Session is the per-call state. One relay owns it at a time; the carrier and
// AI read loops of that relay may touch it concurrently, hence the lock.
type Session struct {
	// CallSID is the carrier-issued call identifier (or a generated
	// fallback) and the registry key. Immutable.
	CallSID string
	// CallerNumber is the caller-supplied phone number or "Unknown".
	// Set at call accept, immutable thereafter.
	CallerNumber string

	mu        sync.Mutex
	streamSID string
	greeting  string
	turns     []Turn
}

// New constructs a session for an accepted call.
func New(callSID, callerNumber, greeting string) *Session {
	return &Session{
		CallSID:      callSID,
		CallerNumber: callerNumber,
		greeting:     greeting,
	}
}

// BindStream records the media stream handle. Only the first bind wins; the
// carrier sends the handle exactly once at stream start, so a second bind
// indicates a replayed or misrouted start event and is ignored.
func (s *Session) BindStream(streamSID string) {
	s.mu.Lock()
	if s.streamSID == "" {
		s.streamSID = streamSID
	}
	s.mu.Unlock()
}

// StreamSID returns the bound media stream handle, or "" before stream start.
func (s *Session) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// SetGreeting stores the personalized first message if none is present yet.
// The start event may carry a greeting resolved at call accept; an already
// stored one is kept.
func (s *Session) SetGreeting(text string) {
	s.mu.Lock()
	if s.greeting == "" {
		s.greeting = text
	}
	s.mu.Unlock()
}

// TakeGreeting returns the pending greeting and clears it, so the first
// conversational turn is injected at most once.
func (s *Session) TakeGreeting() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.greeting
	s.greeting = ""
	return g
}

// AppendTurn appends one finalized turn. Turns are ordered by arrival, which
// may differ from utterance order; the transcript is informational.
func (s *Session) AppendTurn(sp Speaker, text string) {
	s.mu.Lock()
	s.turns = append(s.turns, Turn{Speaker: sp, Text: text})
	s.mu.Unlock()
}

// Turns returns a snapshot of the transcript.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// RenderTranscript formats the transcript in the "Speaker: text" form the
// delivery webhook expects.
func (s *Session) RenderTranscript() string {
	var b strings.Builder
	for _, t := range s.Turns() {
		b.WriteString(string(t.Speaker))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}
