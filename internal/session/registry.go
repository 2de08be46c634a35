package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry maps call identifiers to live sessions. It is the only state
// shared across calls: inserts happen at call accept, deletes at teardown,
// and no cross-session data flows through it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// FallbackID generates a session identifier for calls where the carrier
// supplied none.
func FallbackID() string {
	return "session_" + uuid.NewString()
}

// Put registers a session under its call SID, replacing any stale entry.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	r.sessions[s.CallSID] = s
	r.mu.Unlock()
}

// Get returns the session for a call SID, or nil.
func (r *Registry) Get(callSID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[callSID]
}

// Resolve returns the session for a call SID, creating a bare one when the
// media stream connects before (or without) the call-accept handler. The
// created session has an unknown caller and no greeting.
func (r *Registry) Resolve(callSID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[callSID]; ok {
		return s
	}
	s := New(callSID, "Unknown", "")
	r.sessions[callSID] = s
	return s
}

// Remove deletes the session for a call SID. Removing an absent SID is a
// no-op.
func (r *Registry) Remove(callSID string) {
	r.mu.Lock()
	delete(r.sessions, callSID)
	r.mu.Unlock()
}

// Len reports the number of active calls.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
