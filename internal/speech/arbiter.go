package speech

import "time"

// State is the per-call interruption state.
type State int

const (
	// StateIdle means no response audio is playing.
	StateIdle State = iota
	// StateAgentSpeaking means response audio is streaming to the caller.
	StateAgentSpeaking
	// StateUserOverlapping means the caller is talking over the agent.
	StateUserOverlapping
	// StateInterrupting means a cancellation is in flight and agent audio is
	// being suppressed.
	StateInterrupting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAgentSpeaking:
		return "agent_speaking"
	case StateUserOverlapping:
		return "user_overlapping"
	case StateInterrupting:
		return "interrupting"
	default:
		return "unknown"
	}
}

// Arbiter decides when sustained caller speech over agent audio warrants
// cancelling the in-flight response. Concurrent overlap signals collapse to a
// single cancellation, guarded by the interrupting state and its cooldown.
// Not safe for concurrent use; callers serialize through the relay's lock.
type Arbiter struct {
	tuning       Tuning
	state        State
	overlapStart time.Time
	lastSpeech   time.Time
	interruptAt  time.Time
}

// NewArbiter returns an arbiter in the idle state.
func NewArbiter(t Tuning) *Arbiter {
	return &Arbiter{tuning: t}
}

// State reports the current state after expiring a stale cooldown.
func (a *Arbiter) State(now time.Time) State {
	a.expireCooldown(now)
	return a.state
}

// AgentAudio records that a response audio chunk arrived.
func (a *Arbiter) AgentAudio(now time.Time) {
	a.expireCooldown(now)
	if a.state == StateIdle {
		a.state = StateAgentSpeaking
	}
}

// Speech records a speech-classified frame. It returns true exactly when a
// cancellation must be issued: the overlap has lasted past the threshold and
// no interruption is already in flight.
func (a *Arbiter) Speech(now time.Time) bool {
	a.expireCooldown(now)
	a.lastSpeech = now
	switch a.state {
	case StateAgentSpeaking:
		a.state = StateUserOverlapping
		a.overlapStart = now
	case StateUserOverlapping:
		if now.Sub(a.overlapStart) > a.tuning.OverlapThreshold {
			a.state = StateInterrupting
			a.interruptAt = now
			return true
		}
	}
	return false
}

// Silence records a silence-classified frame. An overlapping caller who stays
// quiet for the window duration is considered done, and the overlap clock
// restarts on their next utterance.
func (a *Arbiter) Silence(now time.Time) {
	a.expireCooldown(now)
	if a.state == StateUserOverlapping && now.Sub(a.lastSpeech) > a.tuning.Window {
		a.state = StateAgentSpeaking
		a.overlapStart = time.Time{}
	}
}

// ResponseDone records that the agent's generation turn completed, whether
// normally or because a cancellation landed.
func (a *Arbiter) ResponseDone(now time.Time) {
	a.state = StateIdle
	a.overlapStart = time.Time{}
	a.interruptAt = time.Time{}
}

// Suppressing reports whether agent audio must be dropped instead of
// forwarded, so stale chunks never race a cancellation back to the caller.
func (a *Arbiter) Suppressing(now time.Time) bool {
	a.expireCooldown(now)
	return a.state == StateInterrupting
}

// Reset returns the arbiter to idle with all transient state cleared.
func (a *Arbiter) Reset() {
	a.state = StateIdle
	a.overlapStart = time.Time{}
	a.lastSpeech = time.Time{}
	a.interruptAt = time.Time{}
}

func (a *Arbiter) expireCooldown(now time.Time) {
	if a.state == StateInterrupting && now.Sub(a.interruptAt) >= a.tuning.InterruptCooldown {
		a.state = StateIdle
		a.overlapStart = time.Time{}
	}
}
