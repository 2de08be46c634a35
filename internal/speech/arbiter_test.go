package speech

import (
	"testing"
	"time"
)

func TestArbiter_SingleCancellationPerOverlap(t *testing.T) {
	tun := Default()
	a := NewArbiter(tun)
	now := time.Now()
	a.AgentAudio(now)

	// N speech frames spanning well past the overlap threshold produce
	// exactly one cancellation
	cancels := 0
	for i := 0; i < 200; i++ {
		at := now.Add(time.Duration(i) * 20 * time.Millisecond) // 4s span
		if a.Speech(at) {
			cancels++
		}
	}
	if cancels != 1 {
		t.Fatalf("expected exactly 1 cancellation, got %d", cancels)
	}
}

func TestArbiter_NoCancelBeforeOverlapThreshold(t *testing.T) {
	a := NewArbiter(Default())
	now := time.Now()
	a.AgentAudio(now)
	for i := 0; i < 100; i++ {
		at := now.Add(time.Duration(i) * 20 * time.Millisecond) // 2s span
		if a.Speech(at) {
			t.Fatalf("cancelled at %v, before the 2.5s overlap threshold", at.Sub(now))
		}
	}
}

func TestArbiter_NoCancelWhenAgentSilent(t *testing.T) {
	a := NewArbiter(Default())
	now := time.Now()
	for i := 0; i < 300; i++ {
		if a.Speech(now.Add(time.Duration(i) * 20 * time.Millisecond)) {
			t.Fatalf("cancellation issued with no agent audio")
		}
	}
}

func TestArbiter_SuppressionWindow(t *testing.T) {
	tun := Default()
	a := NewArbiter(tun)
	now := time.Now()
	a.AgentAudio(now)

	at := now
	for i := 0; ; i++ {
		at = now.Add(time.Duration(i) * 20 * time.Millisecond)
		if a.Speech(at) {
			break
		}
		if i > 1000 {
			t.Fatalf("never triggered")
		}
	}
	if !a.Suppressing(at) {
		t.Fatalf("not suppressing right after cancellation")
	}
	if a.Suppressing(at.Add(tun.InterruptCooldown)) {
		t.Fatalf("still suppressing after the cooldown elapsed")
	}
}

func TestArbiter_ResponseDoneClearsInFlight(t *testing.T) {
	a := NewArbiter(Default())
	now := time.Now()
	a.AgentAudio(now)
	at := now
	for i := 0; !a.Speech(at); i++ {
		at = now.Add(time.Duration(i) * 20 * time.Millisecond)
	}
	a.ResponseDone(at)
	if a.State(at) != StateIdle {
		t.Fatalf("state after response done = %v, want idle", a.State(at))
	}
	if a.Suppressing(at) {
		t.Fatalf("suppressing after response done")
	}
}

func TestArbiter_OverlapClockRestartsAfterSilence(t *testing.T) {
	tun := Default()
	a := NewArbiter(tun)
	now := time.Now()
	a.AgentAudio(now)

	// 2s of speech, then the caller goes quiet past the window
	for i := 0; i < 100; i++ {
		a.Speech(now.Add(time.Duration(i) * 20 * time.Millisecond))
	}
	quiet := now.Add(2*time.Second + tun.Window + time.Millisecond)
	a.Silence(quiet)
	if a.State(quiet) != StateAgentSpeaking {
		t.Fatalf("state after sustained silence = %v, want agent_speaking", a.State(quiet))
	}

	// a fresh 2s burst must not cancel: the overlap clock restarted
	for i := 0; i < 100; i++ {
		if a.Speech(quiet.Add(time.Duration(i) * 20 * time.Millisecond)) {
			t.Fatalf("cancellation inherited the previous overlap's start time")
		}
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateIdle:            "idle",
		StateAgentSpeaking:   "agent_speaking",
		StateUserOverlapping: "user_overlapping",
		StateInterrupting:    "interrupting",
		State(99):            "unknown",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
