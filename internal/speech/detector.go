// Package speech classifies caller audio activity and arbitrates barge-in.
//
// The detector is a heuristic control signal, not a certified VAD: it trades
// recall for stability so that a single loud transient never interrupts the
// agent mid-sentence.
package speech

import "time"

// Tuning holds the detection thresholds. These drifted across earlier
// revisions of the pipeline, so they are configuration rather than constants;
// Default returns the settled values.
type Tuning struct {
	// SpeechThreshold is the level above which a sample counts as speech.
	SpeechThreshold float64
	// NoiseFloor is the level at or below which a sample counts as silence.
	// Levels between the floor and the threshold fall in a dead zone that
	// affects neither counter.
	NoiseFloor float64
	// MinimumLevel gates out dead or muted input before any bookkeeping.
	MinimumLevel float64
	// Window bounds the rolling sample buffer and doubles as the silence
	// timeout after which an overlapping caller is considered done talking.
	Window time.Duration
	// MinSamples is the buffer size required before any positive decision.
	MinSamples int
	// ConsecutiveNeeded is the confirmation count of back-to-back
	// above-threshold samples.
	ConsecutiveNeeded int
	// MaxSilenceGaps is how many below-floor samples are tolerated inside
	// continuous speech.
	MaxSilenceGaps int
	// SpeechRatio is the fraction of buffered samples that must exceed the
	// threshold.
	SpeechRatio float64
	// OverlapThreshold is how long caller speech must overlap agent speech
	// before the agent is interrupted.
	OverlapThreshold time.Duration
	// InterruptCooldown guards against duplicate cancellations for one
	// overlap event.
	InterruptCooldown time.Duration
}

// Default returns the production tuning.
func Default() Tuning {
	return Tuning{
		SpeechThreshold:   0.1,
		NoiseFloor:        0.03,
		MinimumLevel:      0.0001,
		Window:            time.Second,
		MinSamples:        5,
		ConsecutiveNeeded: 5,
		MaxSilenceGaps:    3,
		SpeechRatio:       0.5,
		OverlapThreshold:  2500 * time.Millisecond,
		InterruptCooldown: time.Second,
	}
}

type sample struct {
	level float64
	at    time.Time
}

// Detector classifies a rolling window of loudness samples as speech or
// silence. It is per-call state; sharing one across sessions corrupts the
// counters of every call involved.
type Detector struct {
	tuning      Tuning
	buf         []sample
	consecutive int
	silenceGaps int
}

// NewDetector returns a detector with an empty window.
func NewDetector(t Tuning) *Detector {
	return &Detector{tuning: t}
}

// Classify records one loudness sample and reports whether the window
// currently looks like sustained speech.
func (d *Detector) Classify(level float64, now time.Time) bool {
	// Dead-mic or muted input never registers as speech, no matter what the
	// window holds.
	if level < d.tuning.MinimumLevel {
		d.consecutive = 0
		return false
	}

	d.buf = append(d.buf, sample{level: level, at: now})
	cutoff := now.Add(-d.tuning.Window)
	for len(d.buf) > 0 && d.buf[0].at.Before(cutoff) {
		d.buf = d.buf[1:]
	}

	switch {
	case level > d.tuning.SpeechThreshold:
		d.consecutive++
		d.silenceGaps = 0
	case level <= d.tuning.NoiseFloor:
		d.consecutive = 0
		d.silenceGaps++
	}

	above := 0
	for _, s := range d.buf {
		if s.level > d.tuning.SpeechThreshold {
			above++
		}
	}
	ratio := float64(above) / float64(len(d.buf))

	// The sample-count gate blocks positive decisions during call setup but
	// never stops the counters from warming up.
	return len(d.buf) >= d.tuning.MinSamples &&
		d.consecutive >= d.tuning.ConsecutiveNeeded &&
		d.silenceGaps <= d.tuning.MaxSilenceGaps &&
		ratio > d.tuning.SpeechRatio &&
		level > d.tuning.NoiseFloor
}

// Reset clears the window and both counters.
func (d *Detector) Reset() {
	d.buf = d.buf[:0]
	d.consecutive = 0
	d.silenceGaps = 0
}
