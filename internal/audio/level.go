// Package audio converts raw carrier frames into loudness estimates.
//
// Carrier media arrives as G.711 µ-law, 8-bit companded mono at 8kHz. Frames
// are expanded to 16-bit linear PCM and reduced to a single smoothed level in
// [0,1] suitable for the speech detector.
package audio

import "math"

// µ-law expansion per G.711. Table-driven; built once at init.
var muLawTable [256]int16

const muLawBias = 0x84

func init() {
	for i := 0; i < 256; i++ {
		b := ^byte(i)
		sign := b & 0x80
		exp := (b >> 4) & 0x07
		mant := b & 0x0F
		v := ((int16(mant) << 3) + muLawBias) << exp
		v -= muLawBias
		if sign != 0 {
			v = -v
		}
		muLawTable[i] = v
	}
}

// DecodeMuLaw expands a µ-law frame to 16-bit linear samples.
func DecodeMuLaw(frame []byte) []int16 {
	out := make([]int16, len(frame))
	for i, b := range frame {
		out[i] = muLawTable[b]
	}
	return out
}

// Smoothing and blend weights. RMS dominates; the mean and peak terms damp
// transient clicks without letting a single spike drive the level.
const (
	smoothingFactor = 0.7
	weightRMS       = 0.6
	weightMean      = 0.3
	weightPeak      = 0.1
	fullScale       = 32768.0
)

// Estimator tracks the smoothed loudness of one audio stream. It is stateful
// and must not be shared across calls; construct one per session.
type Estimator struct {
	prev float64
}

// NewEstimator returns an estimator with zeroed smoothing state.
func NewEstimator() *Estimator { return &Estimator{} }

// Level computes the smoothed loudness of one encoded frame, in [0,1].
// An empty frame returns (0, false) and leaves the smoothing state untouched.
func (e *Estimator) Level(frame []byte) (float64, bool) {
	if len(frame) == 0 {
		return 0, false
	}
	samples := DecodeMuLaw(frame)

	var sumSquares, sumAbs, peak float64
	for _, s := range samples {
		f := float64(s)
		if f < 0 {
			f = -f
		}
		sumSquares += f * f
		sumAbs += f
		if f > peak {
			peak = f
		}
	}
	n := float64(len(samples))
	rms := math.Sqrt(sumSquares/n) / fullScale
	mean := sumAbs / n / fullScale
	blended := weightRMS*rms + weightMean*mean + weightPeak*peak/fullScale

	smoothed := smoothingFactor*e.prev + (1-smoothingFactor)*blended
	e.prev = smoothed
	return smoothed, true
}

// Reset clears the smoothing state between turns.
func (e *Estimator) Reset() { e.prev = 0 }
