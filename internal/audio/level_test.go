package audio

import (
	"math"
	"testing"
)

// encodeMuLaw compresses one linear sample; inverse of the decode table.
func encodeMuLaw(s int16) byte {
	sign := byte(0)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > 32635 {
		s = 32635
	}
	s += muLawBias
	exp := byte(7)
	for mask := int16(0x4000); exp > 0 && s&mask == 0; mask >>= 1 {
		exp--
	}
	mant := byte(s>>(exp+3)) & 0x0F
	return ^(sign | exp<<4 | mant)
}

func constantFrame(amplitude int16, n int) []byte {
	b := encodeMuLaw(amplitude)
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestDecodeMuLaw_RoundTripNear(t *testing.T) {
	for _, want := range []int16{0, 100, 1000, 8000, 32000, -100, -8000, -32000} {
		got := muLawTable[encodeMuLaw(want)]
		diff := int32(got) - int32(want)
		if diff < 0 {
			diff = -diff
		}
		// µ-law quantization error grows with amplitude; 3% of full scale is generous
		if diff > 1000 {
			t.Fatalf("decode(encode(%d)) = %d, error %d too large", want, got, diff)
		}
	}
}

func TestEstimator_EmptyFrame(t *testing.T) {
	e := NewEstimator()
	lvl, ok := e.Level(nil)
	if ok || lvl != 0 {
		t.Fatalf("empty frame: got (%v, %v), want (0, false)", lvl, ok)
	}
	// state must be untouched
	if e.prev != 0 {
		t.Fatalf("empty frame mutated smoothing state: %v", e.prev)
	}
}

func TestEstimator_SilenceIsZero(t *testing.T) {
	e := NewEstimator()
	lvl, ok := e.Level(constantFrame(0, 160))
	if !ok {
		t.Fatalf("expected valid frame")
	}
	if lvl > 0.001 {
		t.Fatalf("silence frame level = %v, want ~0", lvl)
	}
}

func TestEstimator_ConvergesToUnsmoothedLevel(t *testing.T) {
	e := NewEstimator()
	frame := constantFrame(8000, 160)
	// for a constant-amplitude frame rms == mean == peak, so the blend
	// collapses to the raw normalized amplitude after decode quantization
	decoded := float64(muLawTable[encodeMuLaw(8000)]) / fullScale

	var lvl float64
	for i := 0; i < 60; i++ {
		lvl, _ = e.Level(frame)
	}
	if math.Abs(lvl-decoded) > 1e-6 {
		t.Fatalf("smoothed level %v did not converge to %v", lvl, decoded)
	}
}

func TestEstimator_SmoothingDampsFirstFrame(t *testing.T) {
	e := NewEstimator()
	frame := constantFrame(8000, 160)
	first, _ := e.Level(frame)
	decoded := float64(muLawTable[encodeMuLaw(8000)]) / fullScale
	// first frame is pulled toward the zero prior
	if first >= decoded {
		t.Fatalf("first frame %v not damped below %v", first, decoded)
	}
	e.Reset()
	again, _ := e.Level(frame)
	if math.Abs(again-first) > 1e-12 {
		t.Fatalf("Reset did not clear smoothing state: %v vs %v", again, first)
	}
}
