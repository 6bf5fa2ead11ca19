package audio

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func TestNoiseEstimator_Defaults(t *testing.T) {
	n := NewNoiseEstimator(0, 0, "mic", zerolog.Nop())
	if n.NoiseFloor() != DefaultNoiseFloor {
		t.Errorf("expected default floor %v, got %v", DefaultNoiseFloor, n.NoiseFloor())
	}
}

func TestNoiseEstimator_SingleUpdate(t *testing.T) {
	n := NewNoiseEstimator(0.01, 0.05, "mic", zerolog.Nop())
	n.UpdateWithSilenceRMS(0.02)

	want := 0.01*0.95 + 0.02*0.05
	if math.Abs(n.NoiseFloor()-want) > 1e-9 {
		t.Errorf("expected floor %v, got %v", want, n.NoiseFloor())
	}
}

func TestNoiseEstimator_ConvergesTowardConstantInput(t *testing.T) {
	n := NewNoiseEstimator(0.01, 0.05, "mic", zerolog.Nop())
	for i := 0; i < 500; i++ {
		n.UpdateWithSilenceRMS(0.05)
	}
	if math.Abs(n.NoiseFloor()-0.05) > 1e-6 {
		t.Errorf("expected floor to converge to 0.05, got %v", n.NoiseFloor())
	}
}

func TestNoiseEstimator_UpdateIsBoundedByAlpha(t *testing.T) {
	n := NewNoiseEstimator(0.01, 0.05, "mic", zerolog.Nop())
	n.UpdateWithSilenceRMS(1.0)

	// one loud outlier moves the floor by at most alpha of the gap
	if n.NoiseFloor() > 0.01+0.05*(1.0-0.01)+1e-9 {
		t.Errorf("floor moved more than alpha allows: %v", n.NoiseFloor())
	}
}

func TestAdaptiveThreshold_AbsoluteMinimumWins(t *testing.T) {
	n := NewNoiseEstimator(0.001, 0.05, "mic", zerolog.Nop())
	got := n.AdaptiveThreshold(0.012, 2.5)
	if got != 0.012 {
		t.Errorf("expected absolute minimum 0.012, got %v", got)
	}
}

func TestAdaptiveThreshold_ScalesWithFloor(t *testing.T) {
	n := NewNoiseEstimator(0.02, 0.05, "mic", zerolog.Nop())
	got := n.AdaptiveThreshold(0.012, 2.5)
	if math.Abs(got-0.05) > 1e-9 {
		t.Errorf("expected 0.05, got %v", got)
	}
}
