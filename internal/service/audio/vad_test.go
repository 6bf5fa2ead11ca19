package audio

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func constChunk(amplitude float32, n int) Chunk {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amplitude
	}
	return Chunk{Samples: samples}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %v", got)
	}
	if got := RMS([]float32{0.5, 0.5, 0.5}); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("expected 0.5, got %v", got)
	}
	// sign does not matter
	if got := RMS([]float32{-0.5, 0.5}); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestClassify_SilenceBelowThreshold(t *testing.T) {
	noise := NewNoiseEstimator(0.01, 0.05, "mic", zerolog.Nop())
	cl := NewClassifier(noise, DefaultClassifierConfig(), zerolog.Nop())

	cc := cl.Classify(constChunk(0.005, 160))
	if cc.State != StateSilence {
		t.Errorf("expected silence, got %v", cc.State)
	}
	if cc.SpeechConfidence != 0 {
		t.Errorf("expected zero confidence for silence, got %v", cc.SpeechConfidence)
	}
}

func TestClassify_SpeechAboveThreshold(t *testing.T) {
	noise := NewNoiseEstimator(0.01, 0.05, "mic", zerolog.Nop())
	cl := NewClassifier(noise, DefaultClassifierConfig(), zerolog.Nop())

	cc := cl.Classify(constChunk(0.2, 160))
	if cc.State != StateSpeech {
		t.Errorf("expected speech, got %v", cc.State)
	}
	if cc.SpeechConfidence != 1 {
		t.Errorf("expected saturated confidence, got %v", cc.SpeechConfidence)
	}
}

func TestClassify_ConfidenceIsRatioOvershoot(t *testing.T) {
	noise := NewNoiseEstimator(0.01, 0.05, "mic", zerolog.Nop())
	cl := NewClassifier(noise, ClassifierConfig{AbsoluteMinThreshold: 0.012, NoiseMultiplier: 2.5}, zerolog.Nop())

	// threshold = max(0.012, 0.01*2.5) = 0.025; rms 0.03 -> (0.03-0.025)/0.025 = 0.2
	cc := cl.Classify(constChunk(0.03, 160))
	if cc.State != StateSpeech {
		t.Fatalf("expected speech, got %v", cc.State)
	}
	if math.Abs(cc.SpeechConfidence-0.2) > 1e-6 {
		t.Errorf("expected confidence 0.2, got %v", cc.SpeechConfidence)
	}
}

func TestClassify_SilenceFeedsNoiseFloor(t *testing.T) {
	noise := NewNoiseEstimator(0.01, 0.05, "mic", zerolog.Nop())
	cl := NewClassifier(noise, DefaultClassifierConfig(), zerolog.Nop())

	before := noise.NoiseFloor()
	cl.Classify(constChunk(0.02, 160)) // below threshold 0.025
	if noise.NoiseFloor() <= before {
		t.Error("expected silence chunk to raise the noise floor")
	}

	floor := noise.NoiseFloor()
	cl.Classify(constChunk(0.5, 160)) // speech
	if noise.NoiseFloor() != floor {
		t.Error("expected speech chunk to leave the noise floor unchanged")
	}
}

func TestClassify_ThresholdAdaptsToNoisierRoom(t *testing.T) {
	noise := NewNoiseEstimator(0.01, 0.5, "mic", zerolog.Nop())
	cl := NewClassifier(noise, DefaultClassifierConfig(), zerolog.Nop())

	// borderline energy is speech in a quiet room
	if cc := cl.Classify(constChunk(0.03, 160)); cc.State != StateSpeech {
		t.Fatalf("expected speech in quiet room, got %v", cc.State)
	}

	// sustained background noise raises the floor, so the same energy
	// eventually classifies as silence
	for i := 0; i < 20; i++ {
		noise.UpdateWithSilenceRMS(0.02)
	}
	if cc := cl.Classify(constChunk(0.03, 160)); cc.State != StateSilence {
		t.Errorf("expected silence after floor adaptation, got %v", cc.State)
	}
}

func TestStateString(t *testing.T) {
	if StateSilence.String() != "silence" || StateSpeech.String() != "speech" {
		t.Error("unexpected state strings")
	}
}
