package audio

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// State classifies a chunk as speech or silence.
type State int

const (
	StateSilence State = iota
	StateSpeech
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateSilence:
		return "silence"
	case StateSpeech:
		return "speech"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ClassifiedChunk is a chunk with its energy classification attached.
// Derived data; never stored beyond segment assembly.
type ClassifiedChunk struct {
	Chunk            Chunk
	State            State
	RMS              float64
	SpeechConfidence float64 // in [0,1]; 0 for silence
}

// ClassifierConfig holds the threshold parameters for energy-based VAD.
type ClassifierConfig struct {
	AbsoluteMinThreshold float64 // threshold never drops below this
	NoiseMultiplier      float64 // threshold = floor * multiplier when above the minimum
}

// DefaultClassifierConfig returns the standard VAD thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		AbsoluteMinThreshold: 0.012,
		NoiseMultiplier:      2.5,
	}
}

const thresholdLogThrottle = 10 * time.Second

// Classifier performs energy-based voice activity detection against the
// noise-adaptive threshold. Silence-classified chunks feed their RMS back
// into the estimator; speech chunks never do.
type Classifier struct {
	noise   *NoiseEstimator
	cfg     ClassifierConfig
	lastLog time.Time
	log     zerolog.Logger
	now     func() time.Time
}

// NewClassifier creates a classifier bound to one stream's noise estimator.
func NewClassifier(noise *NoiseEstimator, cfg ClassifierConfig, log zerolog.Logger) *Classifier {
	if cfg.AbsoluteMinThreshold <= 0 {
		cfg.AbsoluteMinThreshold = 0.012
	}
	if cfg.NoiseMultiplier <= 0 {
		cfg.NoiseMultiplier = 2.5
	}
	return &Classifier{
		noise: noise,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Classify computes the chunk's RMS and classifies it against the adaptive
// threshold. Confidence is the ratio overshoot (rms-threshold)/threshold
// clamped to [0,1]: zero exactly at the threshold, saturating once RMS
// reaches twice the threshold.
func (cl *Classifier) Classify(chunk Chunk) ClassifiedChunk {
	rms := RMS(chunk.Samples)
	threshold := cl.noise.AdaptiveThreshold(cl.cfg.AbsoluteMinThreshold, cl.cfg.NoiseMultiplier)

	if now := cl.now(); now.Sub(cl.lastLog) > thresholdLogThrottle {
		cl.log.Debug().Float64("threshold", threshold).Msg("adaptive threshold")
		cl.lastLog = now
	}

	state := StateSilence
	confidence := 0.0
	if rms > threshold {
		state = StateSpeech
		confidence = (rms - threshold) / threshold
		if confidence > 1 {
			confidence = 1
		} else if confidence < 0 {
			confidence = 0
		}
	} else {
		cl.noise.UpdateWithSilenceRMS(rms)
	}

	return ClassifiedChunk{
		Chunk:            chunk,
		State:            state,
		RMS:              rms,
		SpeechConfidence: confidence,
	}
}

// RMS returns the root-mean-square amplitude of a sample window, the energy
// proxy used for voice activity detection. Empty input yields 0.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
