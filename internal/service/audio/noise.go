package audio

import (
	"time"

	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/observability/metrics"
)

// NoiseEstimator tracks the ambient noise energy of one stream as an
// exponentially smoothed average of silence-period RMS values. Only chunks
// classified as silence may feed it; speech energy never raises the floor.
type NoiseEstimator struct {
	floor    float64
	alpha    float64
	source   string
	lastLog  time.Time
	logEvery time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

const (
	// DefaultNoiseFloor is the starting estimate before any silence is seen.
	DefaultNoiseFloor = 0.01
	// DefaultNoiseAlpha gives 5% weight to each new silence sample.
	DefaultNoiseAlpha = 0.05

	noiseLogThrottle = 5 * time.Second
)

// NewNoiseEstimator creates an estimator with the given starting floor and
// smoothing factor. Zero values select the defaults.
func NewNoiseEstimator(initialFloor, alpha float64, source string, log zerolog.Logger) *NoiseEstimator {
	if initialFloor <= 0 {
		initialFloor = DefaultNoiseFloor
	}
	if alpha <= 0 {
		alpha = DefaultNoiseAlpha
	}
	return &NoiseEstimator{
		floor:    initialFloor,
		alpha:    alpha,
		source:   source,
		logEvery: noiseLogThrottle,
		log:      log,
		now:      time.Now,
	}
}

// UpdateWithSilenceRMS folds one silence-period RMS sample into the floor.
// Each update moves the floor by at most alpha toward the sample, so the
// estimate is smoothed and converges monotonically toward a constant input.
func (n *NoiseEstimator) UpdateWithSilenceRMS(rms float64) {
	n.floor = n.floor*(1-n.alpha) + rms*n.alpha
	metrics.Default.RecordNoiseFloor(n.source, n.floor)

	if now := n.now(); now.Sub(n.lastLog) > n.logEvery {
		n.log.Debug().Float64("floor", n.floor).Msg("noise floor updated")
		n.lastLog = now
	}
}

// NoiseFloor returns the current smoothed estimate.
func (n *NoiseEstimator) NoiseFloor() float64 {
	return n.floor
}

// AdaptiveThreshold derives the speech/silence decision threshold:
// max(absoluteMin, floor * multiplier).
func (n *NoiseEstimator) AdaptiveThreshold(absoluteMin, multiplier float64) float64 {
	if t := n.floor * multiplier; t > absoluteMin {
		return t
	}
	return absoluteMin
}
