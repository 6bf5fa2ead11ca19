// Package callout flags urgent utterances in transcripts, as early as
// possible without duplicate or noisy alerts.
package callout

import (
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/observability/metrics"
	"meeting-audio-pipeline/internal/service/asr"
)

// Callout is a detected urgent/actionable utterance. Ephemeral; consumers
// surface it immediately, nothing persists it.
type Callout struct {
	ID         string
	SegmentID  string
	Text       string
	Confidence float64
	Timestamp  time.Time
	IsPartial  bool
}

// Pattern pairs an urgency expression with the confidence assigned to a
// match. Patterns are tested in order; the first match wins.
type Pattern struct {
	Expr       *regexp.Regexp
	Confidence float64
}

// PatternConfig is the serializable form of a Pattern, loadable from the
// service config to override the defaults.
type PatternConfig struct {
	Pattern    string  `yaml:"pattern"`
	Confidence float64 `yaml:"confidence"`
}

// Compile turns pattern configs into matchable patterns. Expressions are
// matched case-insensitively.
func Compile(configs []PatternConfig) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(configs))
	for _, c := range configs {
		re, err := regexp.Compile("(?i)" + c.Pattern)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, Pattern{Expr: re, Confidence: c.Confidence})
	}
	return patterns, nil
}

// DefaultPatterns returns the built-in urgency pattern list. Order matters:
// the obligation patterns are tested before the deadline ones, so text
// matching both scores as an obligation.
func DefaultPatterns() []Pattern {
	mk := func(expr string, conf float64) Pattern {
		return Pattern{Expr: regexp.MustCompile("(?i)" + expr), Confidence: conf}
	}
	return []Pattern{
		mk(`\b(urgent|emergency|critical|important)\b`, 0.9),
		mk(`\b(asap|immediately|right away|right now)\b`, 0.85),
		mk(`\b(must|need to|have to|required)\b`, 0.7),
		mk(`\b(deadline|due date|overdue)\b`, 0.8),
		mk(`\b(alert|warning|attention|notice)\b`, 0.75),
		mk(`\b(problem|issue|blocker|stuck)\b`, 0.7),
		mk(`\b(help|support|assist)\b`, 0.65),
	}
}

// DefaultConfidenceThreshold is the rolling confidence a partial must reach
// before an early callout is emitted.
const DefaultConfidenceThreshold = 0.7

type partialState struct {
	confidence float64
	text       string
}

// Detector scans final and partial transcripts against the pattern list.
//
// The final path emits on any match and clears partial state for the
// segment. The partial path keeps a rolling confidence per in-flight segment
// (old*0.7 + new*0.3) and emits exactly once, on the upward crossing of the
// threshold, so interim revisions do not spam alerts. A partial that no
// longer matches retracts the stored state.
type Detector struct {
	patterns  []Pattern
	threshold float64

	mu       sync.Mutex
	partials map[string]partialState

	log zerolog.Logger
}

// NewDetector creates a detector. Nil patterns select the defaults; a zero
// threshold selects the default threshold.
func NewDetector(patterns []Pattern, threshold float64, log zerolog.Logger) *Detector {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Detector{
		patterns:  patterns,
		threshold: threshold,
		partials:  make(map[string]partialState),
		log:       log,
	}
}

func (d *Detector) match(text string) (Pattern, bool) {
	for _, p := range d.patterns {
		if p.Expr.MatchString(text) {
			return p, true
		}
	}
	return Pattern{}, false
}

// DetectFinal tests a final transcript. The segment's partial-callout state
// is dropped either way; a match emits a final callout, no match returns nil.
func (d *Detector) DetectFinal(result *asr.Result) *Callout {
	d.mu.Lock()
	delete(d.partials, result.SegmentID)
	d.mu.Unlock()

	p, ok := d.match(result.Transcript)
	if !ok {
		return nil
	}

	c := &Callout{
		ID:         uuid.NewString(),
		SegmentID:  result.SegmentID,
		Text:       result.Transcript,
		Confidence: p.Confidence,
		Timestamp:  time.Now(),
		IsPartial:  false,
	}
	d.log.Info().
		Str("segmentId", c.SegmentID).
		Float64("confidence", c.Confidence).
		Msg("callout detected")
	metrics.Default.RecordCallout("final")
	return c
}

// DetectPartial tests an interim transcript, updating the segment's rolling
// confidence. Returns a partial callout only on the transition where the
// rolling confidence crosses the threshold from below.
func (d *Detector) DetectPartial(partial asr.PartialTranscript) *Callout {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, hasExisting := d.partials[partial.SegmentID]

	p, ok := d.match(partial.Text)
	if !ok {
		// Retraction: the revised interim text no longer matches.
		delete(d.partials, partial.SegmentID)
		return nil
	}

	rolling := p.Confidence
	if hasExisting {
		rolling = existing.confidence*0.7 + p.Confidence*0.3
	}
	d.partials[partial.SegmentID] = partialState{confidence: rolling, text: partial.Text}

	crossed := rolling >= d.threshold && (!hasExisting || existing.confidence < d.threshold)
	if !crossed {
		return nil
	}

	c := &Callout{
		ID:         uuid.NewString(),
		SegmentID:  partial.SegmentID,
		Text:       partial.Text,
		Confidence: rolling,
		Timestamp:  time.Now(),
		IsPartial:  true,
	}
	d.log.Info().
		Str("segmentId", c.SegmentID).
		Float64("confidence", rolling).
		Msg("early callout detected from partial")
	metrics.Default.RecordCallout("partial")
	return c
}

// ClearPartial drops any stored partial state for a segment.
func (d *Detector) ClearPartial(segmentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.partials, segmentID)
}
