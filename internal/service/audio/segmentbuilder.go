package audio

import (
	"time"

	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/observability/metrics"
	"meeting-audio-pipeline/internal/service/segment"
)

// Segment is a contiguous span of chunks delivered as one transcription
// unit. Owned exclusively by the Builder until handed to the finalize
// callback; read-only shared data afterwards.
type Segment struct {
	ID                string
	Start             time.Time
	End               time.Time
	Chunks            []Chunk
	AverageConfidence float64 // true running mean over appended chunks
}

// Duration returns End-Start, kept current on every chunk append.
func (s *Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Samples concatenates the PCM of all chunks in order.
func (s *Segment) Samples() []float32 {
	total := 0
	for _, c := range s.Chunks {
		total += len(c.Samples)
	}
	out := make([]float32, 0, total)
	for _, c := range s.Chunks {
		out = append(out, c.Samples...)
	}
	return out
}

// SegmentFunc receives finalized segments exactly once each.
type SegmentFunc func(*Segment)

// StateFunc receives advisory speech/silence transitions.
type StateFunc func(State)

// BuilderConfig holds the debounce and retention parameters for segment
// assembly.
type BuilderConfig struct {
	MinSilence           time.Duration // silence needed to close an active segment
	MinSegmentDuration   time.Duration // shorter finalized segments are dropped
	MinAverageConfidence float64       // quieter finalized segments are dropped
	MaxRawSegment        time.Duration // hard cap per segment in raw mode
}

// DefaultBuilderConfig returns the standard debounce/retention settings.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		MinSilence:           800 * time.Millisecond,
		MinSegmentDuration:   500 * time.Millisecond,
		MinAverageConfidence: 0.2,
		MaxRawSegment:        10 * time.Second,
	}
}

// Builder assembles classified (or raw) chunks into speech segments.
//
// In classified mode it debounces on silence duration so a single utterance
// is not fragmented across brief pauses, then applies retention filtering so
// spurious noise bursts that briefly exceeded the adaptive threshold are
// discarded rather than transcribed.
//
// In raw mode, used when voice activity detection is delegated to the
// backend, every chunk is appended unconditionally and segments are cut at a
// hard duration cap with confidence fixed at 1.0. The two modes are distinct
// algorithms over shared state and are kept as separate entry points.
//
// Not safe for concurrent use; the pipeline feeds it sequentially.
type Builder struct {
	cfg          BuilderConfig
	source       string
	ids          *segment.Generator
	current      *Segment
	silenceStart time.Time // zero when not tracking silence
	onFinalized  SegmentFunc
	onState      StateFunc // optional
	log          zerolog.Logger
}

// NewBuilder creates a builder for one stream. onState may be nil.
func NewBuilder(cfg BuilderConfig, source string, ids *segment.Generator, onFinalized SegmentFunc, onState StateFunc, log zerolog.Logger) *Builder {
	if cfg.MinSilence <= 0 {
		cfg.MinSilence = 800 * time.Millisecond
	}
	if cfg.MinSegmentDuration <= 0 {
		cfg.MinSegmentDuration = 500 * time.Millisecond
	}
	if cfg.MaxRawSegment <= 0 {
		cfg.MaxRawSegment = 10 * time.Second
	}
	return &Builder{
		cfg:         cfg,
		source:      source,
		ids:         ids,
		onFinalized: onFinalized,
		onState:     onState,
		log:         log,
	}
}

// ProcessChunk ingests a raw chunk in streaming mode: append unconditionally,
// force-finalize once the segment exceeds the hard cap, then the next chunk
// starts a fresh segment. No retention filtering applies.
func (b *Builder) ProcessChunk(chunk Chunk) {
	if b.current == nil {
		b.startSegment(chunk, 1.0)
	} else {
		b.appendChunk(chunk, 1.0)
	}

	if b.current.Duration() > b.cfg.MaxRawSegment {
		seg := b.current
		b.current = nil
		b.log.Debug().
			Str("segmentId", seg.ID).
			Dur("duration", seg.Duration()).
			Msg("raw segment cap reached")
		metrics.Default.RecordSegmentFinalized(b.source)
		if b.onFinalized != nil {
			b.onFinalized(seg)
		}
	}
}

// ProcessClassified ingests one classified chunk and advances the
// segmentation state machine.
func (b *Builder) ProcessClassified(cc ClassifiedChunk) {
	if cc.State == StateSpeech {
		b.handleSpeech(cc.Chunk, cc.SpeechConfidence)
	} else {
		b.handleSilence(cc.Chunk)
	}
}

func (b *Builder) handleSpeech(chunk Chunk, confidence float64) {
	if !b.silenceStart.IsZero() {
		b.silenceStart = time.Time{}
		b.log.Debug().Msg("speech started")
		b.notifyState(StateSpeech)
	}

	if b.current == nil {
		b.startSegment(chunk, confidence)
	} else {
		b.appendChunk(chunk, confidence)
	}
}

func (b *Builder) handleSilence(chunk Chunk) {
	if b.current != nil {
		if b.silenceStart.IsZero() {
			b.silenceStart = chunk.Start
			b.log.Debug().Msg("silence started")
			b.notifyState(StateSilence)
			return
		}
		if chunk.End.Sub(b.silenceStart) >= b.cfg.MinSilence {
			b.finalizeCurrent()
		}
		return
	}

	// No active segment: silence is tracked only to drive the advisory
	// state-change notification.
	if b.silenceStart.IsZero() {
		b.silenceStart = chunk.Start
		b.notifyState(StateSilence)
	}
}

func (b *Builder) startSegment(first Chunk, confidence float64) {
	b.current = &Segment{
		ID:                b.ids.Next(b.source),
		Start:             first.Start,
		End:               first.End,
		Chunks:            []Chunk{first},
		AverageConfidence: confidence,
	}
	metrics.Default.RecordSegmentCreated(b.source)
}

func (b *Builder) appendChunk(chunk Chunk, confidence float64) {
	s := b.current
	s.Chunks = append(s.Chunks, chunk)
	s.End = chunk.End

	n := float64(len(s.Chunks))
	s.AverageConfidence = (s.AverageConfidence*(n-1) + confidence) / n
}

// finalizeCurrent applies retention filtering and either hands the segment
// off or drops it. Short-duration takes precedence as the drop reason when
// both criteria fail.
func (b *Builder) finalizeCurrent() {
	s := b.current
	if s == nil {
		return
	}
	b.current = nil
	b.silenceStart = time.Time{}

	if s.Duration() < b.cfg.MinSegmentDuration {
		b.dropSegment(s, "too short")
		return
	}
	if s.AverageConfidence < b.cfg.MinAverageConfidence {
		b.dropSegment(s, "low confidence")
		return
	}

	b.log.Info().
		Str("segmentId", s.ID).
		Dur("duration", s.Duration()).
		Int("chunks", len(s.Chunks)).
		Float64("confidence", s.AverageConfidence).
		Msg("segment finalized")
	metrics.Default.RecordSegmentFinalized(b.source)

	if b.onFinalized != nil {
		b.onFinalized(s)
	}
}

func (b *Builder) dropSegment(s *Segment, reason string) {
	b.log.Debug().
		Str("segmentId", s.ID).
		Str("reason", reason).
		Dur("duration", s.Duration()).
		Float64("confidence", s.AverageConfidence).
		Msg("segment dropped")
	metrics.Default.RecordSegmentDropped(b.source, reason)
}

// FinalizePending force-finalizes any in-progress segment, applying the same
// retention filter. Called on stream stop so trailing speech is not lost.
// No-op when nothing is active; safe to call repeatedly.
func (b *Builder) FinalizePending() {
	if b.current != nil {
		b.finalizeCurrent()
	}
}

// CurrentState reports speech while a segment is accumulating and silence
// otherwise.
func (b *Builder) CurrentState() State {
	if b.current != nil && b.silenceStart.IsZero() {
		return StateSpeech
	}
	return StateSilence
}

func (b *Builder) notifyState(s State) {
	if b.onState != nil {
		b.onState(s)
	}
}
