package pipeline

import (
	"sync"

	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/service/asr"
	"meeting-audio-pipeline/internal/service/audio"
	"meeting-audio-pipeline/internal/service/segment"
)

// Mode selects how incoming chunks become segments.
type Mode string

const (
	// ModeClassified runs voice activity classification and silence-debounced
	// segmentation. This is the default for live sources.
	ModeClassified Mode = "classified"
	// ModeRaw skips classification and accumulates every chunk until the raw
	// segment cap is hit. Useful for pre-recorded input where silence
	// detection is not wanted.
	ModeRaw Mode = "raw"
)

// Config wires one audio source end to end.
type Config struct {
	Source     string
	Mode       Mode
	Chunker    audio.ChunkerConfig
	Classifier audio.ClassifierConfig
	Builder    audio.BuilderConfig
	NoiseFloor float64
	NoiseAlpha float64
}

// DefaultConfig returns a classified-mode pipeline config for the given
// source with the standard chunking and segmentation parameters.
func DefaultConfig(source string) Config {
	return Config{
		Source:     source,
		Mode:       ModeClassified,
		Chunker:    audio.DefaultChunkerConfig(),
		Classifier: audio.DefaultClassifierConfig(),
		Builder:    audio.DefaultBuilderConfig(),
		NoiseFloor: audio.DefaultNoiseFloor,
		NoiseAlpha: audio.DefaultNoiseAlpha,
	}
}

// SegmentFunc receives finalized segments with their source attribution.
type SegmentFunc func(source string, seg *audio.Segment)

// Pipeline binds a chunker, classifier, segment builder and transcription
// dispatcher for a single audio source. Frames flow in via AddFrame;
// finalized segments flow out through the dispatcher and the optional
// segment callback.
type Pipeline struct {
	source     string
	mode       Mode
	chunker    *audio.Chunker
	noise      *audio.NoiseEstimator
	classifier *audio.Classifier
	builder    *audio.Builder
	dispatcher *asr.Dispatcher

	mu        sync.Mutex
	running   bool
	onSegment SegmentFunc
	onState   audio.StateFunc

	log zerolog.Logger
}

// New builds a pipeline for one source. The segment ID generator is shared
// across sources so IDs stay unique per process.
func New(cfg Config, provider asr.Provider, ids *segment.Generator, log zerolog.Logger) *Pipeline {
	if cfg.Mode == "" {
		cfg.Mode = ModeClassified
	}

	p := &Pipeline{
		source:     cfg.Source,
		mode:       cfg.Mode,
		dispatcher: asr.NewDispatcher(provider, cfg.Source, log),
		log:        log.With().Str("source", cfg.Source).Logger(),
	}

	p.noise = audio.NewNoiseEstimator(cfg.NoiseFloor, cfg.NoiseAlpha, cfg.Source, log)
	p.classifier = audio.NewClassifier(p.noise, cfg.Classifier, log)
	p.builder = audio.NewBuilder(cfg.Builder, cfg.Source, ids, p.segmentFinalized, p.stateChanged, log)
	p.chunker = audio.NewChunker(cfg.Chunker, p.chunkReady, log)

	return p
}

// SetSegmentCallback registers a callback invoked for every finalized
// segment, after it has been handed to the dispatcher.
func (p *Pipeline) SetSegmentCallback(fn SegmentFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSegment = fn
}

// SetStateCallback registers a callback for speech/silence transitions.
// Only fires in classified mode.
func (p *Pipeline) SetStateCallback(fn audio.StateFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

// SetResultCallback forwards final transcripts from the dispatcher.
func (p *Pipeline) SetResultCallback(fn asr.ResultFunc) {
	p.dispatcher.SetResultCallback(fn)
}

// SetPartialCallback forwards interim transcripts from the dispatcher.
// Only streaming providers produce them.
func (p *Pipeline) SetPartialCallback(fn asr.PartialFunc) {
	p.dispatcher.SetPartialCallback(fn)
}

// Start marks the pipeline as accepting frames.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.log.Info().Str("mode", string(p.mode)).Msg("pipeline started")
}

// AddFrame feeds raw samples at the given input rate into the pipeline.
// Frames arriving while the pipeline is stopped are dropped.
func (p *Pipeline) AddFrame(samples []float32, inputRate int) {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return
	}
	p.chunker.AddFrame(samples, inputRate)
}

// Stop flushes the in-progress segment synchronously and stops accepting
// frames. Segments already queued on the dispatcher are still transcribed.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.builder.FinalizePending()
	p.log.Info().Msg("pipeline stopped")
}

// Source returns the source label this pipeline was built for.
func (p *Pipeline) Source() string { return p.source }

// Running reports whether the pipeline accepts frames.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stats is a point-in-time snapshot for the status API.
type Stats struct {
	Source         string  `json:"source"`
	Mode           string  `json:"mode"`
	Running        bool    `json:"running"`
	PendingSamples int     `json:"pendingSamples"`
	NoiseFloor     float64 `json:"noiseFloor"`
	VoiceState     string  `json:"voiceState"`
	QueueLen       int     `json:"queueLen"`
	Processing     bool    `json:"processing"`
}

// Snapshot returns current pipeline stats.
func (p *Pipeline) Snapshot() Stats {
	return Stats{
		Source:         p.source,
		Mode:           string(p.mode),
		Running:        p.Running(),
		PendingSamples: p.chunker.PendingSamples(),
		NoiseFloor:     p.noise.NoiseFloor(),
		VoiceState:     p.builder.CurrentState().String(),
		QueueLen:       p.dispatcher.QueueLen(),
		Processing:     p.dispatcher.Processing(),
	}
}

func (p *Pipeline) chunkReady(chunk audio.Chunk) {
	if p.mode == ModeRaw {
		p.builder.ProcessChunk(chunk)
		return
	}
	p.builder.ProcessClassified(p.classifier.Classify(chunk))
}

func (p *Pipeline) segmentFinalized(seg *audio.Segment) {
	p.dispatcher.Enqueue(seg)

	p.mu.Lock()
	fn := p.onSegment
	p.mu.Unlock()
	if fn != nil {
		fn(p.source, seg)
	}
}

func (p *Pipeline) stateChanged(s audio.State) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
