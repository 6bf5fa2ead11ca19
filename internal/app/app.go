// Package app wires the audio pipelines, transcription dispatch, callout
// detection, meeting aggregation and event publishing into one service.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/config"
	"meeting-audio-pipeline/internal/events"
	"meeting-audio-pipeline/internal/models"
	"meeting-audio-pipeline/internal/observability/logging"
	"meeting-audio-pipeline/internal/service/asr"
	"meeting-audio-pipeline/internal/service/asr/deepgram"
	"meeting-audio-pipeline/internal/service/asr/google"
	"meeting-audio-pipeline/internal/service/asr/mock"
	"meeting-audio-pipeline/internal/service/callout"
	"meeting-audio-pipeline/internal/service/meeting"
	"meeting-audio-pipeline/internal/service/pipeline"
	"meeting-audio-pipeline/internal/service/segment"
)

// Application holds process-wide state and wires every component together.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Publisher  *events.Publisher
	Aggregator *meeting.Aggregator
	Detector   *callout.Detector

	mu         sync.Mutex
	pipelines  map[string]*pipeline.Pipeline
	lastResult *meeting.Result
}

// New constructs the application from configuration. The transcription
// provider is chosen by cfg.ASR.Provider; every configured audio source
// gets its own pipeline feeding the shared aggregator.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	logging.Init(cfg.Logging)
	logger := logging.WithComponent("application")

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create asr provider: %w", err)
	}

	patterns := callout.DefaultPatterns()
	if len(cfg.Callouts.Patterns) > 0 {
		patterns, err = callout.Compile(cfg.Callouts.Patterns)
		if err != nil {
			return nil, fmt.Errorf("compile callout patterns: %w", err)
		}
	}

	a := &Application{
		Logger:     logger,
		Cfg:        cfg,
		Publisher:  events.New(&cfg.Kafka),
		Aggregator: meeting.NewAggregator(logging.WithComponent("meeting")),
		Detector:   callout.NewDetector(patterns, cfg.Callouts.ConfidenceThreshold, logging.WithComponent("callout")),
		pipelines:  make(map[string]*pipeline.Pipeline),
	}

	ids := segment.NewGenerator()
	for _, src := range cfg.Audio.Sources {
		p := pipeline.New(a.pipelineConfig(src), provider, ids, logging.WithSource("pipeline", src.Name))
		p.SetSegmentCallback(a.Aggregator.AddSegment)
		p.SetResultCallback(a.handleFinal(src.Name))
		p.SetPartialCallback(a.handlePartial(src.Name))
		a.pipelines[src.Name] = p
	}

	logger.Info().
		Str("provider", provider.Name()).
		Int("sources", len(cfg.Audio.Sources)).
		Msg("application created")
	return a, nil
}

func (a *Application) pipelineConfig(src config.SourceConfig) pipeline.Config {
	cfg := pipeline.DefaultConfig(src.Name)
	cfg.Mode = pipeline.Mode(src.Mode)
	cfg.Chunker.TargetSampleRate = a.Cfg.Audio.TargetSampleRate
	cfg.Chunker.ChunkDuration = a.Cfg.Audio.ChunkDuration()
	cfg.Classifier.AbsoluteMinThreshold = a.Cfg.VAD.AbsoluteMinThreshold
	cfg.Classifier.NoiseMultiplier = a.Cfg.VAD.NoiseMultiplier
	cfg.NoiseFloor = a.Cfg.VAD.NoiseFloor
	cfg.NoiseAlpha = a.Cfg.VAD.NoiseAlpha
	cfg.Builder.MinSilence = a.Cfg.Segmenter.MinSilence()
	cfg.Builder.MinSegmentDuration = a.Cfg.Segmenter.MinSegmentDuration()
	cfg.Builder.MinAverageConfidence = a.Cfg.Segmenter.MinAverageConfidence
	cfg.Builder.MaxRawSegment = a.Cfg.Segmenter.MaxRawSegment()
	return cfg
}

func newProvider(ctx context.Context, cfg *config.Config) (asr.Provider, error) {
	log := logging.WithComponent("asr")
	switch cfg.ASR.Provider {
	case "mock":
		return mock.New(), nil
	case "deepgram":
		return deepgram.NewBatchProvider(cfg.ASR.DeepgramAPIKey, cfg.ASR.DeepgramBaseURL, log)
	case "deepgram-streaming":
		return deepgram.NewStreamingProvider(cfg.ASR.DeepgramAPIKey, cfg.ASR.DeepgramBaseURL, log)
	case "google":
		return google.New(ctx, cfg.ASR.Language, log)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.ASR.Provider)
	}
}

// handleFinal fans a final transcript out to the aggregator, the callout
// detector and the event publisher.
func (a *Application) handleFinal(source string) asr.ResultFunc {
	return func(result *asr.Result) {
		a.Aggregator.AddResult(result)

		meetingID := a.Aggregator.MeetingID()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.Publisher.PublishFinal(ctx, models.TranscriptFinal{
			MeetingID:  meetingID,
			Source:     source,
			SegmentID:  result.SegmentID,
			Timestamp:  time.Now().UnixMilli(),
			Text:       result.Transcript,
			Confidence: result.Confidence,
			Language:   result.Language,
			DurationMs: result.Duration.Milliseconds(),
		}); err != nil {
			a.Logger.Error().Err(err).Str("segmentId", result.SegmentID).Msg("publish final failed")
		}

		if !a.Cfg.Callouts.Enabled {
			return
		}
		if c := a.Detector.DetectFinal(result); c != nil {
			a.publishCallout(ctx, meetingID, source, c)
		}
	}
}

// handlePartial fans interim transcripts out to the publisher and runs
// early callout detection over them.
func (a *Application) handlePartial(source string) asr.PartialFunc {
	return func(partial asr.PartialTranscript) {
		meetingID := a.Aggregator.MeetingID()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.Publisher.PublishPartial(ctx, models.TranscriptPartial{
			MeetingID:  meetingID,
			Source:     source,
			SegmentID:  partial.SegmentID,
			Timestamp:  time.Now().UnixMilli(),
			Text:       partial.Text,
			Confidence: partial.Confidence,
		}); err != nil {
			a.Logger.Error().Err(err).Str("segmentId", partial.SegmentID).Msg("publish partial failed")
		}

		if !a.Cfg.Callouts.Enabled {
			return
		}
		if c := a.Detector.DetectPartial(partial); c != nil {
			a.publishCallout(ctx, meetingID, source, c)
		}
	}
}

func (a *Application) publishCallout(ctx context.Context, meetingID, source string, c *callout.Callout) {
	if err := a.Publisher.PublishCallout(ctx, models.Callout{
		MeetingID:  meetingID,
		Source:     source,
		SegmentID:  c.SegmentID,
		CalloutID:  c.ID,
		Timestamp:  c.Timestamp.UnixMilli(),
		Text:       c.Text,
		Confidence: c.Confidence,
		IsPartial:  c.IsPartial,
	}); err != nil {
		a.Logger.Error().Err(err).Str("calloutId", c.ID).Msg("publish callout failed")
	}
}

// Start opens a meeting and starts every pipeline.
func (a *Application) Start() string {
	a.StartupTime = time.Now().UTC()
	meetingID := a.Aggregator.Start()
	for _, p := range a.pipelines {
		p.Start()
	}
	a.Logger.Info().Str("meetingId", meetingID).Msg("service started")
	return meetingID
}

// AddFrame routes raw samples to the named source's pipeline.
func (a *Application) AddFrame(source string, samples []float32, inputRate int) error {
	p, ok := a.pipelines[source]
	if !ok {
		return fmt.Errorf("unknown source %q", source)
	}
	p.AddFrame(samples, inputRate)
	return nil
}

// Pipeline returns the pipeline for a source, or nil.
func (a *Application) Pipeline(source string) *pipeline.Pipeline {
	return a.pipelines[source]
}

// Snapshot returns per-source pipeline stats for the status API.
func (a *Application) Snapshot() []pipeline.Stats {
	stats := make([]pipeline.Stats, 0, len(a.pipelines))
	for _, src := range a.Cfg.Audio.Sources {
		if p, ok := a.pipelines[src.Name]; ok {
			stats = append(stats, p.Snapshot())
		}
	}
	return stats
}

// LastResult returns the notes from the most recently ended meeting, or nil.
func (a *Application) LastResult() *meeting.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastResult
}

// Shutdown flushes in-progress segments, waits for queued transcriptions
// to drain (bounded by ctx), ends the meeting and closes the publisher.
func (a *Application) Shutdown(ctx context.Context) *meeting.Result {
	a.Logger.Info().Msg("shutting down")

	for _, p := range a.pipelines {
		p.Stop()
	}
	a.waitForDrain(ctx)

	result := a.Aggregator.End()
	if result != nil {
		a.mu.Lock()
		a.lastResult = result
		a.mu.Unlock()
	}

	if err := a.Publisher.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("error closing publisher")
	}
	a.Logger.Info().Msg("shutdown complete")
	return result
}

// waitForDrain polls until every dispatcher is idle or ctx expires.
func (a *Application) waitForDrain(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		idle := true
		for _, p := range a.pipelines {
			s := p.Snapshot()
			if s.QueueLen > 0 || s.Processing {
				idle = false
				break
			}
		}
		if idle {
			return
		}
		select {
		case <-ctx.Done():
			a.Logger.Warn().Msg("shutdown deadline hit with transcriptions still queued")
			return
		case <-ticker.C:
		}
	}
}
