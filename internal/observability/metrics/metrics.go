// Package metrics provides Prometheus metrics for the audio pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meeting_audio"

// Metrics holds all Prometheus metrics for the service. Per-source labels
// separate the microphone and system-audio pipelines.
type Metrics struct {
	// Ingest metrics
	FramesReceived prometheus.Counter
	SamplesInput   prometheus.Counter
	ChunksEmitted  prometheus.Counter

	// Noise / VAD metrics
	NoiseFloor *prometheus.GaugeVec

	// Segment metrics
	SegmentsCreated   *prometheus.CounterVec
	SegmentsFinalized *prometheus.CounterVec
	SegmentsDropped   *prometheus.CounterVec

	// Dispatch metrics
	DispatchQueueDepth *prometheus.GaugeVec
	ASRLatency         *prometheus.HistogramVec
	ASRErrors          *prometheus.CounterVec

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Callout metrics
	CalloutsEmitted *prometheus.CounterVec

	// Event publish metrics
	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec
}

// Default is the global metrics instance.
var Default = New()

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total audio frames pushed into the chunkers",
		}),
		SamplesInput: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_input_total",
			Help:      "Total raw input samples received before resampling",
		}),
		ChunksEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_emitted_total",
			Help:      "Total fixed-size PCM chunks emitted",
		}),

		NoiseFloor: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "noise_floor",
			Help:      "Current smoothed noise floor estimate per source",
		}, []string{"source"}),

		SegmentsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_created_total",
			Help:      "Total speech segments started",
		}, []string{"source"}),
		SegmentsFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_finalized_total",
			Help:      "Total speech segments handed to the dispatcher",
		}, []string{"source"}),
		SegmentsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_dropped_total",
			Help:      "Total speech segments dropped by retention filtering",
		}, []string{"source", "reason"}),

		DispatchQueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Segments waiting for transcription per source",
		}, []string{"source"}),
		ASRLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asr_latency_seconds",
			Help:      "Transcription backend call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider", "mode"}),
		ASRErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asr_errors_total",
			Help:      "Total transcription backend failures",
		}, []string{"provider"}),

		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total partial transcripts fanned out",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total final transcripts fanned out",
		}),

		CalloutsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callouts_emitted_total",
			Help:      "Total callouts emitted",
		}, []string{"kind"}),

		PublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total events published to the event sink",
		}, []string{"topic", "event_type"}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total event sink publish errors",
		}, []string{"topic", "event_type"}),
		PublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Event sink publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordFrame records one input frame and its raw sample count.
func (m *Metrics) RecordFrame(samples int) {
	m.FramesReceived.Inc()
	m.SamplesInput.Add(float64(samples))
}

// RecordChunk records a chunk emission.
func (m *Metrics) RecordChunk() {
	m.ChunksEmitted.Inc()
}

// RecordNoiseFloor records the current noise floor for a source.
func (m *Metrics) RecordNoiseFloor(source string, floor float64) {
	m.NoiseFloor.WithLabelValues(source).Set(floor)
}

// RecordSegmentCreated records a new segment being started.
func (m *Metrics) RecordSegmentCreated(source string) {
	m.SegmentsCreated.WithLabelValues(source).Inc()
}

// RecordSegmentFinalized records a segment handed to the dispatcher.
func (m *Metrics) RecordSegmentFinalized(source string) {
	m.SegmentsFinalized.WithLabelValues(source).Inc()
}

// RecordSegmentDropped records a segment dropped by retention filtering.
func (m *Metrics) RecordSegmentDropped(source, reason string) {
	m.SegmentsDropped.WithLabelValues(source, reason).Inc()
}

// SetQueueDepth records the dispatcher queue depth for a source.
func (m *Metrics) SetQueueDepth(source string, depth int) {
	m.DispatchQueueDepth.WithLabelValues(source).Set(float64(depth))
}

// RecordASRCall records one backend call's latency, and its failure if any.
func (m *Metrics) RecordASRCall(provider, mode string, seconds float64, err error) {
	m.ASRLatency.WithLabelValues(provider, mode).Observe(seconds)
	if err != nil {
		m.ASRErrors.WithLabelValues(provider).Inc()
	}
}

// RecordPartialTranscript records a partial transcript fan-out.
func (m *Metrics) RecordPartialTranscript() {
	m.TranscriptsPartial.Inc()
}

// RecordFinalTranscript records a final transcript fan-out.
func (m *Metrics) RecordFinalTranscript() {
	m.TranscriptsFinal.Inc()
}

// RecordCallout records an emitted callout; kind is "partial" or "final".
func (m *Metrics) RecordCallout(kind string) {
	m.CalloutsEmitted.WithLabelValues(kind).Inc()
}

// RecordPublish records an event sink publish attempt.
func (m *Metrics) RecordPublish(topic, eventType string, err error, latencySeconds float64) {
	m.PublishTotal.WithLabelValues(topic, eventType).Inc()
	m.PublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.PublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
