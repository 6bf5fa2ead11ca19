package asr

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/observability/metrics"
	"meeting-audio-pipeline/internal/service/audio"
	"meeting-audio-pipeline/internal/service/segment"
)

// Dispatcher serializes segment submission to a transcription backend: at
// most one call is in flight per stream, segments go out strictly in the
// order they were enqueued, and results therefore come back in the same
// order. Enqueue never blocks the caller.
//
// A backend failure is contained per segment: it is logged and counted, the
// segment produces no result, and the drain loop moves on to the next
// queued segment.
type Dispatcher struct {
	provider Provider
	source   string

	mu       sync.Mutex
	queue    []*audio.Segment
	draining bool

	onResult  ResultFunc
	onPartial PartialFunc

	log zerolog.Logger
}

// NewDispatcher creates a dispatcher for one stream.
func NewDispatcher(provider Provider, source string, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		source:   source,
		log:      log,
	}
}

// SetResultCallback registers the single final-result consumer. Optional;
// without it final results are not fanned out.
func (d *Dispatcher) SetResultCallback(fn ResultFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onResult = fn
}

// SetPartialCallback registers the single partial-transcript consumer.
// Registering it also enables the streaming path for capable providers.
func (d *Dispatcher) SetPartialCallback(fn PartialFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onPartial = fn
}

// Enqueue appends a finalized segment to the FIFO and starts draining if the
// queue was idle. Returns immediately.
func (d *Dispatcher) Enqueue(seg *audio.Segment) {
	d.mu.Lock()
	d.queue = append(d.queue, seg)
	depth := len(d.queue)
	start := !d.draining
	if start {
		d.draining = true
	}
	d.mu.Unlock()

	metrics.Default.SetQueueDepth(d.source, depth)
	if start {
		go d.drain()
	}
}

// QueueLen reports the number of segments waiting (excluding any in flight).
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Processing reports whether a drain is in progress.
func (d *Dispatcher) Processing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draining
}

func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.mu.Unlock()
			metrics.Default.SetQueueDepth(d.source, 0)
			return
		}
		seg := d.queue[0]
		d.queue = d.queue[1:]
		depth := len(d.queue)
		onResult := d.onResult
		onPartial := d.onPartial
		d.mu.Unlock()

		metrics.Default.SetQueueDepth(d.source, depth)
		d.transcribe(seg, onResult, onPartial)
	}
}

// transcribe performs one backend call and fans out its outcome. Results for
// segments enqueued before a stream stop still arrive here after the stop;
// consumers must tolerate late delivery.
func (d *Dispatcher) transcribe(seg *audio.Segment, onResult ResultFunc, onPartial PartialFunc) {
	log := d.log.With().Str("segmentId", seg.ID).Logger()
	log.Info().
		Dur("duration", seg.Duration()).
		Str("provider", d.provider.Name()).
		Msg("transcribing segment")

	dispatch := segment.NewDispatch(seg.ID)
	ctx := context.Background()
	start := time.Now()

	var (
		result *Result
		err    error
		mode   = "batch"
	)

	sp, streaming := d.provider.(StreamingProvider)
	if streaming && onPartial != nil {
		mode = "streaming"
		result, err = sp.TranscribeSegmentStreaming(ctx, seg, func(p PartialTranscript) {
			if verr := dispatch.DeliverPartial(); verr != nil {
				log.Debug().Err(verr).Msg("partial suppressed")
				return
			}
			metrics.Default.RecordPartialTranscript()
			onPartial(p)
		})
	} else {
		result, err = d.provider.TranscribeSegment(ctx, seg)
	}

	metrics.Default.RecordASRCall(d.provider.Name(), mode, time.Since(start).Seconds(), err)

	if err != nil {
		dispatch.Fail()
		log.Error().Err(err).Msg("transcription failed, continuing with next segment")
		return
	}

	if verr := dispatch.DeliverFinal(); verr != nil {
		log.Warn().Err(verr).Msg("duplicate final suppressed")
		return
	}
	result.Duration = seg.Duration()

	log.Info().Str("transcript", result.Transcript).Msg("segment transcribed")
	metrics.Default.RecordFinalTranscript()
	if onResult != nil {
		onResult(result)
	}
}
