// Package audio implements the real-time segmentation pipeline: fixed-rate
// chunking with resampling, adaptive noise-floor estimation, energy-based
// voice activity classification, and speech segment assembly.
package audio

import (
	"time"

	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/observability/metrics"
)

// Chunk is a fixed-duration window of mono PCM at the target sample rate.
// Timestamps are wall-clock processing instants, not sample-derived time:
// Start is the End of the previous chunk (or chunker creation time for the
// first one) and End is taken when the chunk is emitted.
type Chunk struct {
	Samples []float32
	Start   time.Time
	End     time.Time
}

// Duration returns the wall-clock span covered by the chunk.
func (c Chunk) Duration() time.Duration {
	return c.End.Sub(c.Start)
}

// ChunkFunc receives emitted chunks. Called synchronously from AddFrame.
type ChunkFunc func(Chunk)

// ChunkerConfig controls the output rate and window size of a Chunker.
type ChunkerConfig struct {
	TargetSampleRate int           // output rate, Hz
	ChunkDuration    time.Duration // audio per emitted chunk
}

// DefaultChunkerConfig returns the standard 16 kHz / 1 s windowing.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		TargetSampleRate: 16000,
		ChunkDuration:    time.Second,
	}
}

// Chunker normalizes arbitrary-rate input frames to a single target rate and
// re-windows them into fixed-size chunks. Chunk boundaries are independent of
// input frame boundaries; partial frames are split and the remainder carried
// into the next chunk.
//
// Not safe for concurrent use: a Chunker is owned by a single capture
// callback, per the single-writer discipline of the pipeline.
type Chunker struct {
	cfg             ChunkerConfig
	samplesPerChunk int
	pending         []float32
	chunkStart      time.Time
	onChunk         ChunkFunc
	log             zerolog.Logger
	now             func() time.Time
}

// NewChunker creates a chunker emitting into onChunk.
func NewChunker(cfg ChunkerConfig, onChunk ChunkFunc, log zerolog.Logger) *Chunker {
	if cfg.TargetSampleRate <= 0 {
		cfg.TargetSampleRate = 16000
	}
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = time.Second
	}
	c := &Chunker{
		cfg:             cfg,
		samplesPerChunk: int(float64(cfg.TargetSampleRate) * cfg.ChunkDuration.Seconds()),
		onChunk:         onChunk,
		log:             log,
		now:             time.Now,
	}
	c.chunkStart = c.now()
	return c
}

// AddFrame resamples a caller-owned frame to the target rate, appends it to
// the pending buffer and greedily emits as many full chunks as the buffer now
// supports. The input slice is not retained.
func (c *Chunker) AddFrame(samples []float32, inputRate int) {
	resampled := Resample(samples, inputRate, c.cfg.TargetSampleRate)
	c.pending = append(c.pending, resampled...)
	metrics.Default.RecordFrame(len(samples))

	for len(c.pending) >= c.samplesPerChunk {
		c.emit()
	}
}

func (c *Chunker) emit() {
	samples := make([]float32, c.samplesPerChunk)
	copy(samples, c.pending[:c.samplesPerChunk])
	remainder := len(c.pending) - c.samplesPerChunk
	copy(c.pending, c.pending[c.samplesPerChunk:])
	c.pending = c.pending[:remainder]

	end := c.now()
	chunk := Chunk{
		Samples: samples,
		Start:   c.chunkStart,
		End:     end,
	}
	c.chunkStart = end

	metrics.Default.RecordChunk()
	c.log.Debug().
		Dur("span", chunk.Duration()).
		Int("samples", len(samples)).
		Msg("chunk emitted")

	if c.onChunk != nil {
		c.onChunk(chunk)
	}
}

// PendingSamples reports how many resampled samples are buffered but not yet
// emitted. Always < samples-per-chunk after AddFrame returns.
func (c *Chunker) PendingSamples() int {
	return len(c.pending)
}

// Reset discards any buffered samples. Idempotent; the chunker holds no other
// resources.
func (c *Chunker) Reset() {
	c.pending = c.pending[:0]
	c.chunkStart = c.now()
}

// Resample converts PCM from inputRate to outputRate using linear
// interpolation. The output holds floor(len(in) * outputRate / inputRate)
// samples; past the last input sample the final value is held constant. Equal
// rates return a copy so the caller keeps ownership of its buffer.
func Resample(in []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	if len(in) == 0 {
		return nil
	}

	ratio := float64(inputRate) / float64(outputRate)
	outLen := int(float64(len(in)) / ratio)
	out := make([]float32, outLen)

	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		if idx+1 < len(in) {
			out[i] = in[idx]*float32(1-frac) + in[idx+1]*float32(frac)
		} else {
			out[i] = in[idx]
		}
	}
	return out
}
