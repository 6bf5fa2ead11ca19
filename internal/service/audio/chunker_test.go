package audio

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestResample_EqualRatesReturnsCopy(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)

	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	out[0] = 99
	if in[0] != 0.1 {
		t.Error("expected output to be a copy, input was mutated")
	}
}

func TestResample_Downsample(t *testing.T) {
	in := make([]float32, 480) // 10ms at 48kHz
	out := Resample(in, 48000, 16000)

	if len(out) != 160 {
		t.Errorf("expected 160 samples, got %d", len(out))
	}
}

func TestResample_Upsample(t *testing.T) {
	in := []float32{0, 1}
	out := Resample(in, 8000, 16000)

	if len(out) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(out))
	}
	// ratio 0.5: positions 0, 0.5, 1.0, 1.5; the last holds in[1]
	want := []float32{0, 0.5, 1, 1}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestResample_Empty(t *testing.T) {
	if out := Resample(nil, 48000, 16000); len(out) != 0 {
		t.Errorf("expected empty output, got %d samples", len(out))
	}
}

func TestResample_PreservesConstantSignal(t *testing.T) {
	in := make([]float32, 441)
	for i := range in {
		in[i] = 0.25
	}
	out := Resample(in, 44100, 16000)

	for i, s := range out {
		if math.Abs(float64(s)-0.25) > 1e-6 {
			t.Fatalf("sample %d: expected 0.25, got %v", i, s)
		}
	}
}

func TestChunker_EmitsFullChunks(t *testing.T) {
	var chunks []Chunk
	c := NewChunker(ChunkerConfig{TargetSampleRate: 16000, ChunkDuration: 100 * time.Millisecond},
		func(ch Chunk) { chunks = append(chunks, ch) }, zerolog.Nop())

	// 100ms chunks at 16kHz = 1600 samples per chunk
	c.AddFrame(make([]float32, 1000), 16000)
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks yet, got %d", len(chunks))
	}
	if c.PendingSamples() != 1000 {
		t.Errorf("expected 1000 pending, got %d", c.PendingSamples())
	}

	c.AddFrame(make([]float32, 1000), 16000)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if len(chunks[0].Samples) != 1600 {
		t.Errorf("expected 1600 samples per chunk, got %d", len(chunks[0].Samples))
	}
	if c.PendingSamples() != 400 {
		t.Errorf("expected 400 pending, got %d", c.PendingSamples())
	}
}

func TestChunker_EmitsMultipleChunksFromOneFrame(t *testing.T) {
	var chunks []Chunk
	c := NewChunker(ChunkerConfig{TargetSampleRate: 16000, ChunkDuration: 100 * time.Millisecond},
		func(ch Chunk) { chunks = append(chunks, ch) }, zerolog.Nop())

	c.AddFrame(make([]float32, 4000), 16000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if c.PendingSamples() != 800 {
		t.Errorf("expected 800 pending, got %d", c.PendingSamples())
	}
}

func TestChunker_ResamplesInput(t *testing.T) {
	var chunks []Chunk
	c := NewChunker(ChunkerConfig{TargetSampleRate: 16000, ChunkDuration: 100 * time.Millisecond},
		func(ch Chunk) { chunks = append(chunks, ch) }, zerolog.Nop())

	// 100ms at 48kHz resamples to exactly one chunk
	c.AddFrame(make([]float32, 4800), 48000)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if c.PendingSamples() != 0 {
		t.Errorf("expected 0 pending, got %d", c.PendingSamples())
	}
}

func TestChunker_Timestamps(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	var chunks []Chunk

	c := NewChunker(ChunkerConfig{TargetSampleRate: 16000, ChunkDuration: 100 * time.Millisecond},
		func(ch Chunk) { chunks = append(chunks, ch) }, zerolog.Nop())
	c.now = func() time.Time { return clock }
	c.chunkStart = base

	clock = base.Add(100 * time.Millisecond)
	c.AddFrame(make([]float32, 3200), 16000)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !chunks[0].Start.Equal(base) {
		t.Errorf("first chunk start: expected %v, got %v", base, chunks[0].Start)
	}
	// consecutive chunks share a boundary instant
	if !chunks[1].Start.Equal(chunks[0].End) {
		t.Errorf("expected second chunk to start at first chunk's end")
	}
}

func TestChunker_Reset(t *testing.T) {
	c := NewChunker(DefaultChunkerConfig(), nil, zerolog.Nop())
	c.AddFrame(make([]float32, 500), 16000)
	c.Reset()
	if c.PendingSamples() != 0 {
		t.Errorf("expected 0 pending after reset, got %d", c.PendingSamples())
	}
}
