package asr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/service/audio"
)

// fakeProvider is a batch-only backend with per-segment delays and failures.
type fakeProvider struct {
	mu     sync.Mutex
	delays map[string]time.Duration
	fails  map[string]bool
	calls  []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) TranscribeSegment(ctx context.Context, seg *audio.Segment) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, seg.ID)
	delay := f.delays[seg.ID]
	fail := f.fails[seg.ID]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, errors.New("backend unavailable")
	}
	return &Result{SegmentID: seg.ID, Transcript: "text for " + seg.ID, Confidence: 0.9}, nil
}

// fakeStreamingProvider emits two partials before the final.
type fakeStreamingProvider struct {
	fakeProvider
	streamCalls int
}

func (f *fakeStreamingProvider) TranscribeSegmentStreaming(ctx context.Context, seg *audio.Segment, onPartial PartialFunc) (*Result, error) {
	f.mu.Lock()
	f.streamCalls++
	f.mu.Unlock()

	for _, text := range []string{"par", "partial"} {
		onPartial(PartialTranscript{SegmentID: seg.ID, Text: text})
	}
	return &Result{SegmentID: seg.ID, Transcript: "final", Confidence: 0.95}, nil
}

func seg(id string) *audio.Segment {
	return &audio.Segment{ID: id}
}

func collectResults(d *Dispatcher, want int) ([]*Result, chan struct{}) {
	results := make([]*Result, 0, want)
	done := make(chan struct{})
	var mu sync.Mutex
	d.SetResultCallback(func(r *Result) {
		mu.Lock()
		results = append(results, r)
		n := len(results)
		mu.Unlock()
		if n == want {
			close(done)
		}
	})
	return results, done
}

func waitOrFail(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for results")
	}
}

func TestDispatcher_ResultsArriveInEnqueueOrder(t *testing.T) {
	provider := &fakeProvider{
		delays: map[string]time.Duration{"mic-seg-1": 50 * time.Millisecond},
	}
	d := NewDispatcher(provider, "mic", zerolog.Nop())

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	d.SetResultCallback(func(r *Result) {
		mu.Lock()
		order = append(order, r.SegmentID)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	})

	// the slow first segment must not be overtaken by the fast ones
	d.Enqueue(seg("mic-seg-1"))
	d.Enqueue(seg("mic-seg-2"))
	d.Enqueue(seg("mic-seg-3"))
	waitOrFail(t, done)

	want := []string{"mic-seg-1", "mic-seg-2", "mic-seg-3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("result order %v, expected %v", order, want)
		}
	}
}

func TestDispatcher_EnqueueDoesNotBlock(t *testing.T) {
	provider := &fakeProvider{
		delays: map[string]time.Duration{"mic-seg-1": 200 * time.Millisecond},
	}
	d := NewDispatcher(provider, "mic", zerolog.Nop())

	start := time.Now()
	d.Enqueue(seg("mic-seg-1"))
	d.Enqueue(seg("mic-seg-2"))
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Enqueue blocked for %v", elapsed)
	}
}

func TestDispatcher_FailureIsContainedPerSegment(t *testing.T) {
	provider := &fakeProvider{
		fails: map[string]bool{"mic-seg-1": true},
	}
	d := NewDispatcher(provider, "mic", zerolog.Nop())

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	d.SetResultCallback(func(r *Result) {
		mu.Lock()
		got = append(got, r.SegmentID)
		mu.Unlock()
		close(done)
	})

	d.Enqueue(seg("mic-seg-1"))
	d.Enqueue(seg("mic-seg-2"))
	waitOrFail(t, done)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "mic-seg-2" {
		t.Errorf("expected only mic-seg-2 to produce a result, got %v", got)
	}
}

func TestDispatcher_DrainsToIdle(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider, "mic", zerolog.Nop())

	_, done := collectResults(d, 2)
	d.Enqueue(seg("mic-seg-1"))
	d.Enqueue(seg("mic-seg-2"))
	waitOrFail(t, done)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !d.Processing() && d.QueueLen() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("dispatcher did not return to idle: processing=%v queue=%d", d.Processing(), d.QueueLen())
}

func TestDispatcher_StreamingPathDeliversPartials(t *testing.T) {
	provider := &fakeStreamingProvider{}
	d := NewDispatcher(provider, "mic", zerolog.Nop())

	var mu sync.Mutex
	var partials []string
	d.SetPartialCallback(func(p PartialTranscript) {
		mu.Lock()
		partials = append(partials, p.Text)
		mu.Unlock()
	})
	_, done := collectResults(d, 1)

	d.Enqueue(seg("mic-seg-1"))
	waitOrFail(t, done)

	mu.Lock()
	if len(partials) != 2 {
		t.Errorf("expected 2 partials, got %d", len(partials))
	}
	mu.Unlock()

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if provider.streamCalls != 1 {
		t.Errorf("expected 1 streaming call, got %d", provider.streamCalls)
	}
}

func TestDispatcher_StampsSegmentDurationOnResult(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider, "mic", zerolog.Nop())

	var got time.Duration
	done := make(chan struct{})
	d.SetResultCallback(func(r *Result) {
		got = r.Duration
		close(done)
	})

	start := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	d.Enqueue(&audio.Segment{ID: "mic-seg-1", Start: start, End: start.Add(1500 * time.Millisecond)})
	waitOrFail(t, done)

	if got != 1500*time.Millisecond {
		t.Errorf("expected result duration 1.5s from the segment, got %v", got)
	}
}

func TestDispatcher_BatchPathWithoutPartialCallback(t *testing.T) {
	provider := &fakeStreamingProvider{}
	d := NewDispatcher(provider, "mic", zerolog.Nop())

	_, done := collectResults(d, 1)
	d.Enqueue(seg("mic-seg-1"))
	waitOrFail(t, done)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if provider.streamCalls != 0 {
		t.Errorf("expected batch path without a partial consumer, got %d streaming calls", provider.streamCalls)
	}
	if len(provider.calls) != 1 {
		t.Errorf("expected 1 batch call, got %d", len(provider.calls))
	}
}
