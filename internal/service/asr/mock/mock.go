// Package mock provides a scripted transcription provider for tests and for
// running the pipeline without backend credentials. It simulates realistic
// behavior: progressive partial transcripts followed by exactly one final
// result per segment.
package mock

import (
	"context"
	"sync"
	"time"

	"meeting-audio-pipeline/internal/service/asr"
	"meeting-audio-pipeline/internal/service/audio"
)

// Utterance is a scripted transcription with progressive partials.
type Utterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances provides sample meeting speech for simulation.
var DefaultUtterances = []Utterance{
	{
		Partials:   []string{"We should", "We should finalize", "We should finalize the rollout"},
		Final:      "We should finalize the rollout plan this week",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"Can you", "Can you send the"},
		Final:      "Can you send the updated numbers after the call",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"This is", "This is urgent we"},
		Final:      "This is urgent we need the fix deployed today",
		Confidence: 0.96,
	},
	{
		Partials:   []string{"Agreed", "Agreed let's go"},
		Final:      "Agreed let's go with the second option",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"I'll follow"},
		Final:      "I'll follow up with the vendor tomorrow",
		Confidence: 0.93,
	},
}

// Provider implements asr.StreamingProvider with scripted responses, cycling
// through its utterance list one segment at a time.
type Provider struct {
	mu         sync.Mutex
	utterances []Utterance
	next       int
	delay      time.Duration

	// FailSegments marks segment IDs whose transcription should fail,
	// for exercising the dispatcher's failure containment.
	FailSegments map[string]bool
}

// New creates a mock provider with the default utterances.
func New() *Provider {
	return NewWithUtterances(DefaultUtterances)
}

// NewWithUtterances creates a mock provider with a custom script.
func NewWithUtterances(utterances []Utterance) *Provider {
	return &Provider{
		utterances: utterances,
		delay:      10 * time.Millisecond,
	}
}

// Name identifies the backend.
func (p *Provider) Name() string { return "mock" }

func (p *Provider) take(segmentID string) (Utterance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailSegments[segmentID] {
		return Utterance{}, false
	}
	u := p.utterances[p.next%len(p.utterances)]
	p.next++
	return u, true
}

// TranscribeSegment returns the next scripted final transcript.
func (p *Provider) TranscribeSegment(ctx context.Context, seg *audio.Segment) (*asr.Result, error) {
	u, ok := p.take(seg.ID)
	if !ok {
		return nil, errSimulatedFailure
	}

	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &asr.Result{
		SegmentID:  seg.ID,
		Transcript: u.Final,
		Confidence: u.Confidence,
		Language:   "en",
	}, nil
}

// TranscribeSegmentStreaming emits the scripted partials, then the final.
func (p *Provider) TranscribeSegmentStreaming(ctx context.Context, seg *audio.Segment, onPartial asr.PartialFunc) (*asr.Result, error) {
	u, ok := p.take(seg.ID)
	if !ok {
		return nil, errSimulatedFailure
	}

	for _, text := range u.Partials {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if onPartial != nil {
			onPartial(asr.PartialTranscript{
				SegmentID: seg.ID,
				Text:      text,
				IsFinal:   false,
				Timestamp: time.Now(),
			})
		}
	}

	if onPartial != nil {
		onPartial(asr.PartialTranscript{
			SegmentID:  seg.ID,
			Text:       u.Final,
			IsFinal:    true,
			Timestamp:  time.Now(),
			Confidence: u.Confidence,
		})
	}

	return &asr.Result{
		SegmentID:  seg.ID,
		Transcript: u.Final,
		Confidence: u.Confidence,
		Language:   "en",
	}, nil
}

type simulatedFailure struct{}

func (simulatedFailure) Error() string { return "simulated transcription failure" }

var errSimulatedFailure = simulatedFailure{}
