// Package asr defines the transcription provider contract and the ordered
// dispatch of speech segments to a backend.
package asr

import (
	"context"
	"time"

	"meeting-audio-pipeline/internal/service/audio"
)

// Word is a word-level slice of a transcript with absolute timestamps
// derived from the segment's start.
type Word struct {
	Text       string
	Start      time.Time
	End        time.Time
	Confidence float64
}

// Result is the final transcription of exactly one segment. At most one
// Result is produced per segment; a failed backend call produces none.
// Duration is stamped by the dispatcher from the segment, not the backend.
type Result struct {
	SegmentID  string
	Transcript string
	Words      []Word // optional
	Confidence float64
	Language   string
	Duration   time.Duration
}

// PartialTranscript is an interim, possibly-revised transcript emitted by a
// streaming backend before the segment's final Result. Zero or more per
// segment; the last one typically, but not necessarily, has IsFinal set.
type PartialTranscript struct {
	SegmentID  string
	Text       string
	IsFinal    bool
	Timestamp  time.Time
	Confidence float64
}

// ResultFunc receives final results.
type ResultFunc func(*Result)

// PartialFunc receives partial transcripts.
type PartialFunc func(PartialTranscript)

// Provider is a transcription backend accepting one segment per call.
type Provider interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// TranscribeSegment performs a single request/response transcription.
	TranscribeSegment(ctx context.Context, seg *audio.Segment) (*Result, error)
}

// StreamingProvider is a Provider that can additionally deliver partial
// transcripts while a segment is being transcribed. The dispatcher prefers
// this path whenever the provider implements it and a partial callback is
// registered.
type StreamingProvider interface {
	Provider

	// TranscribeSegmentStreaming transcribes one segment, invoking onPartial
	// zero or more times before resolving with the final Result.
	TranscribeSegmentStreaming(ctx context.Context, seg *audio.Segment, onPartial PartialFunc) (*Result, error)
}
