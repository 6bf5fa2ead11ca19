// Package models defines the event payloads published downstream.
package models

// TranscriptPartial represents an interim transcript for a segment still
// being transcribed by a streaming provider.
type TranscriptPartial struct {
	EventType  string  `json:"eventType"`
	MeetingID  string  `json:"meetingId"`
	Source     string  `json:"source"`
	SegmentID  string  `json:"segmentId"`
	Timestamp  int64   `json:"timestamp"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TranscriptFinal represents the final transcript for a segment.
type TranscriptFinal struct {
	EventType  string  `json:"eventType"`
	MeetingID  string  `json:"meetingId"`
	Source     string  `json:"source"`
	SegmentID  string  `json:"segmentId"`
	Timestamp  int64   `json:"timestamp"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	DurationMs int64   `json:"durationMs"`
	Language   string  `json:"language,omitempty"`
}

// Callout represents a high-urgency phrase detected in a transcript.
type Callout struct {
	EventType  string  `json:"eventType"`
	MeetingID  string  `json:"meetingId"`
	Source     string  `json:"source"`
	SegmentID  string  `json:"segmentId"`
	CalloutID  string  `json:"calloutId"`
	Timestamp  int64   `json:"timestamp"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsPartial  bool    `json:"isPartial"`
}

const (
	EventTypeTranscriptPartial = "transcript.partial"
	EventTypeTranscriptFinal   = "transcript.final"
	EventTypeCallout           = "callout.detected"
)
