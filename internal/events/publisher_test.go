package events

import (
	"context"
	"testing"

	"meeting-audio-pipeline/internal/models"
)

func validFinal() models.TranscriptFinal {
	return models.TranscriptFinal{
		MeetingID:  "m-1",
		Source:     "mic",
		SegmentID:  "mic-seg-1",
		Timestamp:  1717230000000,
		Text:       "hello world",
		Confidence: 0.9,
	}
}

func TestPublisher_NilConfigIsLogOnly(t *testing.T) {
	p := New(nil)

	if err := p.PublishFinal(context.Background(), validFinal()); err != nil {
		t.Errorf("log-only publish failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestPublisher_DisabledConfigIsLogOnly(t *testing.T) {
	p := New(&Config{
		Enabled:      false,
		TopicPartial: "t.partial",
		TopicFinal:   "t.final",
		TopicCallout: "t.callout",
	})

	if err := p.PublishPartial(context.Background(), models.TranscriptPartial{
		MeetingID: "m-1", Source: "mic", SegmentID: "mic-seg-1", Timestamp: 1,
	}); err != nil {
		t.Errorf("partial publish failed: %v", err)
	}
	if err := p.PublishCallout(context.Background(), models.Callout{
		MeetingID: "m-1", Source: "mic", SegmentID: "mic-seg-1",
		CalloutID: "c-1", Timestamp: 1,
	}); err != nil {
		t.Errorf("callout publish failed: %v", err)
	}
}

func TestPublisher_SetsEventType(t *testing.T) {
	p := New(nil)

	// event type is stamped before validation, so a zero EventType passes
	ev := validFinal()
	ev.EventType = ""
	if err := p.PublishFinal(context.Background(), ev); err != nil {
		t.Errorf("expected event type to be stamped, got %v", err)
	}
}

func TestPublisher_RejectsInvalidEvent(t *testing.T) {
	p := New(nil)

	ev := validFinal()
	ev.SegmentID = ""
	if err := p.PublishFinal(context.Background(), ev); err == nil {
		t.Error("expected validation error for missing segment ID")
	}
}
