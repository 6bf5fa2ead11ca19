// Package schema validates event payloads before they are published.
package schema

import (
	"errors"
	"fmt"

	"meeting-audio-pipeline/internal/models"
)

var errUnknownEvent = errors.New("unknown event type")

// Validator checks that required event fields are populated.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate returns an error describing the first missing required field.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.TranscriptPartial:
		return validateCommon(e.EventType, e.MeetingID, e.Source, e.SegmentID, e.Timestamp)
	case *models.TranscriptPartial:
		return validateCommon(e.EventType, e.MeetingID, e.Source, e.SegmentID, e.Timestamp)
	case models.TranscriptFinal:
		if e.Text == "" {
			return errors.New("transcript final: empty text")
		}
		return validateCommon(e.EventType, e.MeetingID, e.Source, e.SegmentID, e.Timestamp)
	case *models.TranscriptFinal:
		if e.Text == "" {
			return errors.New("transcript final: empty text")
		}
		return validateCommon(e.EventType, e.MeetingID, e.Source, e.SegmentID, e.Timestamp)
	case models.Callout:
		if e.CalloutID == "" {
			return errors.New("callout: missing calloutId")
		}
		return validateCommon(e.EventType, e.MeetingID, e.Source, e.SegmentID, e.Timestamp)
	case *models.Callout:
		if e.CalloutID == "" {
			return errors.New("callout: missing calloutId")
		}
		return validateCommon(e.EventType, e.MeetingID, e.Source, e.SegmentID, e.Timestamp)
	default:
		return fmt.Errorf("%w: %T", errUnknownEvent, event)
	}
}

func validateCommon(eventType, meetingID, source, segmentID string, timestamp int64) error {
	if eventType == "" {
		return errors.New("missing eventType")
	}
	if meetingID == "" {
		return errors.New("missing meetingId")
	}
	if source == "" {
		return errors.New("missing source")
	}
	if segmentID == "" {
		return errors.New("missing segmentId")
	}
	if timestamp == 0 {
		return errors.New("missing timestamp")
	}
	return nil
}
