// Package meeting collects finalized transcripts per meeting and turns them
// into structured notes with action items.
package meeting

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"meeting-audio-pipeline/internal/service/asr"
)

// Owner attribution for an action item, inferred heuristically from the
// indicator phrase.
const (
	OwnerOther = "assigned" // "can/could you ..." -> assigned to someone else
	OwnerSelf  = "speaker"  // "I'll / I will ..."  -> the speaker took it
)

// ActionItem is a commitment or task detected in a transcript.
type ActionItem struct {
	ID         string
	Text       string
	Owner      string // empty when no owner could be inferred
	SegmentID  string
	Confidence float64
}

type actionIndicator struct {
	expr       *regexp.Regexp
	confidence float64
	hasOwner   bool
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Extractor detects action items via indicator-phrase matching with
// per-pattern confidence.
type Extractor struct {
	indicators []actionIndicator
}

// NewExtractor creates an extractor with the built-in indicator phrases.
func NewExtractor() *Extractor {
	mk := func(expr string, conf float64, hasOwner bool) actionIndicator {
		return actionIndicator{
			expr:       regexp.MustCompile("(?i)" + expr),
			confidence: conf,
			hasOwner:   hasOwner,
		}
	}
	return &Extractor{
		indicators: []actionIndicator{
			mk(`\b(can you|could you|would you)\b`, 0.9, true),
			mk(`\b(i'll|i will|i'm going to)\b`, 0.85, true),
			mk(`\b(we should|we need to|we must)\b`, 0.8, false),
			mk(`\b(follow up|reach out|get back)\b`, 0.75, false),
			mk(`\b(let's|lets)\b`, 0.7, false),
			mk(`\b(next steps?|action items?)\b`, 0.7, false),
			mk(`\b(please|make sure to|don't forget)\b`, 0.65, false),
			mk(`\b(todo|to do|task)\b`, 0.6, false),
		},
	}
}

// Extract runs action-item detection over all transcripts, sentence by
// sentence.
func (e *Extractor) Extract(results []*asr.Result) []ActionItem {
	var items []ActionItem
	for _, r := range results {
		for _, sentence := range splitSentences(r.Transcript) {
			if item, ok := e.detect(sentence, r.SegmentID); ok {
				items = append(items, item)
			}
		}
	}
	return items
}

func (e *Extractor) detect(sentence, segmentID string) (ActionItem, bool) {
	for _, ind := range e.indicators {
		if !ind.expr.MatchString(sentence) {
			continue
		}
		owner := ""
		if ind.hasOwner {
			owner = inferOwner(sentence)
		}
		return ActionItem{
			ID:         uuid.NewString(),
			Text:       sentence,
			Owner:      owner,
			SegmentID:  segmentID,
			Confidence: ind.confidence,
		}, true
	}
	return ActionItem{}, false
}

var (
	otherOwnerExpr = regexp.MustCompile(`(?i)\b(can you|could you)\b`)
	selfOwnerExpr  = regexp.MustCompile(`(?i)\b(i'll|i will)\b`)
)

func inferOwner(sentence string) string {
	if otherOwnerExpr.MatchString(sentence) {
		return OwnerOther
	}
	if selfOwnerExpr.MatchString(sentence) {
		return OwnerSelf
	}
	return ""
}

func splitSentences(transcript string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(transcript, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
