package meeting

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"meeting-audio-pipeline/internal/service/asr"
	"meeting-audio-pipeline/internal/service/audio"
)

// Notes is the structured output of a meeting.
type Notes struct {
	Discussion  []string
	Decisions   []string
	ActionItems []string
	Metadata    NotesMetadata
}

// NotesMetadata summarizes the meeting the notes were built from.
type NotesMetadata struct {
	TotalSegments int
	TotalDuration time.Duration
	GeneratedAt   time.Time
}

var decisionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(decided|agreed|concluded|determined)\b`),
	regexp.MustCompile(`(?i)\b(we will|we'll|let's go with)\b`),
	regexp.MustCompile(`(?i)\b(final|approved|confirmed)\b`),
}

// NotesBuilder assembles structured notes from a meeting's segments,
// transcripts and action items.
type NotesBuilder struct{}

// NewNotesBuilder creates a notes builder.
func NewNotesBuilder() *NotesBuilder {
	return &NotesBuilder{}
}

// Build walks the segments chronologically, classifies each transcript line
// as decision or discussion, and formats the action items. Segments without
// a transcript contribute nothing: a missing transcript means no content for
// that interval, not an error.
func (b *NotesBuilder) Build(segments []*audio.Segment, transcripts map[string]*asr.Result, actions []ActionItem) Notes {
	sorted := make([]*audio.Segment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var discussion, decisions []string
	var totalDuration time.Duration
	for _, seg := range sorted {
		totalDuration += seg.Duration()
		result, ok := transcripts[seg.ID]
		if !ok {
			continue
		}
		if isDecision(result.Transcript) {
			decisions = append(decisions, result.Transcript)
		} else {
			discussion = append(discussion, result.Transcript)
		}
	}

	actionTexts := make([]string, 0, len(actions))
	for _, a := range actions {
		if a.Owner != "" {
			actionTexts = append(actionTexts, fmt.Sprintf("[%s] %s", a.Owner, a.Text))
		} else {
			actionTexts = append(actionTexts, a.Text)
		}
	}

	return Notes{
		Discussion:  discussion,
		Decisions:   decisions,
		ActionItems: actionTexts,
		Metadata: NotesMetadata{
			TotalSegments: len(segments),
			TotalDuration: totalDuration,
			GeneratedAt:   time.Now(),
		},
	}
}

// Markdown renders the notes as a Markdown document.
func (b *NotesBuilder) Markdown(notes Notes) string {
	var md strings.Builder
	md.WriteString("# Meeting Notes\n\n")

	fmt.Fprintf(&md, "**Date:** %s\n", notes.Metadata.GeneratedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&md, "**Duration:** %.1f minutes\n", notes.Metadata.TotalDuration.Minutes())
	fmt.Fprintf(&md, "**Segments:** %d\n\n", notes.Metadata.TotalSegments)

	md.WriteString("## Discussion\n\n")
	if len(notes.Discussion) > 0 {
		for _, item := range notes.Discussion {
			fmt.Fprintf(&md, "- %s\n", item)
		}
	} else {
		md.WriteString("*No discussion items captured*\n")
	}
	md.WriteString("\n")

	if len(notes.Decisions) > 0 {
		md.WriteString("## Decisions\n\n")
		for _, item := range notes.Decisions {
			fmt.Fprintf(&md, "- %s\n", item)
		}
		md.WriteString("\n")
	}

	if len(notes.ActionItems) > 0 {
		md.WriteString("## Action Items\n\n")
		for _, item := range notes.ActionItems {
			fmt.Fprintf(&md, "- [ ] %s\n", item)
		}
		md.WriteString("\n")
	}

	return md.String()
}

func isDecision(text string) bool {
	for _, p := range decisionPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
