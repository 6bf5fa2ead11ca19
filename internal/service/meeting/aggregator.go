package meeting

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meeting-audio-pipeline/internal/service/asr"
	"meeting-audio-pipeline/internal/service/audio"
)

// State is the meeting lifecycle.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	StateEnded  State = "ended"
)

// Result is everything produced for one ended meeting.
type Result struct {
	MeetingID   string
	Segments    []*audio.Segment
	Transcripts map[string]*asr.Result
	Sources     map[string]string // segment ID -> audio source
	ActionItems []ActionItem
	Notes       Notes
	Markdown    string
}

// Aggregator collects finalized segments and transcripts for the active
// meeting and builds notes when the meeting ends. It is a plain consumer of
// the pipeline's output; late results arriving after End are discarded with
// the meeting already closed.
//
// Thread-safe: both pipelines feed it concurrently.
type Aggregator struct {
	mu          sync.Mutex
	state       State
	meetingID   string
	startedAt   time.Time
	segments    []*audio.Segment
	transcripts map[string]*asr.Result
	sources     map[string]string

	extractor *Extractor
	notes     *NotesBuilder
	log       zerolog.Logger
}

// NewAggregator creates an idle aggregator.
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		state:     StateIdle,
		extractor: NewExtractor(),
		notes:     NewNotesBuilder(),
		log:       log,
	}
}

// Start opens a new meeting. Returns its generated ID; a no-op returning the
// current ID when a meeting is already active.
func (a *Aggregator) Start() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateActive {
		a.log.Warn().Msg("meeting already active")
		return a.meetingID
	}

	a.state = StateActive
	a.meetingID = uuid.NewString()
	a.startedAt = time.Now()
	a.segments = nil
	a.transcripts = make(map[string]*asr.Result)
	a.sources = make(map[string]string)

	a.log.Info().Str("meetingId", a.meetingID).Msg("meeting started")
	return a.meetingID
}

// MeetingID returns the active meeting's ID, or "" when idle.
func (a *Aggregator) MeetingID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateActive {
		return ""
	}
	return a.meetingID
}

// State returns the current meeting state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// AddSegment records a finalized segment with its source attribution.
// Ignored when no meeting is active.
func (a *Aggregator) AddSegment(source string, seg *audio.Segment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateActive {
		return
	}
	a.segments = append(a.segments, seg)
	a.sources[seg.ID] = source
}

// AddResult records a final transcript for a segment. Ignored when no
// meeting is active (including results arriving after the meeting ended).
func (a *Aggregator) AddResult(result *asr.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateActive {
		return
	}
	a.transcripts[result.SegmentID] = result
}

// End closes the active meeting, extracts action items and builds notes.
// Returns nil when no meeting is active.
func (a *Aggregator) End() *Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateActive {
		a.log.Warn().Msg("no active meeting to end")
		return nil
	}

	// Feed the extractor in segment order so item numbering is stable
	// across runs.
	ordered := make([]*audio.Segment, len(a.segments))
	copy(ordered, a.segments)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Start.Before(ordered[j].Start)
	})
	results := make([]*asr.Result, 0, len(a.transcripts))
	for _, seg := range ordered {
		if r, ok := a.transcripts[seg.ID]; ok {
			results = append(results, r)
		}
	}
	actions := a.extractor.Extract(results)
	notes := a.notes.Build(a.segments, a.transcripts, actions)

	a.log.Info().
		Str("meetingId", a.meetingID).
		Int("segments", len(a.segments)).
		Int("transcripts", len(a.transcripts)).
		Int("actionItems", len(actions)).
		Msg("meeting ended, notes generated")

	r := &Result{
		MeetingID:   a.meetingID,
		Segments:    a.segments,
		Transcripts: a.transcripts,
		Sources:     a.sources,
		ActionItems: actions,
		Notes:       notes,
		Markdown:    a.notes.Markdown(notes),
	}

	a.state = StateEnded
	a.meetingID = ""
	return r
}

// Reset returns the aggregator to idle, discarding any collected state.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateIdle
	a.meetingID = ""
	a.segments = nil
	a.transcripts = nil
	a.sources = nil
}
