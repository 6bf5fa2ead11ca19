package segment

import (
	"errors"
	"fmt"
	"sync"
)

// DispatchState is the lifecycle of one segment inside the transcription
// dispatcher, from enqueue to result delivery.
type DispatchState int

const (
	// DispatchOpen - transcription in flight, partial transcripts may fan out.
	DispatchOpen DispatchState = iota
	// DispatchFinalDelivered - the single final result has been delivered.
	DispatchFinalDelivered
	// DispatchFailed - the backend call failed; no result was or will be
	// produced for this segment. Terminal.
	DispatchFailed
)

// String returns the string representation of the state.
func (s DispatchState) String() string {
	switch s {
	case DispatchOpen:
		return "OPEN"
	case DispatchFinalDelivered:
		return "FINAL_DELIVERED"
	case DispatchFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// IsTerminal reports whether no further fan-out may happen for the segment.
func (s DispatchState) IsTerminal() bool {
	return s == DispatchFinalDelivered || s == DispatchFailed
}

// Errors for invalid fan-out attempts.
var (
	ErrFinalAlreadyDelivered = errors.New("final result already delivered for this segment")
	ErrSegmentFailed         = errors.New("segment transcription failed")
	ErrPartialAfterFinal     = errors.New("cannot deliver partial after final result")
)

// Dispatch tracks the fan-out state of a single segment: any number of
// partials while open, exactly one final, nothing after failure.
//
// Transitions:
//
//	OPEN ── DeliverFinal() ──→ FINAL_DELIVERED
//	  │
//	  └──── Fail() ──────────→ FAILED
//
// Thread-safe: the streaming backend delivers partials from its read loop
// while the drain goroutine owns the final.
type Dispatch struct {
	mu        sync.RWMutex
	segmentID string
	state     DispatchState
}

// NewDispatch creates the dispatch tracking for a segment in OPEN state.
func NewDispatch(segmentID string) *Dispatch {
	return &Dispatch{segmentID: segmentID, state: DispatchOpen}
}

// SegmentID returns the tracked segment's ID.
func (d *Dispatch) SegmentID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.segmentID
}

// State returns the current dispatch state.
func (d *Dispatch) State() DispatchState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// DeliverPartial validates a partial fan-out. It does not change state;
// partials are allowed any number of times while the segment is open.
func (d *Dispatch) DeliverPartial() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch d.state {
	case DispatchOpen:
		return nil
	case DispatchFinalDelivered:
		return ErrPartialAfterFinal
	case DispatchFailed:
		return ErrSegmentFailed
	default:
		return fmt.Errorf("unexpected state: %v", d.state)
	}
}

// DeliverFinal validates and records the final result delivery. Succeeds at
// most once per segment.
func (d *Dispatch) DeliverFinal() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case DispatchOpen:
		d.state = DispatchFinalDelivered
		return nil
	case DispatchFinalDelivered:
		return ErrFinalAlreadyDelivered
	case DispatchFailed:
		return ErrSegmentFailed
	default:
		return fmt.Errorf("unexpected state: %v", d.state)
	}
}

// Fail marks the segment's transcription as failed. The segment produces no
// result; the queue moves on. Returns false if already terminal.
func (d *Dispatch) Fail() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.IsTerminal() {
		return false
	}
	d.state = DispatchFailed
	return true
}
