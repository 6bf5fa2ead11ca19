// Package segment provides segment ID generation and the per-segment
// dispatch state machine used for result fan-out.
package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator issues unique, ordered segment IDs tagged with their audio
// source so downstream consumers can attribute transcripts.
type Generator struct {
	counter uint64
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns the next ID for the given source, e.g. "mic-seg-3".
func (g *Generator) Next(source string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-seg-%d", source, n)
}
