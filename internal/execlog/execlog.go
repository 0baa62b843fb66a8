// Package execlog implements the execution log: an append-only,
// timestamped, metadata-tagged record of pipeline steps. The log is the
// single mutable collaborator threaded through the orchestrator; every
// other stage receives its predecessor's output by value.
package execlog

import (
	"time"

	"github.com/outsystems-tools/ddl-tightener/internal/clock"
)

// Entry is one immutable record in the execution log.
type Entry struct {
	TimestampUTC time.Time      `json:"timestampUtc"`
	Step         string         `json:"step"`
	Message      string         `json:"message"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Builder accumulates entries for the duration of one pipeline run. It is
// not safe for concurrent use; the orchestrator is its only writer, and
// worker-pool results are joined back onto the orchestrator's goroutine
// before being recorded.
type Builder struct {
	clock   clock.Clock
	entries []Entry
}

// New creates a Builder using the given clock for entry timestamps.
func New(c clock.Clock) *Builder {
	return &Builder{clock: c}
}

// Record appends one entry, stamped with the builder's clock. metadata may
// be nil; explicit nil values within it are preserved rather than dropped.
func (b *Builder) Record(step, message string, metadata map[string]any) {
	b.entries = append(b.entries, Entry{
		TimestampUTC: b.clock.NowUTC(),
		Step:         step,
		Message:      message,
		Metadata:     metadata,
	})
}

// Build returns an immutable snapshot of every entry recorded so far.
// Callers must not mutate the returned slice's entries' Metadata maps.
func (b *Builder) Build() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len reports how many entries have been recorded.
func (b *Builder) Len() int { return len(b.entries) }
