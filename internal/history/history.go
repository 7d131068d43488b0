// Package history defines the persisted metric history document and the
// snapshot records appended to it on every CI run.
package history

import (
	"fmt"
	"time"
)

// SchemaVersion is the version tag written into every history document.
const SchemaVersion = "1.0"

// TimestampLayout is the layout used for every timestamp written by trendkeeper:
// UTC with second precision.
const TimestampLayout = "2006-01-02T15:04:05Z"

// History is the append-then-pruned series of snapshots for one metric family.
type History struct {
	// Version is the schema tag of the document.
	Version string `json:"version"`

	// LastUpdated is the timestamp of the most recent append.
	LastUpdated string `json:"last_updated"`

	// Snapshots are ordered chronologically, oldest first.
	Snapshots []Snapshot `json:"snapshots"`

	// Summary is derived from Snapshots and can always be rebuilt from them.
	Summary map[string]Summary `json:"summary"`
}

// Snapshot is the measurement set produced by a single CI run.
type Snapshot struct {
	// Timestamp is kept verbatim so that a malformed value survives decoding
	// and can be dropped by retention instead of failing the whole document.
	Timestamp     string `json:"timestamp"`
	CommitSHA     string `json:"commit_sha"`
	CommitMessage string `json:"commit_message"`

	// Benchmark family.
	Benchmarks []BenchmarkRecord `json:"benchmarks,omitempty"`

	// Coverage family.
	Coverage *CoverageMetrics `json:"coverage,omitempty"`
	Tests    *TestCounts      `json:"tests,omitempty"`
	Details  *CoverageDetails `json:"details,omitempty"`
}

// New returns an empty history document.
func New() *History {
	return &History{
		Version:   SchemaVersion,
		Snapshots: []Snapshot{},
		Summary:   map[string]Summary{},
	}
}

// Append pushes s to the end of h.Snapshots and moves LastUpdated to its
// timestamp. Snapshots are not re-sorted; callers append in time order.
func Append(h *History, s Snapshot) *History {
	if h == nil {
		h = New()
	}
	h.Snapshots = append(h.Snapshots, s)
	h.LastUpdated = s.Timestamp
	return h
}

// Time parses the snapshot timestamp.
func (s Snapshot) Time() (time.Time, error) {
	return ParseTimestamp(s.Timestamp)
}

// Latest returns the most recent snapshot, or nil when the history is empty.
func (h *History) Latest() *Snapshot {
	if h == nil || len(h.Snapshots) == 0 {
		return nil
	}
	return &h.Snapshots[len(h.Snapshots)-1]
}

// FormatTimestamp renders t in the canonical UTC, second precision layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an RFC 3339 timestamp ("Z" or a numeric offset) and
// normalizes it to UTC.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}
