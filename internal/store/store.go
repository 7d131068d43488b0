// Package store persists metric history documents.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/caevv/trendkeeper/internal/history"
)

// Store defines the interface for loading and saving the history document of
// each metric family.
type Store interface {
	// Load returns the stored history of a family. A missing or unreadable
	// document is not an error: a fresh, empty history is returned and a
	// warning is logged.
	Load(family string) *history.History

	// Save overwrites the stored history of a family.
	Save(family string, h *history.History) error

	// Close releases any resources held by the store.
	Close() error
}

// decodeHistory parses a persisted history document and fills in the
// fields an older or hand-edited document may lack.
func decodeHistory(data []byte) (*history.History, error) {
	var h history.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if h.Version == "" {
		h.Version = history.SchemaVersion
	}
	if h.Snapshots == nil {
		h.Snapshots = []history.Snapshot{}
	}
	if h.Summary == nil {
		h.Summary = map[string]history.Summary{}
	}
	return &h, nil
}

// encodeHistory renders a history document the way it is written to disk.
func encodeHistory(h *history.History) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("history is nil")
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return append(data, '\n'), nil
}

// fresh logs why a stored document could not be used and returns an empty history.
func fresh(logger *slog.Logger, family, location string, err error) *history.History {
	logger.Warn("history unavailable, starting fresh",
		"family", family,
		"location", location,
		"error", err)
	return history.New()
}
