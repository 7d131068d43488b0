package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caevv/trendkeeper/internal/history"
)

// JSONStore implements the Store interface with one JSON file per family.
// These files are the documents consumed by the static front-end pages.
type JSONStore struct {
	paths  map[string]string // family -> history file
	logger *slog.Logger
}

// NewJSONStore creates a store writing each family's history to the path
// given for it.
func NewJSONStore(paths map[string]string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one history path is required")
	}

	s := &JSONStore{paths: make(map[string]string, len(paths)), logger: logger}
	for family, path := range paths {
		if path == "" {
			return nil, fmt.Errorf("history path for family %q is empty", family)
		}
		s.paths[family] = path
	}
	return s, nil
}

func (s *JSONStore) path(family string) (string, error) {
	path, ok := s.paths[family]
	if !ok {
		return "", fmt.Errorf("no history path configured for family %q", family)
	}
	return path, nil
}

// Load reads the family's history file.
func (s *JSONStore) Load(family string) *history.History {
	path, err := s.path(family)
	if err != nil {
		return fresh(s.logger, family, "", err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("no history file found, starting fresh", "family", family, "path", path)
		return history.New()
	}
	if err != nil {
		return fresh(s.logger, family, path, fmt.Errorf("read file: %w", err))
	}

	h, err := decodeHistory(data)
	if err != nil {
		return fresh(s.logger, family, path, err)
	}
	return h
}

// Save writes the family's history file, creating parent directories as needed.
func (s *JSONStore) Save(family string, h *history.History) error {
	path, err := s.path(family)
	if err != nil {
		return err
	}
	data, err := encodeHistory(h)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// Close is a no-op: the JSON store holds no open file handles.
func (s *JSONStore) Close() error {
	return nil
}

// WriteDocument writes v as indented JSON to path. It is used for the
// latest-only and stats documents regenerated on every run.
func WriteDocument(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// writeFileAtomic writes to a temp file first, then renames (atomic on POSIX).
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
