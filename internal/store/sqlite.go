package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/caevv/trendkeeper/internal/history"
)

const createHistoriesTable = `
CREATE TABLE IF NOT EXISTS histories (
	family     TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const upsertHistory = `
INSERT INTO histories (family, document, updated_at) VALUES (?, ?, ?)
ON CONFLICT(family) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`

// SQLiteStore implements the Store interface with a single SQLite table
// holding one history document per family. It uses modernc.org/sqlite, so no
// cgo toolchain is needed on CI runners.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
	}
	// One writer per invocation; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite at %s: %w", path, err)
	}
	if _, err := db.Exec(createHistoriesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create histories table: %w", err)
	}

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Load reads the family's history document.
func (s *SQLiteStore) Load(family string) *history.History {
	var document string
	err := s.db.QueryRow(`SELECT document FROM histories WHERE family = ?`, family).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("no stored history found, starting fresh", "family", family, "path", s.path)
		return history.New()
	}
	if err != nil {
		return fresh(s.logger, family, s.path, fmt.Errorf("query history: %w", err))
	}

	h, err := decodeHistory([]byte(document))
	if err != nil {
		return fresh(s.logger, family, s.path, err)
	}
	return h
}

// Save upserts the family's history document.
func (s *SQLiteStore) Save(family string, h *history.History) error {
	if family == "" {
		return fmt.Errorf("family is required")
	}
	data, err := encodeHistory(h)
	if err != nil {
		return err
	}

	updatedAt := history.FormatTimestamp(time.Now())
	if _, err := s.db.Exec(upsertHistory, family, string(data), updatedAt); err != nil {
		return fmt.Errorf("save history %s: %w", family, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil
	return nil
}
