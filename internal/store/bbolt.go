package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/caevv/trendkeeper/internal/history"
)

// historiesBucket holds one history document per family, keyed by family name.
const historiesBucket = "histories"

// BoltStore implements the Store interface using BoltDB.
type BoltStore struct {
	db     *bolt.DB
	path   string
	logger *slog.Logger
}

// NewBoltStore creates a new BoltDB-backed store at the given path.
func NewBoltStore(path string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", path, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(historiesBucket)); err != nil {
			return fmt.Errorf("create histories bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, path: path, logger: logger}, nil
}

// Load reads the family's history document from the histories bucket.
func (s *BoltStore) Load(family string) *history.History {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(historiesBucket)).Get([]byte(family)); v != nil {
			// Values are only valid for the life of the transaction.
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return fresh(s.logger, family, s.path, fmt.Errorf("read bucket: %w", err))
	}
	if data == nil {
		s.logger.Warn("no stored history found, starting fresh", "family", family, "path", s.path)
		return history.New()
	}

	h, err := decodeHistory(data)
	if err != nil {
		return fresh(s.logger, family, s.path, err)
	}
	return h
}

// Save replaces the family's history document.
func (s *BoltStore) Save(family string, h *history.History) error {
	if family == "" {
		return fmt.Errorf("family is required")
	}
	data, err := encodeHistory(h)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(historiesBucket)).Put([]byte(family), data); err != nil {
			return fmt.Errorf("put history %s: %w", family, err)
		}
		return nil
	})
}

// Close releases resources held by the store.
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
