package store

import (
	"fmt"
	"log/slog"
	"strings"
)

// SupportedDrivers lists all available store drivers.
var SupportedDrivers = []string{"bbolt", "json", "sqlite"}

// Options selects and configures a store driver.
type Options struct {
	// Driver is one of SupportedDrivers. Empty means "json".
	Driver string

	// Path is the database file used by the bbolt and sqlite drivers.
	Path string

	// HistoryFiles maps each family to its JSON history file (json driver).
	HistoryFiles map[string]string

	Logger *slog.Logger
}

// NewStore creates a new Store instance based on the specified driver.
// Supported drivers:
//   - "json": one JSON file per family, the documents read by the front-end
//   - "bbolt": BoltDB file holding every family's document
//   - "sqlite": SQLite file holding every family's document
func NewStore(opts Options) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = "json"
	}

	switch driver {
	case "json":
		return NewJSONStore(opts.HistoryFiles, opts.Logger)
	case "bbolt", "sqlite":
		if opts.Path == "" {
			return nil, fmt.Errorf("store path is required for driver %s", driver)
		}
		if driver == "bbolt" {
			return NewBoltStore(opts.Path, opts.Logger)
		}
		return NewSQLiteStore(opts.Path, opts.Logger)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: %v)", driver, SupportedDrivers)
	}
}
