// Package prefs persists the handful of client preferences that survive between
// runs: the sticky sighting zone and the last prediction zone selection.
package prefs

import (
	"io"
	"strings"

	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// Preference keys.
const (
	KeyZone       = "bt_zone"
	KeyZoneValue  = "bt_zone_value"
	KeyZoneCustom = "bt_zone_custom"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store is a string key-value preference store. Set must be idempotent.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// ClosableStore is a Store that holds resources.
type ClosableStore interface {
	Store
	io.Closer
}

// Config selects and locates a backend.
type Config struct {
	Backend string
	Path    string
}

// Open creates the configured backend.
func Open(cfg Config, log logger.Logger) (ClosableStore, error) {
	log = logger.OrDiscard(log).Module("prefs")

	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(nil), nil
	case BackendFile, BackendSQLite:
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, errors.Newf("prefs backend %s requires a path", backend).
				Component("prefs").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if backend == BackendFile {
			return NewFileStore(cfg.Path, log)
		}
		return NewSQLiteStore(cfg.Path, log)
	default:
		return nil, errors.Newf("unknown prefs backend %q", cfg.Backend).
			Component("prefs").
			Category(errors.CategoryConfiguration).
			Context("backend", cfg.Backend).
			Build()
	}
}

// GetOr returns the stored value for key, or def when absent.
func GetOr(s Store, key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}
