package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// FileStore keeps preferences in a small YAML file, rewritten on every change.
type FileStore struct {
	path string
	log  logger.Logger

	mu   sync.RWMutex
	data map[string]string
}

// NewFileStore loads path if it exists. A missing file starts empty.
func NewFileStore(path string, log logger.Logger) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		log:  logger.OrDiscard(log).With(logger.String("backend", BackendFile)),
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		fs.log.Debug("Preferences file not found, starting empty", logger.String("path", path))
		return fs, nil
	case err != nil:
		return nil, errors.New(err).
			Component("prefs").
			Category(errors.CategoryStorage).
			Context("operation", "read_file").
			Context("path", path).
			Build()
	}

	if err := yaml.Unmarshal(raw, &fs.data); err != nil {
		return nil, errors.Newf("failed to parse preferences file: %w", err).
			Component("prefs").
			Category(errors.CategoryStorage).
			Context("path", path).
			Build()
	}
	if fs.data == nil {
		fs.data = make(map[string]string)
	}
	return fs, nil
}

func (fs *FileStore) Get(key string) (string, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	v, ok := fs.data[key]
	return v, ok
}

// Set stores value and rewrites the file. Unchanged values skip the write.
func (fs *FileStore) Set(key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if current, ok := fs.data[key]; ok && current == value {
		return nil
	}

	previous, existed := fs.data[key]
	fs.data[key] = value
	if err := fs.writeLocked(); err != nil {
		if existed {
			fs.data[key] = previous
		} else {
			delete(fs.data, key)
		}
		return errors.New(err).
			Component("prefs").
			Category(errors.CategoryStorage).
			Context("operation", "write_file").
			Context("key", key).
			Build()
	}
	return nil
}

// writeLocked replaces the file atomically via a temp file in the same directory.
func (fs *FileStore) writeLocked() error {
	out, err := yaml.Marshal(fs.data)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		return fmt.Errorf("failed to replace preferences file: %w", err)
	}

	fs.log.Debug("Preferences saved", logger.String("path", fs.path), logger.Int("keys", len(fs.data)))
	return nil
}

func (fs *FileStore) Close() error { return nil }
