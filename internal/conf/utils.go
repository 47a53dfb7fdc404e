package conf

import (
	"os"
	"path/filepath"

	"github.com/tphakala/birdtarifa/internal/errors"
)

const appDirName = "birdtarifa"

// GetDefaultConfigPaths returns the directories searched for config.yaml:
// the working directory, then the user config directory. If config.yaml
// exists in one of them only that path is returned.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-user-config-dir").
			Build()
	}

	configPaths := []string{".", filepath.Join(configDir, appDirName)}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return configPaths, nil
}

// DataDir returns the directory for preference files, falling back to the
// working directory when no user config directory is available.
func DataDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(configDir, appDirName)
}
