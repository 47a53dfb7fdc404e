// Package conf loads BirdTarifa settings from config.yaml, BIRDTARIFA_*
// environment variables and command-line flags.
package conf

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/birdtarifa/internal/logger"
)

// APISettings configures the backend client.
type APISettings struct {
	BaseURL   string        // backend base URL, trailing slash trimmed
	Timeout   time.Duration // per-request timeout
	UserAgent string        // User-Agent header, defaults to the build version
	RateLimit float64       // requests per second, 0 disables pacing
}

// SightingsSettings configures the sighting composer and history.
type SightingsSettings struct {
	Limit       int    // history size
	DefaultZone string // zone used before any zone has been stored
	Timezone    string // "Local", "UTC" or an IANA name for observed_at input
}

// PredictionsSettings configures prediction queries.
type PredictionsSettings struct {
	Limit int // results per query
}

// BirdInfoSettings configures species lookups.
type BirdInfoSettings struct {
	CacheTTL time.Duration
}

// PrefsSettings selects the preference store.
type PrefsSettings struct {
	Backend string // memory, file or sqlite
	Path    string // file or database path, defaulted per backend
}

// TelemetrySettings configures error reporting to Sentry.
type TelemetrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// ShoutrrrSettings configures chat notifications for new sightings.
type ShoutrrrSettings struct {
	Enabled bool
	URLs    []string
	Title   string
	Timeout time.Duration
}

// MQTTSettings configures MQTT publishing of new sightings.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	Retain   bool
	Timeout  time.Duration
}

// NotifySettings groups the post-create publishers.
type NotifySettings struct {
	Shoutrrr ShoutrrrSettings
	MQTT     MQTTSettings
}

// MetricsSettings controls the request metrics summary.
type MetricsSettings struct {
	Summary bool // print per-route request totals after each command
}

// Settings contains all configuration options.
type Settings struct {
	Debug bool

	API         APISettings
	Sightings   SightingsSettings
	Predictions PredictionsSettings
	BirdInfo    BirdInfoSettings
	Prefs       PrefsSettings
	Logging     logger.LoggingConfig
	Telemetry   TelemetrySettings
	Notify      NotifySettings
	Metrics     MetricsSettings
}

// Location resolves Sightings.Timezone; unknown names fall back to Local.
func (s *Settings) Location() *time.Location {
	switch tz := strings.TrimSpace(s.Sightings.Timezone); tz {
	case "", "Local", "local":
		return time.Local
	case "UTC", "utc":
		return time.UTC
	default:
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return time.Local
		}
		return loc
	}
}

// New creates a viper instance with defaults and environment bindings and
// reads configFile, or config.yaml from the default paths when configFile
// is empty. A missing default config file is not an error.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("fatal error reading config file: %w", err)
	}
	return v, nil
}

// Load unmarshals and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	normalize(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// normalize trims values and fills paths that depend on other settings.
func normalize(s *Settings) {
	s.API.BaseURL = strings.TrimRight(strings.TrimSpace(s.API.BaseURL), "/")
	s.Prefs.Backend = strings.ToLower(strings.TrimSpace(s.Prefs.Backend))

	if s.Prefs.Path == "" {
		switch s.Prefs.Backend {
		case "file":
			s.Prefs.Path = filepath.Join(DataDir(), "prefs.yaml")
		case "sqlite":
			s.Prefs.Path = filepath.Join(DataDir(), "prefs.db")
		}
	}

	if s.Debug {
		s.Logging.DefaultLevel = "debug"
		if s.Logging.Console != nil {
			s.Logging.Console.Level = "debug"
		}
	}
}
