// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tphakala/birdtarifa/internal/logger"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, check := range []func(*Settings) error{
		validateAPISettings,
		validateLimits,
		validatePrefsSettings,
		validateLoggingSettings,
		validateTelemetrySettings,
		validateNotifySettings,
	} {
		if err := check(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAPISettings(s *Settings) error {
	u, err := url.Parse(s.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.baseurl must be an http(s) URL, got %q", s.API.BaseURL)
	}
	if s.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if s.API.RateLimit < 0 {
		return fmt.Errorf("api.ratelimit must not be negative")
	}
	return nil
}

func validateLimits(s *Settings) error {
	var problems []string
	if s.Sightings.Limit < 0 || s.Sightings.Limit > MaxSightingsLimit {
		problems = append(problems, fmt.Sprintf("sightings.limit must be between 0 and %d", MaxSightingsLimit))
	}
	if s.Predictions.Limit < 0 || s.Predictions.Limit > MaxPredictionsLimit {
		problems = append(problems, fmt.Sprintf("predictions.limit must be between 0 and %d", MaxPredictionsLimit))
	}
	if s.BirdInfo.CacheTTL < 0 {
		problems = append(problems, "birdinfo.cachettl must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func validatePrefsSettings(s *Settings) error {
	switch s.Prefs.Backend {
	case "memory", "file", "sqlite":
		return nil
	}
	return fmt.Errorf("prefs.backend must be memory, file or sqlite, got %q", s.Prefs.Backend)
}

func validateLoggingSettings(s *Settings) error {
	for module, level := range s.Logging.ModuleLevels {
		if _, ok := logger.ParseLevel(level); !ok {
			return fmt.Errorf("logging.module_levels.%s: unknown level %q", module, level)
		}
	}
	if s.Logging.DefaultLevel != "" {
		if _, ok := logger.ParseLevel(s.Logging.DefaultLevel); !ok {
			return fmt.Errorf("logging.level: unknown level %q", s.Logging.DefaultLevel)
		}
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	if s.Telemetry.Enabled && strings.TrimSpace(s.Telemetry.DSN) == "" {
		return fmt.Errorf("telemetry.dsn is required when telemetry is enabled")
	}
	return nil
}

func validateNotifySettings(s *Settings) error {
	if s.Notify.Shoutrrr.Enabled && len(s.Notify.Shoutrrr.URLs) == 0 {
		return fmt.Errorf("notify.shoutrrr.urls is required when shoutrrr is enabled")
	}
	if s.Notify.MQTT.Enabled {
		if strings.TrimSpace(s.Notify.MQTT.Broker) == "" {
			return fmt.Errorf("notify.mqtt.broker is required when mqtt is enabled")
		}
		if err := validateEnvURL(s.Notify.MQTT.Broker); err != nil {
			return fmt.Errorf("notify.mqtt.broker %w", err)
		}
	}
	return nil
}
