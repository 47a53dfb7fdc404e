// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "BIRDTARIFA"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns short aliases on top of the automatic
// BIRDTARIFA_<SECTION>_<KEY> mapping.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"api.baseurl", "BIRDTARIFA_API_URL", validateEnvURL},
		{"api.ratelimit", "BIRDTARIFA_API_RATELIMIT", validateEnvNonNegativeFloat},
		{"prefs.backend", "BIRDTARIFA_PREFS", validateEnvPrefsBackend},
		{"telemetry.dsn", "BIRDTARIFA_SENTRY_DSN", nil},
		{"notify.mqtt.broker", "BIRDTARIFA_MQTT_BROKER", validateEnvURL},
		{"debug", "BIRDTARIFA_DEBUG", validateEnvBool},
	}
}

// configureEnvironmentVariables sets up environment variable support for v.
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return bindEnvVars(v)
}

// bindEnvVars binds the aliases and validates any value already set.
func bindEnvVars(v *viper.Viper) error {
	var problems []string
	for _, b := range getEnvBindings() {
		// Keep the automatic name working alongside the alias.
		if err := v.BindEnv(b.ConfigKey, b.EnvVar, autoEnvName(b.ConfigKey)); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", b.EnvVar, err))
			continue
		}
		value, ok := os.LookupEnv(b.EnvVar)
		if !ok || b.Validate == nil {
			continue
		}
		if err := b.Validate(value); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", b.EnvVar, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid environment configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func autoEnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func validateEnvURL(value string) error {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL, got %q", value)
	}
	return nil
}

func validateEnvNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f < 0 {
		return fmt.Errorf("must be a non-negative number, got %q", value)
	}
	return nil
}

func validateEnvPrefsBackend(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "memory", "file", "sqlite":
		return nil
	}
	return fmt.Errorf("must be memory, file or sqlite, got %q", value)
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("must be a boolean, got %q", value)
	}
	return nil
}
