// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with flag help texts.
const (
	DefaultBaseURL      = "http://localhost:8000"
	DefaultZone         = "Tarifa Centro"
	DefaultPrefsBackend = "file"
)

// Backend caps enforced before any request is sent.
const (
	MaxSightingsLimit   = 200
	MaxPredictionsLimit = 50
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("api.baseurl", DefaultBaseURL)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.useragent", "")
	v.SetDefault("api.ratelimit", 0.0)

	v.SetDefault("sightings.limit", 50)
	v.SetDefault("sightings.defaultzone", DefaultZone)
	v.SetDefault("sightings.timezone", "Local")

	v.SetDefault("predictions.limit", 10)

	v.SetDefault("birdinfo.cachettl", time.Hour)

	v.SetDefault("prefs.backend", DefaultPrefsBackend)
	v.SetDefault("prefs.path", "")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "warn")
	v.SetDefault("logging.file.enabled", false)
	v.SetDefault("logging.file.path", "logs/birdtarifa.log")
	v.SetDefault("logging.file.level", "info")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("notify.shoutrrr.enabled", false)
	v.SetDefault("notify.shoutrrr.urls", []string{})
	v.SetDefault("notify.shoutrrr.title", "New sighting")
	v.SetDefault("notify.shoutrrr.timeout", 10*time.Second)

	v.SetDefault("notify.mqtt.enabled", false)
	v.SetDefault("notify.mqtt.broker", "")
	v.SetDefault("notify.mqtt.topic", "birdtarifa/sightings")
	v.SetDefault("notify.mqtt.clientid", "birdtarifa")
	v.SetDefault("notify.mqtt.retain", false)
	v.SetDefault("notify.mqtt.timeout", 10*time.Second)

	v.SetDefault("metrics.summary", false)
}
