package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" mapstructure:"level"`         // default log level for all modules
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"`           // "Local", "UTC", or IANA timezone name
	Console      *ConsoleOutput    `yaml:"console" mapstructure:"console"`             // console output configuration
	FileOutput   *FileOutput       `yaml:"file_output" mapstructure:"file"`            // file output configuration
	ModuleLevels map[string]string `yaml:"module_levels" mapstructure:"module_levels"` // per-module log levels
}

// ConsoleOutput represents console logging configuration.
// Console output uses human-readable text format without timestamps.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// FileOutput represents file logging configuration.
// File output uses JSON format with RFC3339 timestamps.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// Default values for logging configuration.
const (
	DefaultLogLevel       = "warn"
	DefaultLogPath        = "logs/birdtarifa.log"
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = false
)

// applyConfigDefaults fills nil output sections so a partial config still logs somewhere
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}
	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}
	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   cfg.DefaultLevel,
		}
	}
	if cfg.FileOutput.Path == "" {
		cfg.FileOutput.Path = DefaultLogPath
	}
}
