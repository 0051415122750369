package config

import "sourcepilot/internal/logging"

// LoggingConfig configures category file logging.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"` // debug, info, warn, error

	// Per-category enable flags. Empty means all categories on when
	// debug mode is set.
	Categories map[string]bool `yaml:"categories"`
}

// DefaultLoggingConfig returns the default logging configuration.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		DebugMode: false,
		Level:     "info",
	}
}

// Settings converts to the logging package's settings type.
func (c *LoggingConfig) Settings() logging.Settings {
	return logging.Settings{
		DebugMode:  c.DebugMode,
		Level:      c.Level,
		Categories: c.Categories,
	}
}
