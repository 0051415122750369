package config

import "time"

// StorageConfig configures the SQLite case store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`

	// SQLite busy timeout applied via connection pragma.
	BusyTimeout string `yaml:"busy_timeout"`
}

// DefaultStorageConfig returns the default storage configuration.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DatabasePath: "data/sourcepilot.db",
		BusyTimeout:  "5s",
	}
}

// GetBusyTimeout returns the SQLite busy timeout as a duration.
func (c *StorageConfig) GetBusyTimeout() time.Duration {
	d, err := time.ParseDuration(c.BusyTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
