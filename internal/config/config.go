// Package config loads and validates sourcepilot configuration from YAML,
// with environment variable overrides for secrets and paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all sourcepilot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Workspace root. Case state, logs, and local corpora live beneath it.
	Workspace string `yaml:"workspace"`

	// LLM narration (optional; rules and analytics run without it)
	LLM LLMConfig `yaml:"llm"`

	// Case store
	Storage StorageConfig `yaml:"storage"`

	// Rolling case memory bounds
	Memory MemoryConfig `yaml:"memory"`

	// Local document and records retrieval
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:      "sourcepilot",
		Version:   "0.3.0",
		Workspace: ".",

		LLM:       DefaultLLMConfig(),
		Storage:   DefaultStorageConfig(),
		Memory:    DefaultMemoryConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Logging:   DefaultLoggingConfig(),
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("SOURCEPILOT_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("SOURCEPILOT_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if ws := os.Getenv("SOURCEPILOT_WORKSPACE"); ws != "" {
		c.Workspace = ws
	}
}

// Validate validates the configuration. LLM credentials are only required
// when narration is enabled.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace not configured")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database path not configured")
	}
	if err := c.Memory.validate(); err != nil {
		return err
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM narration enabled but no API key configured (set GEMINI_API_KEY)")
	}
	return nil
}

// DefaultConfigPath returns the default path to sourcepilot.yaml.
func DefaultConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "sourcepilot.yaml"
	}
	return filepath.Join(cwd, "sourcepilot.yaml")
}
