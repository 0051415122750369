package config

import "time"

// LLMConfig configures the optional narration layer. When disabled, every
// pipeline runs on rules and analytics alone and responses are templated.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`

	// Hard cap on narration output per call.
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// DefaultLLMConfig returns the default LLM configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Enabled:         false,
		Model:           "gemini-2.5-flash",
		Timeout:         "60s",
		MaxOutputTokens: 1024,
	}
}

// GetTimeout returns the LLM call timeout as a duration.
func (c *LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
