package config

import "fmt"

// MemoryConfig bounds the rolling case memory carried across turns.
type MemoryConfig struct {
	MaxEntries   int `yaml:"max_entries"`
	MaxDecisions int `yaml:"max_decisions"`
	MaxIntents   int `yaml:"max_intents"`
}

// DefaultMemoryConfig returns the default case memory bounds.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxEntries:   20,
		MaxDecisions: 10,
		MaxIntents:   5,
	}
}

func (c *MemoryConfig) validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("memory max_entries must be positive, got %d", c.MaxEntries)
	}
	if c.MaxDecisions <= 0 {
		return fmt.Errorf("memory max_decisions must be positive, got %d", c.MaxDecisions)
	}
	if c.MaxIntents <= 0 {
		return fmt.Errorf("memory max_intents must be positive, got %d", c.MaxIntents)
	}
	return nil
}
