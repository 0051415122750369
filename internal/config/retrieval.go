package config

import "time"

// RetrievalConfig configures local document and records retrieval.
type RetrievalConfig struct {
	// Maximum chunks returned per query when the caller does not ask for
	// a specific count.
	MaxChunks int `yaml:"max_chunks"`

	// How long ranked results stay cached.
	CacheTTL string `yaml:"cache_ttl"`
}

// DefaultRetrievalConfig returns the default retrieval configuration.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		MaxChunks: 5,
		CacheTTL:  "5m",
	}
}

// GetCacheTTL returns the result cache TTL as a duration.
func (c *RetrievalConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}
