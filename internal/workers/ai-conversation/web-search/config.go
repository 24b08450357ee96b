// internal/workers/ai-conversation/web-search/config.go
package websearch

import "time"

type Config struct {
	Timeout           time.Duration
	MaxQueries        int
	MaxResults        int
	DefaultConfidence float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           60 * time.Second,
		MaxQueries:        3,
		MaxResults:        5,
		DefaultConfidence: 0.7,
	}
}
