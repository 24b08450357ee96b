// internal/workers/ai-conversation/data-ingestion/config.go
package dataingestion

import "time"

type Config struct {
	Timeout      time.Duration
	DefaultType  string
	DefaultTitle string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      120 * time.Second,
		DefaultType:  "unknown",
		DefaultTitle: "Untitled Document",
	}
}
