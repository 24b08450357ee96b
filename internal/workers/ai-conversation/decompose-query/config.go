// internal/workers/ai-conversation/decompose-query/config.go
package decomposequery

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
