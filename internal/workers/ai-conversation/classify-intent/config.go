// internal/workers/ai-conversation/classify-intent/config.go
package classifyintent

import "time"

type Config struct {
	Timeout      time.Duration
	ContextTurns int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		ContextTurns: 3,
	}
}
