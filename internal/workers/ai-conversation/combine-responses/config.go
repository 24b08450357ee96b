// internal/workers/ai-conversation/combine-responses/config.go
package combineresponses

import "time"

type Config struct {
	Timeout          time.Duration
	SynthesisPenalty float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          30 * time.Second,
		SynthesisPenalty: 0.8,
	}
}
