// internal/workers/ai-conversation/evaluate-escalation/config.go
package evaluateescalation

import "time"

type Config struct {
	Timeout              time.Duration
	ConfidenceThreshold  float64
	ModelReview          bool
	MemoryLimit          int
	EstimatedWaitMinutes int
	FallbackWaitMinutes  int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:              30 * time.Second,
		ConfidenceThreshold:  0.6,
		ModelReview:          false,
		MemoryLimit:          10,
		EstimatedWaitMinutes: 15,
		FallbackWaitMinutes:  30,
	}
}
