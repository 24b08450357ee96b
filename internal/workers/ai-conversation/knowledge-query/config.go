// internal/workers/ai-conversation/knowledge-query/config.go
package knowledgequery

import "time"

type Config struct {
	Timeout           time.Duration
	RetrievalLimit    int
	MinScore          float64
	FallbackThreshold int
	FallbackLimit     int
	MemoryLimit       int
	PromptTurns       int
	SearchTurns       int
	DefaultConfidence float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           30 * time.Second,
		RetrievalLimit:    5,
		MinScore:          0.6,
		FallbackThreshold: 3,
		FallbackLimit:     3,
		MemoryLimit:       10,
		PromptTurns:       5,
		SearchTurns:       3,
		DefaultConfidence: 0.7,
	}
}
