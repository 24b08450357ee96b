// internal/conductor/config.go
package conductor

import "time"

type Config struct {
	Timeout          time.Duration
	// FinalizeTimeout bounds escalation, memory and metrics once routing
	// is over. It starts fresh so an expired request still files its ticket.
	FinalizeTimeout  time.Duration
	ParallelDispatch bool
	MaxParallel      int
	MemoryLimit      int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          120 * time.Second,
		FinalizeTimeout:  30 * time.Second,
		ParallelDispatch: false,
		MaxParallel:      4,
		MemoryLimit:      10,
	}
}
