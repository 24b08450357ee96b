// internal/workers/orchestration/resolve-escalation/config.go
package resolveescalation

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
