// internal/workers/orchestration/handle-query/config.go
package handlequery

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 120 * time.Second,
	}
}
