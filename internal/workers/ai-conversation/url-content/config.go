// internal/workers/ai-conversation/url-content/config.go
package urlcontent

import "time"

type Config struct {
	Timeout            time.Duration
	AnalysisChars      int
	ExcerptChars       int
	Confidence         float64
	DegradedConfidence float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:            45 * time.Second,
		AnalysisChars:      5000,
		ExcerptChars:       500,
		Confidence:         0.8,
		DegradedConfidence: 0.4,
	}
}
