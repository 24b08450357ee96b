// internal/workers/ai-conversation/url-content/models.go
package urlcontent

import "conversation-orchestrator/internal/models"

type Input struct {
	URL       string `json:"url"`
	Query     string `json:"query"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type Output struct {
	models.Outcome
	Page *PageSummary `json:"page,omitempty"`
}

// PageSummary is what the agent learned about one URL.
type PageSummary struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	KeyPoints     []string `json:"keyPoints"`
	Categories    []string `json:"categories"`
	Excerpt       string   `json:"content"`
	ContentLength int      `json:"contentLength"`
}

type analysis struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points"`
	Categories []string `json:"categories"`
}
