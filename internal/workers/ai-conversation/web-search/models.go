// internal/workers/ai-conversation/web-search/models.go
package websearch

import "conversation-orchestrator/internal/models"

type Input struct {
	Query     string `json:"query"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type Output struct {
	models.Outcome
	SearchQueries       []string           `json:"searchQueries"`
	Results             []models.WebResult `json:"results"`
	KeyFacts            []string           `json:"keyFacts"`
	RelevanceAssessment string             `json:"relevanceAssessment,omitempty"`
}

type generatedQueries struct {
	SearchQueries []string `json:"search_queries"`
}

type summary struct {
	Summary             string   `json:"summary"`
	KeyFacts            []string `json:"key_facts"`
	RelevanceAssessment string   `json:"relevance_assessment"`
	Confidence          *float64 `json:"confidence"`
}
