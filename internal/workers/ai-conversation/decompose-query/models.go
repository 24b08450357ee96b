// internal/workers/ai-conversation/decompose-query/models.go
package decomposequery

import "conversation-orchestrator/internal/models"

type Input struct {
	Query          string                `json:"query"`
	UserID         string                `json:"userId"`
	SessionID      string                `json:"sessionId"`
	IntentDecision models.IntentDecision `json:"intentDecision"`
}

type Output struct {
	OriginalQuery string            `json:"originalQuery"`
	SubQueries    []models.SubQuery `json:"subQueries"`
}

type rawSubQuery struct {
	Text   string `json:"text"`
	Query  string `json:"query"`
	Intent string `json:"intent"`
}
