// internal/workers/ai-conversation/knowledge-query/models.go
package knowledgequery

import "conversation-orchestrator/internal/models"

type Input struct {
	Query     string `json:"query"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type Output struct {
	models.Outcome
	RetrievedCount int `json:"retrievedCount"`
}

type modelAnswer struct {
	Response         string   `json:"response"`
	Answer           string   `json:"answer"`
	Confidence       *float64 `json:"confidence"`
	NeedsEscalation  bool     `json:"needs_escalation"`
	EscalationReason string   `json:"escalation_reason"`
}
