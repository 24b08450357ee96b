// internal/workers/ai-conversation/combine-responses/models.go
package combineresponses

import "conversation-orchestrator/internal/models"

type Input struct {
	OriginalQuery string                    `json:"originalQuery"`
	Results       []models.SpecialistResult `json:"results"`
}

type Output struct {
	Combined *models.CombinedResult `json:"combined"`
}

type synthesis struct {
	Response         string   `json:"response"`
	Confidence       *float64 `json:"confidence"`
	NeedsEscalation  *bool    `json:"needs_escalation"`
	EscalationReason *string  `json:"escalation_reason"`
}
