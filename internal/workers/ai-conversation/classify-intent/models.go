// internal/workers/ai-conversation/classify-intent/models.go
package classifyintent

import "conversation-orchestrator/internal/models"

type Input struct {
	Query     string           `json:"query"`
	UserID    string           `json:"userId"`
	SessionID string           `json:"sessionId"`
	History   []models.Message `json:"history,omitempty"`
}

type Output struct {
	IntentDecision models.IntentDecision `json:"intentDecision"`
}

// modelDecision is the structure the model is asked to return. Older prompts
// answered with "intent" instead of "primary_intent"; both are accepted.
type modelDecision struct {
	IsMultiIntent bool              `json:"is_multi_intent"`
	PrimaryIntent string            `json:"primary_intent"`
	Intent        string            `json:"intent"`
	Intents       []string          `json:"intents"`
	AgentMapping  map[string]string `json:"agent_mapping"`
}
