// internal/workers/ai-conversation/evaluate-escalation/models.go
package evaluateescalation

import "conversation-orchestrator/internal/models"

type Input struct {
	Query            string   `json:"query"`
	UserID           string   `json:"userId"`
	SessionID        string   `json:"sessionId"`
	Response         string   `json:"response"`
	Confidence       *float64 `json:"confidence"`
	NeedsEscalation  bool     `json:"needsEscalation"`
	EscalationReason string   `json:"escalationReason"`
}

type Output struct {
	NeedsEscalation      bool                    `json:"needsEscalation"`
	Reason               string                  `json:"escalationReason,omitempty"`
	EscalationID         string                  `json:"escalationId,omitempty"`
	InterimResponse      string                  `json:"interimResponse,omitempty"`
	EstimatedWaitMinutes int                     `json:"estimatedWaitMinutes,omitempty"`
	Status               models.EscalationStatus `json:"status,omitempty"`
}

// Trigger names why a response was escalated.
type Trigger string

const (
	TriggerNone          Trigger = "none"
	TriggerFlagged       Trigger = "flagged"
	TriggerLowConfidence Trigger = "low_confidence"
	TriggerModelReview   Trigger = "model_review"
	TriggerReviewError   Trigger = "review_error"
	TriggerNoResponse    Trigger = "no_response"
)

// Evaluation is the verdict on one query/response pair.
type Evaluation struct {
	NeedsEscalation bool    `json:"needsEscalation"`
	Reason          string  `json:"reason"`
	Trigger         Trigger `json:"trigger"`
}

type review struct {
	NeedsEscalation bool   `json:"needs_escalation"`
	Reason          string `json:"reason"`
}
