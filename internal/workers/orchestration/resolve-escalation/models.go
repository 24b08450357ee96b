// internal/workers/orchestration/resolve-escalation/models.go
package resolveescalation

type Input struct {
	EscalationID string `json:"escalationId"`
	Resolution   string `json:"resolution"`
}

type Output struct {
	Resolved     bool   `json:"resolved"`
	EscalationID string `json:"escalationId"`
}
