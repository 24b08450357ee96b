// internal/workers/orchestration/handle-query/models.go
package handlequery

import "conversation-orchestrator/internal/models"

type Input struct {
	Query     string `json:"query"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type Output struct {
	models.QueryResponse
}
