// internal/workers/ai-conversation/data-ingestion/models.go
package dataingestion

import "conversation-orchestrator/internal/models"

type Input struct {
	DocumentText string `json:"documentText,omitempty"`
	DocumentPath string `json:"documentPath,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
	Title        string `json:"title,omitempty"`
	Category     string `json:"category,omitempty"`
}

type Output struct {
	models.Outcome
	Document        *models.Document `json:"document,omitempty"`
	ChunksProcessed int              `json:"chunksProcessed"`
}

// inputSchema accepts either inline text or a file reference.
var inputSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"documentText": map[string]interface{}{"type": "string", "minLength": 1},
		"documentPath": map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 1024},
		"documentType": map[string]interface{}{"type": "string", "maxLength": 64},
		"title":        map[string]interface{}{"type": "string", "maxLength": 512},
		"category":     map[string]interface{}{"type": "string", "maxLength": 128},
	},
	"anyOf": []interface{}{
		map[string]interface{}{"required": []interface{}{"documentText"}},
		map[string]interface{}{"required": []interface{}{"documentPath"}},
	},
}
