// internal/models/document.go
package models

import "time"

// Document is a unit registered for knowledge storage.
type Document struct {
	ID         string    `json:"documentId" db:"id"`
	Title      string    `json:"title" db:"title"`
	Type       string    `json:"documentType" db:"document_type"`
	Category   string    `json:"category,omitempty" db:"category"`
	Text       string    `json:"-" db:"content"`
	SourcePath string    `json:"sourcePath,omitempty" db:"source_path"`
	Chunks     int       `json:"chunks" db:"chunks"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// KnowledgeItem is one ranked hit from the retrieval store.
type KnowledgeItem struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title,omitempty"`
	Content  string                 `json:"content"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// WebResult is one hit from the web search provider.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
