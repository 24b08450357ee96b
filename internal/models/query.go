// internal/models/query.go
package models

import (
	"strings"
	"time"
)

// Role tags a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one record of a (user, session) conversation.
type Message struct {
	Role      Role                   `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Query is the request handed to the conductor. It is never mutated after ingress.
type Query struct {
	Text      string    `json:"text"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	History   []Message `json:"history,omitempty"`
}

// RecentTurns returns at most the last n messages of the history.
func (q Query) RecentTurns(n int) []Message {
	if n <= 0 || len(q.History) == 0 {
		return nil
	}
	if len(q.History) <= n {
		return q.History
	}
	return q.History[len(q.History)-n:]
}

// WithText returns a copy addressing a different text, keeping identity and history.
func (q Query) WithText(text string) Query {
	return Query{
		Text:      text,
		UserID:    q.UserID,
		SessionID: q.SessionID,
		History:   q.History,
	}
}

// QueryResponse is the outward answer for one HandleQuery call.
type QueryResponse struct {
	Response         string   `json:"response"`
	Sources          []string `json:"sources"`
	Confidence       float64  `json:"confidence"`
	NeedsEscalation  bool     `json:"needsEscalation"`
	EscalationReason string   `json:"escalationReason,omitempty"`
	EscalationID     string   `json:"escalationId,omitempty"`
	SessionID        string   `json:"sessionId"`
}

// FormatTurns renders messages as "User: ..." / "Assistant: ..." lines for prompts.
func FormatTurns(msgs []Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		speaker := "Assistant"
		switch m.Role {
		case RoleUser:
			speaker = "User"
		case RoleSystem:
			speaker = "System"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
