// internal/models/escalation.go
package models

import "time"

type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationResolved EscalationStatus = "resolved"
	EscalationError    EscalationStatus = "error"
)

// EscalationRecord is a human handoff ticket.
type EscalationRecord struct {
	ID                   string           `json:"escalationId" db:"id"`
	UserID               string           `json:"userId" db:"user_id"`
	SessionID            string           `json:"sessionId" db:"session_id"`
	Query                string           `json:"query" db:"query"`
	ProposedResponse     string           `json:"proposedResponse" db:"proposed_response"`
	Reason               string           `json:"reason" db:"reason"`
	InterimResponse      string           `json:"interimResponse" db:"interim_response"`
	Status               EscalationStatus `json:"status" db:"status"`
	EstimatedWaitMinutes int              `json:"estimatedWaitMinutes" db:"estimated_wait_minutes"`
	Resolution           string           `json:"resolution,omitempty" db:"resolution"`
	CreatedAt            time.Time        `json:"createdAt" db:"created_at"`
	ResolvedAt           *time.Time       `json:"resolvedAt,omitempty" db:"resolved_at"`
}

// CanResolve reports whether an operator may still close the ticket.
// resolved and error are terminal.
func (r *EscalationRecord) CanResolve() bool {
	return r.Status == EscalationPending
}
