// internal/models/result.go
package models

import "fmt"

// SpecialistResult is the shape every specialist answers with.
type SpecialistResult struct {
	Agent            AgentName `json:"agent"`
	ResponseText     string    `json:"response"`
	Sources          []string  `json:"sources"`
	Confidence       float64   `json:"confidence"`
	NeedsEscalation  bool      `json:"needsEscalation"`
	EscalationReason string    `json:"escalationReason,omitempty"`
}

// AgentFailure is the explicit error result of a specialist.
type AgentFailure struct {
	Agent   AgentName `json:"agent"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

func (f *AgentFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Agent, f.Message)
}

// Outcome holds exactly one of Result or Failure.
type Outcome struct {
	Result  *SpecialistResult `json:"result,omitempty"`
	Failure *AgentFailure     `json:"failure,omitempty"`
}

func Succeeded(r *SpecialistResult) Outcome {
	return Outcome{Result: r}
}

func Failed(agent AgentName, format string, args ...interface{}) Outcome {
	return Outcome{Failure: &AgentFailure{
		Agent:   agent,
		Status:  "error",
		Message: fmt.Sprintf(format, args...),
	}}
}

func (o Outcome) OK() bool {
	return o.Result != nil && o.Failure == nil
}

// CombinedResult is the merged answer plus the audit trail of contributors.
type CombinedResult struct {
	SpecialistResult
	ContributorCount int         `json:"contributorCount"`
	Contributors     []AgentName `json:"contributors"`
}

// FromSingle wraps one specialist result without any merging.
func FromSingle(r *SpecialistResult) *CombinedResult {
	return &CombinedResult{
		SpecialistResult: *r,
		ContributorCount: 1,
		Contributors:     []AgentName{r.Agent},
	}
}

// ClampConfidence forces a score into [0,1].
func ClampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// DedupeSources concatenates source lists keeping first-seen order.
func DedupeSources(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, s := range list {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
