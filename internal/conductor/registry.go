// internal/conductor/registry.go
package conductor

import (
	"context"
	"fmt"
	"sort"

	"conversation-orchestrator/internal/models"
)

// Specialist answers one (sub-)query. Failures come back as an error
// Outcome, never as a panic or a Go error.
type Specialist interface {
	Name() models.AgentName
	Process(ctx context.Context, q models.Query) models.Outcome
}

// Registry maps agent names to specialists. It is built once at startup
// and read-only afterwards.
type Registry struct {
	agents map[models.AgentName]Specialist
}

// NewRegistry indexes specialists by name. Duplicate names and a missing
// default agent are configuration errors.
func NewRegistry(specialists ...Specialist) (*Registry, error) {
	agents := make(map[models.AgentName]Specialist, len(specialists))
	for _, s := range specialists {
		if _, dup := agents[s.Name()]; dup {
			return nil, fmt.Errorf("specialist %q registered twice", s.Name())
		}
		agents[s.Name()] = s
	}
	if _, ok := agents[models.DefaultAgent]; !ok {
		return nil, fmt.Errorf("default specialist %q is not registered", models.DefaultAgent)
	}
	return &Registry{agents: agents}, nil
}

// Resolve returns the specialist for name, or the default one when name is
// not registered. matched reports whether name itself was found.
func (r *Registry) Resolve(name models.AgentName) (s Specialist, matched bool) {
	if s, ok := r.agents[name]; ok {
		return s, true
	}
	return r.agents[models.DefaultAgent], false
}

// Names lists the registered agents in name order.
func (r *Registry) Names() []models.AgentName {
	out := make([]models.AgentName, 0, len(r.agents))
	for name := range r.agents {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
