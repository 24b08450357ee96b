// internal/models/intent.go
package models

import "strings"

// Intent is the category of help a query needs.
type Intent string

const (
	IntentKnowledgeQuery Intent = "knowledge_query"
	IntentWebSearch      Intent = "web_search"
	IntentEscalate       Intent = "escalate"
	IntentDataIngestion  Intent = "data_ingestion"
	IntentURLScraping    Intent = "url_scraping"
)

// KnownIntents lists the categories the classifier is allowed to emit.
var KnownIntents = []Intent{
	IntentKnowledgeQuery,
	IntentWebSearch,
	IntentEscalate,
	IntentDataIngestion,
	IntentURLScraping,
}

// ParseIntent normalizes free-form model output into an Intent.
func ParseIntent(s string) Intent {
	return Intent(strings.ToLower(strings.TrimSpace(s)))
}

func (i Intent) Known() bool {
	for _, k := range KnownIntents {
		if i == k {
			return true
		}
	}
	return false
}

// AgentName identifies a specialist in the registry.
type AgentName string

const (
	AgentKnowledgeQuery AgentName = "knowledge_query"
	AgentWebSearch      AgentName = "web_search"
	AgentURLContent     AgentName = "url_content"
	AgentDataIngestion  AgentName = "data_ingestion"
	AgentEscalation     AgentName = "escalation"
)

// DefaultAgent handles anything the routing table does not cover.
const DefaultAgent = AgentKnowledgeQuery

var intentRoutes = map[Intent]AgentName{
	IntentKnowledgeQuery: AgentKnowledgeQuery,
	IntentWebSearch:      AgentWebSearch,
	IntentEscalate:       AgentEscalation,
	IntentDataIngestion:  AgentDataIngestion,
	IntentURLScraping:    AgentURLContent,
}

// agentAliases accepts the names models tend to echo back from older prompts.
var agentAliases = map[string]AgentName{
	"query_handler":   AgentKnowledgeQuery,
	"knowledge_query": AgentKnowledgeQuery,
	"web_search":      AgentWebSearch,
	"escalation":      AgentEscalation,
	"data_ingestion":  AgentDataIngestion,
	"url_scraper":     AgentURLContent,
	"url_content":     AgentURLContent,
}

// ParseAgentName returns the agent a model-supplied name refers to.
func ParseAgentName(s string) (AgentName, bool) {
	name, ok := agentAliases[strings.ToLower(strings.TrimSpace(s))]
	return name, ok
}

// AgentForIntent applies the fixed routing table. ok is false when the
// intent is unknown and the default agent was chosen.
func AgentForIntent(i Intent) (AgentName, bool) {
	if name, ok := intentRoutes[i]; ok {
		return name, true
	}
	return DefaultAgent, false
}

// IntentDecision is the classifier's verdict for one query.
type IntentDecision struct {
	IsMultiIntent bool                 `json:"isMultiIntent"`
	PrimaryIntent Intent               `json:"primaryIntent"`
	Intents       []Intent             `json:"intents"`
	AgentMapping  map[Intent]AgentName `json:"agentMapping,omitempty"`
}

// SingleIntent builds a single-intent decision routed through the fixed table.
func SingleIntent(i Intent) IntentDecision {
	return IntentDecision{PrimaryIntent: i, Intents: []Intent{}}
}

// AgentFor resolves the agent for an intent: the explicit mapping first,
// then the routing table, then the default agent.
func (d IntentDecision) AgentFor(i Intent) AgentName {
	if name, ok := d.AgentMapping[i]; ok {
		return name
	}
	name, _ := AgentForIntent(i)
	return name
}

// SubQuery is one independently answerable part of a multi-intent query.
type SubQuery struct {
	Text   string `json:"text"`
	Intent Intent `json:"intent"`
}
