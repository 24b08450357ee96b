package classifyintent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/llm"
	"conversation-orchestrator/internal/common/observability"
	"conversation-orchestrator/internal/models"
)

const (
	TaskType  = "classify-intent"
	agentName = "intent_classifier"
)

const systemPrompt = `You route questions for a customer support assistant.
Analyze the user query and determine:
1. The primary intent of the query
2. Whether the query contains multiple intents
3. If multiple intents are present, list each intent separately
4. Which agent is best suited to handle each intent

Intent categories:
- knowledge_query: answerable from the internal knowledge base
- web_search: needs current information from the web
- escalate: needs a human operator (account specific, complaints, authentication)
- data_ingestion: the user wants a document added to the knowledge base
- url_scraping: the user wants the content of a specific URL read

Agents: knowledge_query, web_search, escalation, data_ingestion, url_content.

Return a JSON object:
{
  "is_multi_intent": boolean,
  "primary_intent": "one intent category",
  "intents": ["intent categories, only when multi-intent"],
  "agent_mapping": {"intent": "agent"}
}`

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config     *Config
	llm        llm.Completer
	errHandler *apperrors.ErrorHandler
	logger     Logger
}

func NewHandler(config *Config, completer llm.Completer, log Logger) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:     config,
		llm:        completer,
		errHandler: apperrors.NewErrorHandler(scoped),
		logger:     scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewInvalidJobVariablesError(TaskType, err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	decision, err := h.Classify(ctx, models.Query{
		Text:      input.Query,
		UserID:    input.UserID,
		SessionID: input.SessionID,
		History:   input.History,
	})
	if err != nil {
		return nil, err
	}
	return &Output{IntentDecision: decision}, nil
}

// Classify returns the routing decision for q. Only an empty query is an
// error; a failing or incoherent model yields a single knowledge_query intent.
func (h *Handler) Classify(ctx context.Context, q models.Query) (models.IntentDecision, error) {
	if strings.TrimSpace(q.Text) == "" {
		return models.IntentDecision{}, apperrors.NewEmptyQueryError()
	}

	ctx, run := observability.StartAgentRun(ctx, agentName, q.Text, h.logger)

	var raw modelDecision
	if err := h.llm.CompleteJSON(ctx, h.buildMessages(q), &raw); err != nil {
		h.logger.Warn("classification failed, defaulting to knowledge_query", map[string]interface{}{
			"error": err.Error(),
		})
		decision := models.SingleIntent(models.IntentKnowledgeQuery)
		run.End(decision, true, nil)
		return decision, nil
	}

	decision := normalize(raw)
	h.logger.Info("intent classified", map[string]interface{}{
		"primaryIntent": decision.PrimaryIntent,
		"isMultiIntent": decision.IsMultiIntent,
		"intentCount":   len(decision.Intents),
	})
	run.End(decision, false, nil)
	return decision, nil
}

func (h *Handler) buildMessages(q models.Query) []llm.Message {
	var user strings.Builder
	if recent := q.RecentTurns(h.config.ContextTurns); len(recent) > 0 {
		fmt.Fprintf(&user, "Recent conversation:\n%s\n\n", models.FormatTurns(recent))
	}
	fmt.Fprintf(&user, "User query: %s", q.Text)
	return []llm.Message{llm.System(systemPrompt), llm.User(user.String())}
}

// normalize turns the model's answer into a coherent decision. Unknown intent
// strings are kept; the conductor routes them to the default agent.
func normalize(raw modelDecision) models.IntentDecision {
	primary := raw.PrimaryIntent
	if primary == "" {
		primary = raw.Intent
	}

	d := models.IntentDecision{
		IsMultiIntent: raw.IsMultiIntent,
		PrimaryIntent: models.ParseIntent(primary),
		Intents:       []models.Intent{},
	}
	if d.IsMultiIntent {
		for _, s := range raw.Intents {
			if i := models.ParseIntent(s); i != "" {
				d.Intents = append(d.Intents, i)
			}
		}
		if len(d.Intents) == 0 {
			d.IsMultiIntent = false
		}
	}

	if d.PrimaryIntent == "" {
		if len(d.Intents) > 0 {
			d.PrimaryIntent = d.Intents[0]
		} else {
			d.PrimaryIntent = models.IntentKnowledgeQuery
		}
	}

	for intent, agent := range raw.AgentMapping {
		name, ok := models.ParseAgentName(agent)
		if !ok {
			continue
		}
		if d.AgentMapping == nil {
			d.AgentMapping = make(map[models.Intent]models.AgentName)
		}
		d.AgentMapping[models.ParseIntent(intent)] = name
	}
	return d
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	h.errHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
