package decomposequery

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
	TaskType  = "decompose-query"
	agentName = "query_decomposer"
)

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
	subQueries, err := h.Decompose(ctx, models.Query{
		Text:      input.Query,
		UserID:    input.UserID,
		SessionID: input.SessionID,
	}, input.IntentDecision)
	if err != nil {
		return nil, err
	}
	return &Output{OriginalQuery: input.Query, SubQueries: subQueries}, nil
}

// Decompose splits q into one sub-query per intent of decision. Sub-queries
// come back in execution order; duplicate intents are kept. An empty split
// or a model failure is DECOMPOSITION_FAILED.
func (h *Handler) Decompose(ctx context.Context, q models.Query, decision models.IntentDecision) ([]models.SubQuery, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, apperrors.NewEmptyQueryError()
	}

	ctx, run := observability.StartAgentRun(ctx, agentName, q.Text, h.logger)

	text, err := h.llm.Complete(ctx, h.buildMessages(q, decision))
	if err != nil {
		failure := apperrors.NewDecompositionFailedError(err.Error())
		run.End(nil, true, failure)
		return nil, failure
	}

	subQueries, err := parseSubQueries(text)
	if err != nil {
		failure := apperrors.NewDecompositionFailedError(err.Error())
		run.End(text, true, failure)
		return nil, failure
	}
	if len(subQueries) == 0 {
		failure := apperrors.NewDecompositionFailedError("model returned no sub-queries")
		run.End(text, true, failure)
		return nil, failure
	}

	if len(subQueries) != len(decision.Intents) {
		h.logger.Warn("sub-query count differs from intent count", map[string]interface{}{
			"subQueries": len(subQueries),
			"intents":    len(decision.Intents),
		})
	}
	run.End(subQueries, false, nil)
	return subQueries, nil
}

func (h *Handler) buildMessages(q models.Query, decision models.IntentDecision) []llm.Message {
	intents := make([]string, len(decision.Intents))
	for i, intent := range decision.Intents {
		intents[i] = string(intent)
	}

	system := fmt.Sprintf(`Break down the following multi-intent query into %d separate sub-queries.
Each sub-query should address exactly one intent from the list: [%s].

Return a JSON object:
{
  "sub_queries": [
    {"text": "the sub-query text", "intent": "the intent this sub-query addresses"}
  ]
}

Make sure each sub-query stands on its own and can be understood without the other sub-queries.`,
		len(intents), strings.Join(intents, ", "))

	return []llm.Message{llm.System(system), llm.User(q.Text)}
}

// parseSubQueries accepts {"sub_queries": [...]} or a bare array.
func parseSubQueries(text string) ([]models.SubQuery, error) {
	var raw json.RawMessage
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return nil, fmt.Errorf("decode sub-queries: %w", err)
	}

	var items []rawSubQuery
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			SubQueries []rawSubQuery `json:"sub_queries"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("decode sub-queries: %w", err)
		}
		items = wrapped.SubQueries
	}

	out := make([]models.SubQuery, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			text = strings.TrimSpace(item.Query)
		}
		if text == "" {
			continue
		}
		intent := models.ParseIntent(item.Intent)
		if intent == "" {
			intent = models.IntentKnowledgeQuery
		}
		out = append(out, models.SubQuery{Text: text, Intent: intent})
	}
	return out, nil
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
