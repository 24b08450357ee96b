// internal/workers/ai-conversation/combine-responses/handler.go
package combineresponses

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

const TaskType = "combine-responses"

const agentName = "response_combiner"

const (
	NoResponsesText   = "I don't have enough information to provide a response at this time."
	NoResponsesReason = "No valid responses received from specialist agents."
)

const systemPrompt = `You are a response synthesizer for a customer support assistant.
Combine multiple response fragments into a single, coherent and complete response.

When combining:
1. Synthesize information from all fragments without redundancy
2. Keep a consistent, helpful tone
3. Organize information logically
4. Preserve every fact and important detail
5. If fragments contradict each other, say so explicitly instead of silently picking one
6. Cite sources when relevant
7. Answer the original query directly

Return a JSON object:
{
  "response": "the combined answer shown to the user",
  "confidence": 0.0-1.0,
  "needs_escalation": true/false,
  "escalation_reason": "why a human is needed, if so"
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
	results := make([]*models.SpecialistResult, len(input.Results))
	for i := range input.Results {
		results[i] = &input.Results[i]
	}
	return &Output{Combined: h.Combine(ctx, results, input.OriginalQuery)}, nil
}

// Combine merges successful specialist results. Zero results yield the
// escalating no-response sentinel, one result passes through, and two or
// more are synthesized by the model with a literal concatenation fallback.
func (h *Handler) Combine(ctx context.Context, results []*models.SpecialistResult, originalQuery string) *models.CombinedResult {
	ctx, run := observability.StartAgentRun(ctx, agentName, originalQuery, h.logger)

	combined := h.combine(ctx, results, originalQuery)

	h.logger.Info("responses combined", map[string]interface{}{
		"contributors":    combined.ContributorCount,
		"confidence":      combined.Confidence,
		"needsEscalation": combined.NeedsEscalation,
	})
	run.End(combined, false, nil)
	return combined
}

func (h *Handler) combine(ctx context.Context, results []*models.SpecialistResult, originalQuery string) *models.CombinedResult {
	if len(results) == 0 {
		return &models.CombinedResult{
			SpecialistResult: models.SpecialistResult{
				ResponseText:     NoResponsesText,
				Sources:          []string{},
				Confidence:       0,
				NeedsEscalation:  true,
				EscalationReason: NoResponsesReason,
			},
			Contributors: []models.AgentName{},
		}
	}

	if len(results) == 1 {
		out := models.FromSingle(results[0])
		out.Sources = models.DedupeSources(results[0].Sources)
		return out
	}

	var (
		texts        = make([]string, 0, len(results))
		sourceLists  = make([][]string, 0, len(results))
		contributors = make([]models.AgentName, 0, len(results))
		reasons      []string
		maxConf      float64
		escalate     bool
	)
	for _, r := range results {
		if t := strings.TrimSpace(r.ResponseText); t != "" {
			texts = append(texts, t)
		}
		sourceLists = append(sourceLists, r.Sources)
		contributors = append(contributors, r.Agent)
		if r.Confidence > maxConf {
			maxConf = r.Confidence
		}
		if r.NeedsEscalation {
			escalate = true
			if r.EscalationReason != "" {
				reasons = append(reasons, r.EscalationReason)
			}
		}
	}

	out := &models.CombinedResult{
		SpecialistResult: models.SpecialistResult{
			Sources:          models.DedupeSources(sourceLists...),
			Confidence:       maxConf,
			NeedsEscalation:  escalate,
			EscalationReason: strings.Join(reasons, "; "),
		},
		ContributorCount: len(results),
		Contributors:     contributors,
	}

	s, err := h.synthesize(ctx, texts, originalQuery)
	if err != nil {
		h.logger.Error("response synthesis failed, concatenating", map[string]interface{}{
			"error": err.Error(),
		})
		out.ResponseText = strings.Join(texts, "\n\n")
		out.Confidence = models.ClampConfidence(maxConf * h.config.SynthesisPenalty)
		out.NeedsEscalation = true
		out.EscalationReason = fmt.Sprintf("Error synthesizing responses: %v", err)
		return out
	}

	out.ResponseText = s.Response
	if s.Confidence != nil {
		out.Confidence = models.ClampConfidence(*s.Confidence)
	}
	if s.NeedsEscalation != nil {
		out.NeedsEscalation = *s.NeedsEscalation
	}
	if s.EscalationReason != nil {
		out.EscalationReason = *s.EscalationReason
	}
	return out
}

func (h *Handler) synthesize(ctx context.Context, texts []string, originalQuery string) (*synthesis, error) {
	blocks := make([]string, len(texts))
	for i, t := range texts {
		blocks[i] = fmt.Sprintf("Response %d:\n%s", i+1, t)
	}

	user := fmt.Sprintf(`Original user query: %s

The following response fragments need to be combined:

%s

Synthesize them into a single, coherent response that addresses the original query.
For internal assessment only, include your confidence, whether the query needs human
escalation, and the reason if so.`, originalQuery, strings.Join(blocks, "\n\n"))

	var s synthesis
	if err := h.llm.CompleteJSON(ctx, []llm.Message{llm.System(systemPrompt), llm.User(user)}, &s); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Response) == "" {
		return nil, fmt.Errorf("model returned an empty synthesis")
	}
	return &s, nil
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
