package knowledgequery

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

const TaskType = "knowledge-query"

const generationFailedResponse = "I apologize, but I encountered an error while generating a response. Please try asking your question again."

const systemPrompt = `You are a customer support assistant providing helpful, accurate information about products, services and policies. Your responses should be accurate, clear and professional.

When responding:
- Only use information from the provided knowledge sources
- If the sources do not contain the answer, say so and suggest next steps
- Cite sources by their identifier when appropriate
- Never make up information
- Include appropriate disclaimers for financial topics

Return a JSON object:
{
  "response": "the answer shown to the user",
  "confidence": 0.0-1.0,
  "needs_escalation": true/false,
  "escalation_reason": "why a human is needed, if so"
}`

// Retriever is the knowledge store contract.
type Retriever interface {
	Search(ctx context.Context, query string, limit int, minScore float64) ([]models.KnowledgeItem, error)
	VectorSearch(ctx context.Context, query string, limit int) ([]models.KnowledgeItem, error)
}

// Memory reads prior turns when the caller did not supply them.
type Memory interface {
	Recent(ctx context.Context, userID, sessionID string, n int) ([]models.Message, error)
}

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config     *Config
	retriever  Retriever
	memory     Memory
	llm        llm.Completer
	errHandler *apperrors.ErrorHandler
	logger     Logger
}

// NewHandler wires the agent. memory may be nil.
func NewHandler(config *Config, retriever Retriever, memory Memory, completer llm.Completer, log Logger) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:     config,
		retriever:  retriever,
		memory:     memory,
		llm:        completer,
		errHandler: apperrors.NewErrorHandler(scoped),
		logger:     scoped,
	}
}

func (h *Handler) Name() models.AgentName {
	return models.AgentKnowledgeQuery
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
	if strings.TrimSpace(input.Query) == "" {
		return nil, apperrors.NewEmptyQueryError()
	}
	outcome, retrieved := h.process(ctx, models.Query{
		Text:      input.Query,
		UserID:    input.UserID,
		SessionID: input.SessionID,
	})
	return &Output{Outcome: outcome, RetrievedCount: retrieved}, nil
}

// Process answers q from the knowledge store. Collaborator failures become
// an error outcome; a failed generation is an escalating answer.
func (h *Handler) Process(ctx context.Context, q models.Query) models.Outcome {
	outcome, _ := h.process(ctx, q)
	return outcome
}

func (h *Handler) process(ctx context.Context, q models.Query) (models.Outcome, int) {
	ctx, run := observability.StartAgentRun(ctx, string(models.AgentKnowledgeQuery), q.Text, h.logger)

	if strings.TrimSpace(q.Text) == "" {
		outcome := models.Failed(models.AgentKnowledgeQuery, "no query provided")
		run.End(outcome, true, nil)
		return outcome, 0
	}

	history := h.history(ctx, q)

	items, err := h.retrieve(ctx, q.Text, history)
	if err != nil {
		outcome := models.Failed(models.AgentKnowledgeQuery, "knowledge retrieval failed: %v", err)
		run.End(outcome, true, err)
		return outcome, 0
	}

	result := h.generate(ctx, q.Text, items, history)
	outcome := models.Succeeded(result)
	run.End(outcome, false, nil)
	return outcome, len(items)
}

func (h *Handler) history(ctx context.Context, q models.Query) []models.Message {
	if len(q.History) > 0 || h.memory == nil || q.UserID == "" {
		return q.RecentTurns(h.config.MemoryLimit)
	}
	msgs, err := h.memory.Recent(ctx, q.UserID, q.SessionID, h.config.MemoryLimit)
	if err != nil {
		h.logger.Warn("conversation memory unavailable", map[string]interface{}{
			"userId": q.UserID,
			"error":  err.Error(),
		})
		return nil
	}
	return msgs
}

// retrieve runs the scored search and tops it up from vector search when it
// returns fewer than FallbackThreshold items. It only fails when both fail.
func (h *Handler) retrieve(ctx context.Context, query string, history []models.Message) ([]models.KnowledgeItem, error) {
	searchQuery := query
	if len(history) > 0 {
		recent := history
		if len(recent) > h.config.SearchTurns {
			recent = recent[len(recent)-h.config.SearchTurns:]
		}
		searchQuery = models.FormatTurns(recent) + "\n\nCurrent query: " + query
	}

	items, searchErr := h.retriever.Search(ctx, searchQuery, h.config.RetrievalLimit, h.config.MinScore)
	if searchErr != nil {
		h.logger.Warn("knowledge search failed", map[string]interface{}{"error": searchErr.Error()})
	}

	if len(items) < h.config.FallbackThreshold {
		extra, err := h.retriever.VectorSearch(ctx, searchQuery, h.config.FallbackLimit)
		if err != nil {
			h.logger.Warn("vector fallback failed", map[string]interface{}{"error": err.Error()})
			if searchErr != nil {
				return nil, searchErr
			}
		}
		items = append(items, extra...)
	}

	seen := make(map[string]bool, len(items))
	unique := make([]models.KnowledgeItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		unique = append(unique, item)
	}
	return unique, nil
}

func (h *Handler) generate(ctx context.Context, query string, items []models.KnowledgeItem, history []models.Message) *models.SpecialistResult {
	var knowledge strings.Builder
	sources := []string{}
	for i, item := range items {
		if item.Content == "" {
			continue
		}
		label := sourceLabel(item, i)
		fmt.Fprintf(&knowledge, "\n\nSource %d (%s):\n%s", i+1, label, item.Content)
		sources = append(sources, label)
	}

	recent := history
	if len(recent) > h.config.PromptTurns {
		recent = recent[len(recent)-h.config.PromptTurns:]
	}

	user := fmt.Sprintf(`Previous conversation:
%s

User query: %s

Relevant knowledge:
%s

Answer from the relevant knowledge. If it does not answer the question, acknowledge the limitation.
Also assess your confidence, whether a human should take over, and why.`,
		models.FormatTurns(recent), query, knowledge.String())

	var answer modelAnswer
	err := h.llm.CompleteJSON(ctx, []llm.Message{llm.System(systemPrompt), llm.User(user)}, &answer)
	text := answer.Response
	if text == "" {
		text = answer.Answer
	}
	if err == nil && text == "" {
		err = fmt.Errorf("model returned an empty response")
	}
	if err != nil {
		h.logger.Error("response generation failed", map[string]interface{}{"error": err.Error()})
		return &models.SpecialistResult{
			Agent:            models.AgentKnowledgeQuery,
			ResponseText:     generationFailedResponse,
			Sources:          []string{},
			Confidence:       0,
			NeedsEscalation:  true,
			EscalationReason: fmt.Sprintf("Error generating response: %v", err),
		}
	}

	confidence := h.config.DefaultConfidence
	if answer.Confidence != nil {
		confidence = *answer.Confidence
	}

	return &models.SpecialistResult{
		Agent:            models.AgentKnowledgeQuery,
		ResponseText:     text,
		Sources:          sources,
		Confidence:       models.ClampConfidence(confidence),
		NeedsEscalation:  answer.NeedsEscalation,
		EscalationReason: answer.EscalationReason,
	}
}

// sourceLabel prefers the item title, then a "source" metadata entry, then a
// positional "Document i" label.
func sourceLabel(item models.KnowledgeItem, i int) string {
	if item.Title != "" {
		return item.Title
	}
	if src, ok := item.Metadata["source"].(string); ok && src != "" {
		return src
	}
	return fmt.Sprintf("Document %d", i+1)
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
