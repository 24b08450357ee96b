// internal/workers/ai-conversation/web-search/handler.go
package websearch

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

const TaskType = "web-search"

const (
	summaryFailedText = "Error summarizing search results"
	noResultsText     = "I could not find relevant information on the web for this question."
)

const queryPrompt = `You are a search query optimizer for a customer support assistant.
Convert the user's question into 1-3 effective web search queries.

Guidelines:
1. Focus on the core information need
2. Remove unnecessary words and phrases
3. Use keywords and specific terms
4. Include domain-specific terms for financial questions
5. For complex questions, create multiple queries covering different aspects

Return a JSON object: {"search_queries": ["query 1", "query 2"]}`

const summaryPrompt = `You analyze web search results for a customer support assistant.
For the user's question provide a brief summary of the key information found, the key facts
relevant to the question, and an assessment of how well the results answer it.
Be objective and factual. Note where the results are insufficient.

Return a JSON object:
{
  "summary": "2-3 sentence summary",
  "key_facts": ["fact 1", "fact 2"],
  "relevance_assessment": "how well the results answer the question",
  "confidence": 0.0-1.0
}`

// Searcher is the web search provider contract.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.WebResult, error)
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
	searcher   Searcher
	llm        llm.Completer
	errHandler *apperrors.ErrorHandler
	logger     Logger
}

func NewHandler(config *Config, searcher Searcher, completer llm.Completer, log Logger) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:     config,
		searcher:   searcher,
		llm:        completer,
		errHandler: apperrors.NewErrorHandler(scoped),
		logger:     scoped,
	}
}

func (h *Handler) Name() models.AgentName {
	return models.AgentWebSearch
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
	return h.process(ctx, models.Query{
		Text:      input.Query,
		UserID:    input.UserID,
		SessionID: input.SessionID,
	}), nil
}

// Process searches the web for q and summarizes the top results. Search
// failures become an error outcome; a failed summary escalates.
func (h *Handler) Process(ctx context.Context, q models.Query) models.Outcome {
	return h.process(ctx, q).Outcome
}

func (h *Handler) process(ctx context.Context, q models.Query) *Output {
	ctx, run := observability.StartAgentRun(ctx, string(models.AgentWebSearch), q.Text, h.logger)

	out := &Output{SearchQueries: []string{}, Results: []models.WebResult{}, KeyFacts: []string{}}
	if strings.TrimSpace(q.Text) == "" {
		out.Outcome = models.Failed(models.AgentWebSearch, "no search query provided")
		run.End(out.Outcome, true, nil)
		return out
	}

	out.SearchQueries = h.generateQueries(ctx, q.Text)

	results, err := h.runSearches(ctx, out.SearchQueries)
	if err != nil {
		out.Outcome = models.Failed(models.AgentWebSearch, "web search failed: %v", err)
		run.End(out.Outcome, true, err)
		return out
	}
	out.Results = results

	if len(results) == 0 {
		out.Outcome = models.Succeeded(&models.SpecialistResult{
			Agent:        models.AgentWebSearch,
			ResponseText: noResultsText,
			Sources:      []string{},
			Confidence:   0,
		})
		run.End(out.Outcome, false, nil)
		return out
	}

	result, s := h.summarize(ctx, q.Text, results)
	out.KeyFacts = s.KeyFacts
	out.RelevanceAssessment = s.RelevanceAssessment
	out.Outcome = models.Succeeded(result)

	h.logger.Info("web search completed", map[string]interface{}{
		"queries":     len(out.SearchQueries),
		"resultCount": len(results),
		"confidence":  result.Confidence,
	})
	run.End(out.Outcome, false, nil)
	return out
}

// generateQueries asks the model for up to MaxQueries search strings and
// falls back to the original text verbatim.
func (h *Handler) generateQueries(ctx context.Context, text string) []string {
	var gen generatedQueries
	err := h.llm.CompleteJSON(ctx, []llm.Message{
		llm.System(queryPrompt),
		llm.User(fmt.Sprintf("Original user query: %s\n\nGenerate 1-3 effective search queries for this question.", text)),
	}, &gen)
	if err != nil {
		h.logger.Warn("search query generation failed, using original query", map[string]interface{}{
			"error": err.Error(),
		})
		return []string{text}
	}

	queries := make([]string, 0, len(gen.SearchQueries))
	for _, sq := range gen.SearchQueries {
		if sq = strings.TrimSpace(sq); sq != "" {
			queries = append(queries, sq)
		}
	}
	if len(queries) == 0 {
		return []string{text}
	}
	if len(queries) > h.config.MaxQueries {
		queries = queries[:h.config.MaxQueries]
	}
	return queries
}

// runSearches executes every query in order, keeps the first result seen
// for each URL and truncates to MaxResults. It fails only when every
// query failed.
func (h *Handler) runSearches(ctx context.Context, queries []string) ([]models.WebResult, error) {
	var (
		lastErr  error
		failures int
		seen     = make(map[string]bool)
		unique   = []models.WebResult{}
	)
	for _, sq := range queries {
		results, err := h.searcher.Search(ctx, sq)
		if err != nil {
			failures++
			lastErr = err
			h.logger.Warn("search query failed", map[string]interface{}{
				"query": sq,
				"error": err.Error(),
			})
			continue
		}
		for _, r := range results {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			unique = append(unique, r)
		}
	}
	if failures == len(queries) {
		return nil, lastErr
	}
	if len(unique) > h.config.MaxResults {
		unique = unique[:h.config.MaxResults]
	}
	return unique, nil
}

func (h *Handler) summarize(ctx context.Context, text string, results []models.WebResult) (*models.SpecialistResult, summary) {
	blocks := make([]string, len(results))
	sources := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("Source %d: %s\nURL: %s\nSnippet: %s", i+1, r.Title, r.URL, r.Snippet)
		sources[i] = r.URL
	}

	var s summary
	err := h.llm.CompleteJSON(ctx, []llm.Message{
		llm.System(summaryPrompt),
		llm.User(fmt.Sprintf("Original user query: %s\n\nSearch results:\n%s", text, strings.Join(blocks, "\n\n"))),
	}, &s)
	if err == nil && strings.TrimSpace(s.Summary) == "" {
		err = fmt.Errorf("model returned an empty summary")
	}
	if err != nil {
		h.logger.Error("search result summary failed", map[string]interface{}{"error": err.Error()})
		return &models.SpecialistResult{
			Agent:            models.AgentWebSearch,
			ResponseText:     summaryFailedText,
			Sources:          sources,
			Confidence:       0,
			NeedsEscalation:  true,
			EscalationReason: fmt.Sprintf("%s: %v", summaryFailedText, err),
		}, summary{KeyFacts: []string{}, RelevanceAssessment: "Unable to assess relevance due to an error"}
	}

	if s.KeyFacts == nil {
		s.KeyFacts = []string{}
	}
	confidence := h.config.DefaultConfidence
	if s.Confidence != nil {
		confidence = *s.Confidence
	}
	return &models.SpecialistResult{
		Agent:        models.AgentWebSearch,
		ResponseText: renderAnswer(s),
		Sources:      sources,
		Confidence:   models.ClampConfidence(confidence),
	}, s
}

func renderAnswer(s summary) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.Summary))
	if len(s.KeyFacts) > 0 {
		b.WriteString("\n\nKey facts:")
		for _, f := range s.KeyFacts {
			b.WriteString("\n- ")
			b.WriteString(f)
		}
	}
	return b.String()
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
