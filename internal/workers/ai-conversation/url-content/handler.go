// internal/workers/ai-conversation/url-content/handler.go
package urlcontent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	apperrors "conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/llm"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/common/observability"
	"conversation-orchestrator/internal/common/validation"
	"conversation-orchestrator/internal/fetch"
	"conversation-orchestrator/internal/models"
)

const TaskType = "url-content"

const analysisFailedText = "Error analyzing content"

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+`)

// PageFetcher is the URL fetch collaborator.
type PageFetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Page, error)
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
	fetcher    PageFetcher
	llm        llm.Completer
	errHandler *apperrors.ErrorHandler
	logger     Logger
}

func NewHandler(config *Config, fetcher PageFetcher, completer llm.Completer, log Logger) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:     config,
		fetcher:    fetcher,
		llm:        completer,
		errHandler: apperrors.NewErrorHandler(scoped),
		logger:     scoped,
	}
}

func (h *Handler) Name() models.AgentName {
	return models.AgentURLContent
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
	target := strings.TrimSpace(input.URL)
	if target == "" {
		target = FirstURL(input.Query)
	}
	if target == "" {
		return nil, apperrors.NewMissingIdentifierError("url")
	}
	if !validation.ValidateURL(target) {
		return nil, apperrors.NewInvalidJobVariablesError(TaskType, "url must be an absolute http(s) URL")
	}
	return h.process(ctx, target), nil
}

// Process reads the first URL mentioned in q. A missing URL or a failed
// fetch is an error outcome; fetch failures are never retried here.
func (h *Handler) Process(ctx context.Context, q models.Query) models.Outcome {
	target := FirstURL(q.Text)
	if target == "" {
		_, run := observability.StartAgentRun(ctx, string(models.AgentURLContent), q.Text, h.logger)
		outcome := models.Failed(models.AgentURLContent, "no URL provided")
		run.End(outcome, true, nil)
		return outcome
	}
	return h.process(ctx, target).Outcome
}

func (h *Handler) process(ctx context.Context, target string) *Output {
	ctx, run := observability.StartAgentRun(ctx, string(models.AgentURLContent), target, h.logger)

	page, err := h.fetcher.Get(ctx, target)
	if err != nil {
		outcome := models.Failed(models.AgentURLContent, "Failed to fetch %s: %v", target, err)
		run.End(outcome, true, err)
		return &Output{Outcome: outcome}
	}

	a, analyzed := h.analyze(ctx, page)
	summary := &PageSummary{
		URL:           target,
		Title:         a.Title,
		Summary:       a.Summary,
		KeyPoints:     a.KeyPoints,
		Categories:    a.Categories,
		Excerpt:       logger.Truncate(page.Content, h.config.ExcerptChars),
		ContentLength: utf8.RuneCountInString(page.Content),
	}

	result := &models.SpecialistResult{
		Agent:        models.AgentURLContent,
		ResponseText: renderAnswer(summary, analyzed),
		Sources:      []string{target},
		Confidence:   h.config.Confidence,
	}
	if !analyzed {
		result.Confidence = h.config.DegradedConfidence
	}

	h.logger.Info("url content extracted", map[string]interface{}{
		"url":           target,
		"contentLength": summary.ContentLength,
		"analyzed":      analyzed,
	})
	outcome := models.Succeeded(result)
	run.End(outcome, false, nil)
	return &Output{Outcome: outcome, Page: summary}
}

// analyze asks the model for title, summary, key points and categories.
// On failure the title is derived from the URL path.
func (h *Handler) analyze(ctx context.Context, page *fetch.Page) (analysis, bool) {
	system := fmt.Sprintf(`Analyze the following web content fetched from URL: %s

Extract:
1. A suitable title for this content (if not clear from the content)
2. A brief summary (3-4 sentences)
3. 3-5 key points or facts from the content
4. 5-8 categories or tags that describe the content

Return a JSON object:
{
  "title": "extracted or inferred title",
  "summary": "brief summary",
  "key_points": ["point 1", "point 2"],
  "categories": ["category1", "category2"]
}`, page.URL)

	var a analysis
	err := h.llm.CompleteJSON(ctx, []llm.Message{
		llm.System(system),
		llm.User(logger.Truncate(page.Content, h.config.AnalysisChars)),
	}, &a)
	if err != nil {
		h.logger.Error("content analysis failed", map[string]interface{}{
			"url":   page.URL,
			"error": err.Error(),
		})
		title := page.Title
		if title == "" {
			title = TitleFromURL(page.URL)
		}
		return analysis{Title: title, Summary: analysisFailedText, KeyPoints: []string{}, Categories: []string{}}, false
	}

	if a.Title == "" {
		a.Title = page.Title
	}
	if a.KeyPoints == nil {
		a.KeyPoints = []string{}
	}
	if a.Categories == nil {
		a.Categories = []string{}
	}
	return a, true
}

func renderAnswer(s *PageSummary, analyzed bool) string {
	var b strings.Builder
	if s.Title != "" {
		b.WriteString(s.Title)
		b.WriteString("\n\n")
	}
	if analyzed {
		b.WriteString(s.Summary)
	} else {
		b.WriteString(s.Excerpt)
	}
	if len(s.KeyPoints) > 0 {
		b.WriteString("\n\nKey points:")
		for _, p := range s.KeyPoints {
			b.WriteString("\n- ")
			b.WriteString(p)
		}
	}
	return strings.TrimSpace(b.String())
}

// FirstURL returns the first http(s) URL in text, without trailing punctuation.
func FirstURL(text string) string {
	return strings.TrimRight(urlPattern.FindString(text), ".,;:!?)]}")
}

// TitleFromURL turns the last path segment into a readable title:
// "https://x.io/loan-rates_2024" becomes "Loan Rates 2024".
func TitleFromURL(rawURL string) string {
	segment := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		segment = path.Base(strings.TrimSuffix(u.Path, "/"))
		if segment == "." || segment == "/" || segment == "" {
			segment = u.Host
		}
	}
	segment = strings.NewReplacer("-", " ", "_", " ").Replace(segment)
	return cases.Title(language.English).String(segment)
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
