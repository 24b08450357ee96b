// internal/workers/ai-conversation/data-ingestion/handler.go
package dataingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/observability"
	"conversation-orchestrator/internal/common/validation"
	"conversation-orchestrator/internal/models"
)

const TaskType = "data-ingestion"

const noDocumentMessage = "No document path or text provided"

var fileRefPattern = regexp.MustCompile(`(?:s3|file)://[^\s"'<>]+`)

// Registrar stores a document for retrieval; chunking and embedding are its concern.
type Registrar interface {
	Register(ctx context.Context, doc *models.Document) (*models.Document, error)
}

// BlobReader loads the content behind a file reference.
type BlobReader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
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
	registrar  Registrar
	blobs      BlobReader
	errHandler *apperrors.ErrorHandler
	logger     Logger
}

// NewHandler wires the agent. blobs may be nil, in which case only inline
// text can be ingested.
func NewHandler(config *Config, registrar Registrar, blobs BlobReader, log Logger) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:     config,
		registrar:  registrar,
		blobs:      blobs,
		errHandler: apperrors.NewErrorHandler(scoped),
		logger:     scoped,
	}
}

func (h *Handler) Name() models.AgentName {
	return models.AgentDataIngestion
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
	result, err := validation.ValidateInput(input, inputSchema)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidJobVariablesError(TaskType, strings.Join(result.GetErrorMessages(), "; "))
	}
	return h.ingest(ctx, input), nil
}

// Process ingests the s3:// or file:// reference named in q. Inline document
// text only arrives through the job interface.
func (h *Handler) Process(ctx context.Context, q models.Query) models.Outcome {
	ref := FileReference(q.Text)
	if ref == "" {
		_, run := observability.StartAgentRun(ctx, string(models.AgentDataIngestion), q.Text, h.logger)
		outcome := models.Failed(models.AgentDataIngestion, "%s: mention an s3:// or file:// reference to ingest", noDocumentMessage)
		run.End(outcome, true, nil)
		return outcome
	}
	return h.ingest(ctx, &Input{DocumentPath: ref}).Outcome
}

func (h *Handler) ingest(ctx context.Context, input *Input) *Output {
	ctx, run := observability.StartAgentRun(ctx, string(models.AgentDataIngestion), describe(input), h.logger)

	text := input.DocumentText
	ref := strings.TrimSpace(input.DocumentPath)
	if strings.TrimSpace(text) == "" && ref == "" {
		outcome := models.Failed(models.AgentDataIngestion, noDocumentMessage)
		run.End(outcome, true, nil)
		return &Output{Outcome: outcome}
	}

	if strings.TrimSpace(text) == "" {
		if h.blobs == nil {
			outcome := models.Failed(models.AgentDataIngestion, "file references are not supported: %s", ref)
			run.End(outcome, true, nil)
			return &Output{Outcome: outcome}
		}
		data, err := h.blobs.Read(ctx, ref)
		if err != nil {
			outcome := models.Failed(models.AgentDataIngestion, "Failed to read %s: %v", ref, err)
			run.End(outcome, true, err)
			return &Output{Outcome: outcome}
		}
		text = string(data)
	}

	doc := &models.Document{
		Title:      h.title(input.Title, ref),
		Type:       input.DocumentType,
		Category:   input.Category,
		Text:       text,
		SourcePath: ref,
	}
	if doc.Type == "" {
		doc.Type = h.config.DefaultType
	}

	h.logger.Info("ingesting document", map[string]interface{}{
		"title":        doc.Title,
		"documentType": doc.Type,
		"source":       ref,
	})

	stored, err := h.registrar.Register(ctx, doc)
	if err != nil {
		outcome := models.Failed(models.AgentDataIngestion, "Failed to register document %s: %v", doc.Title, err)
		run.End(outcome, true, err)
		return &Output{Outcome: outcome}
	}

	outcome := models.Succeeded(&models.SpecialistResult{
		Agent:        models.AgentDataIngestion,
		ResponseText: fmt.Sprintf("Successfully processed document: %s (%d chunks, id %s)", stored.Title, stored.Chunks, stored.ID),
		Sources:      []string{stored.Title},
		Confidence:   1,
	})
	run.End(outcome, false, nil)
	return &Output{Outcome: outcome, Document: stored, ChunksProcessed: stored.Chunks}
}

func (h *Handler) title(explicit, ref string) string {
	if t := strings.TrimSpace(explicit); t != "" {
		return t
	}
	if ref != "" {
		base := path.Base(strings.TrimSuffix(ref, "/"))
		if base != "." && base != "/" && !strings.HasSuffix(base, ":") {
			return base
		}
	}
	return h.config.DefaultTitle
}

func describe(input *Input) string {
	if input.DocumentPath != "" {
		return input.DocumentPath
	}
	return input.DocumentText
}

// FileReference returns the first s3:// or file:// reference in text.
func FileReference(text string) string {
	return strings.TrimRight(fileRefPattern.FindString(text), ".,;:!?)]}")
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
