// internal/workers/ai-conversation/evaluate-escalation/handler.go
package evaluateescalation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/llm"
	"conversation-orchestrator/internal/common/metrics"
	"conversation-orchestrator/internal/common/observability"
	"conversation-orchestrator/internal/models"
	"conversation-orchestrator/internal/stores/escalations"
)

const TaskType = "evaluate-escalation"

const (
	fallbackInterim = "I'll need to connect you with a human specialist to better assist with your query. A team member will get back to you shortly. Thank you for your patience."
	requestedText   = "Let me connect you with a member of our support team."
	requestedReason = "User requested assistance from a human operator"
)

const reviewPrompt = `You are an escalation analyst for a customer support assistant.
Decide whether a user query and its AI-generated response require human intervention.

Escalate for:
1. Complex or nuanced financial questions beyond the assistant's capabilities
2. Questions about specific user accounts or transactions
3. Requests requiring authentication or verification
4. Legal or regulatory questions that need expert handling
5. Financial advice beyond basic information
6. Complaints, disputes or sensitive customer service issues
7. Technical issues with the platform
8. Requests for actions the assistant cannot perform

Return a JSON object: {"needs_escalation": true/false, "reason": "brief explanation"}`

const interimPrompt = `You are a customer support assistant. The user's query is being handed to a human operator.
Write a polite, empathetic interim response that:
1. Acknowledges the question
2. Explains that a human team member will assist
3. Sets expectations about response time
4. Offers partial guidance while they wait, if possible

Be honest and focus on a good customer experience during the handoff.`

// Store persists escalation tickets.
type Store interface {
	Create(ctx context.Context, rec *models.EscalationRecord) error
	Finalize(ctx context.Context, id, interim string, status models.EscalationStatus, waitMinutes int) error
	Resolve(ctx context.Context, id, resolution string) (*models.EscalationRecord, error)
}

// Memory is the conversation store.
type Memory interface {
	Recent(ctx context.Context, userID, sessionID string, n int) ([]models.Message, error)
	Append(ctx context.Context, userID, sessionID string, msgs ...models.Message) error
}

// Notifier alerts operators about a new ticket.
type Notifier interface {
	NotifyEscalation(ctx context.Context, rec *models.EscalationRecord) error
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
	store      Store
	memory     Memory
	notifier   Notifier
	llm        llm.Completer
	errHandler *apperrors.ErrorHandler
	logger     Logger
}

// NewHandler wires the escalation agent. memory and notifier may be nil.
func NewHandler(config *Config, store Store, memory Memory, notifier Notifier, completer llm.Completer, log Logger) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:     config,
		store:      store,
		memory:     memory,
		notifier:   notifier,
		llm:        completer,
		errHandler: apperrors.NewErrorHandler(scoped),
		logger:     scoped,
	}
}

func (h *Handler) Name() models.AgentName {
	return models.AgentEscalation
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
	if input.UserID == "" {
		return nil, apperrors.NewMissingIdentifierError("userId")
	}

	result := &models.SpecialistResult{
		ResponseText:     input.Response,
		NeedsEscalation:  input.NeedsEscalation,
		EscalationReason: input.EscalationReason,
	}
	if input.Confidence != nil {
		result.Confidence = *input.Confidence
	}

	eval := h.Evaluate(ctx, input.Query, result)
	if !eval.NeedsEscalation {
		return &Output{NeedsEscalation: false, Reason: eval.Reason}, nil
	}

	q := models.Query{Text: input.Query, UserID: input.UserID, SessionID: input.SessionID}
	rec, note := h.Escalate(ctx, q, input.Response, eval)
	h.remember(ctx, q.UserID, q.SessionID, note)

	return &Output{
		NeedsEscalation:      true,
		Reason:               eval.Reason,
		EscalationID:         rec.ID,
		InterimResponse:      rec.InterimResponse,
		EstimatedWaitMinutes: rec.EstimatedWaitMinutes,
		Status:               rec.Status,
	}, nil
}

// Process answers an explicit request for a human. The returned result is
// flagged so the caller opens the ticket.
func (h *Handler) Process(ctx context.Context, q models.Query) models.Outcome {
	_, run := observability.StartAgentRun(ctx, string(models.AgentEscalation), q.Text, h.logger)
	outcome := models.Succeeded(&models.SpecialistResult{
		Agent:            models.AgentEscalation,
		ResponseText:     requestedText,
		Sources:          []string{},
		Confidence:       0,
		NeedsEscalation:  true,
		EscalationReason: requestedReason,
	})
	run.End(outcome, false, nil)
	return outcome
}

// Check applies the escalation policy used on every conductor answer. A
// flagged result or one below ConfidenceThreshold escalates without asking
// the model; otherwise the model reviews it only when ModelReview is on.
func (h *Handler) Check(ctx context.Context, query string, r *models.SpecialistResult) Evaluation {
	if eval, decided := h.policy(r); decided {
		return eval
	}
	if !h.config.ModelReview {
		return Evaluation{Trigger: TriggerNone}
	}
	return h.review(ctx, query, r)
}

// Evaluate is Check with the model review always on.
func (h *Handler) Evaluate(ctx context.Context, query string, r *models.SpecialistResult) Evaluation {
	if eval, decided := h.policy(r); decided {
		return eval
	}
	return h.review(ctx, query, r)
}

func (h *Handler) policy(r *models.SpecialistResult) (Evaluation, bool) {
	if r.NeedsEscalation {
		return Evaluation{NeedsEscalation: true, Reason: r.EscalationReason, Trigger: TriggerFlagged}, true
	}
	if r.Confidence < h.config.ConfidenceThreshold {
		return Evaluation{
			NeedsEscalation: true,
			Reason:          fmt.Sprintf("Low confidence response (%.2f < %.1f)", r.Confidence, h.config.ConfidenceThreshold),
			Trigger:         TriggerLowConfidence,
		}, true
	}
	return Evaluation{}, false
}

func (h *Handler) review(ctx context.Context, query string, r *models.SpecialistResult) Evaluation {
	user := fmt.Sprintf(`Evaluate this user query and AI response for escalation:

User query: %s

AI response: %s

Response confidence: %.2f`, query, r.ResponseText, r.Confidence)

	var rv review
	if err := h.llm.CompleteJSON(ctx, []llm.Message{llm.System(reviewPrompt), llm.User(user)}, &rv); err != nil {
		h.logger.Error("escalation review failed, escalating", map[string]interface{}{"error": err.Error()})
		return Evaluation{
			NeedsEscalation: true,
			Reason:          fmt.Sprintf("Error evaluating escalation: %v", err),
			Trigger:         TriggerReviewError,
		}
	}

	h.logger.Info("escalation reviewed", map[string]interface{}{
		"needsEscalation": rv.NeedsEscalation,
		"reason":          rv.Reason,
	})
	trigger := TriggerNone
	if rv.NeedsEscalation {
		trigger = TriggerModelReview
	}
	return Evaluation{NeedsEscalation: rv.NeedsEscalation, Reason: rv.Reason, Trigger: trigger}
}

// Escalate opens a ticket for q and produces the interim response shown to
// the user. It never fails: store and notifier errors are logged, and a
// failed interim generation falls back to a fixed text, status error and
// the longer wait. The returned message records the ticket in memory and is
// left to the caller to append.
func (h *Handler) Escalate(ctx context.Context, q models.Query, proposed string, eval Evaluation) (*models.EscalationRecord, models.Message) {
	ctx, run := observability.StartAgentRun(ctx, string(models.AgentEscalation), q.Text, h.logger)

	rec := &models.EscalationRecord{
		ID:                   escalations.NewID(),
		UserID:               q.UserID,
		SessionID:            q.SessionID,
		Query:                q.Text,
		ProposedResponse:     proposed,
		Reason:               eval.Reason,
		Status:               models.EscalationPending,
		EstimatedWaitMinutes: h.config.EstimatedWaitMinutes,
		CreatedAt:            time.Now().UTC(),
	}

	persisted := true
	if err := h.store.Create(ctx, rec); err != nil {
		persisted = false
		h.logger.Error("failed to persist escalation", map[string]interface{}{
			"escalationId": rec.ID,
			"error":        err.Error(),
		})
	}

	interim, err := h.interim(ctx, q, proposed, eval.Reason)
	if err != nil {
		genErr := apperrors.NewEscalationGenerationFailedError(err)
		h.logger.Error("interim response generation failed", map[string]interface{}{
			"escalationId": rec.ID,
			"error":        genErr.Error(),
		})
		rec.InterimResponse = fallbackInterim
		rec.Status = models.EscalationError
		rec.EstimatedWaitMinutes = h.config.FallbackWaitMinutes
	} else {
		rec.InterimResponse = interim
	}

	if persisted {
		if ferr := h.store.Finalize(ctx, rec.ID, rec.InterimResponse, rec.Status, rec.EstimatedWaitMinutes); ferr != nil {
			h.logger.Error("failed to finalize escalation", map[string]interface{}{
				"escalationId": rec.ID,
				"error":        ferr.Error(),
			})
		}
	}

	if h.notifier != nil {
		if nerr := h.notifier.NotifyEscalation(ctx, rec); nerr != nil {
			h.logger.Warn("operator notification failed", map[string]interface{}{
				"escalationId": rec.ID,
				"error":        nerr.Error(),
			})
		}
	}

	trigger := eval.Trigger
	if trigger == "" {
		trigger = TriggerFlagged
	}
	metrics.Escalations.WithLabelValues(string(trigger), string(rec.Status)).Inc()

	h.logger.Info("query escalated", map[string]interface{}{
		"escalationId": rec.ID,
		"userId":       rec.UserID,
		"trigger":      string(trigger),
		"status":       string(rec.Status),
		"persisted":    persisted,
	})
	run.End(rec, rec.Status == models.EscalationError, err)

	return rec, models.Message{
		Role:    models.RoleSystem,
		Content: fmt.Sprintf("Query escalated to human operator. Escalation ID: %s", rec.ID),
		Metadata: map[string]interface{}{
			"escalation_id":     rec.ID,
			"reason":            rec.Reason,
			"query":             rec.Query,
			"proposed_response": rec.ProposedResponse,
			"status":            string(rec.Status),
		},
		CreatedAt: rec.CreatedAt,
	}
}

func (h *Handler) interim(ctx context.Context, q models.Query, proposed, reason string) (string, error) {
	var history []models.Message
	if h.memory != nil && q.UserID != "" {
		msgs, err := h.memory.Recent(ctx, q.UserID, q.SessionID, h.config.MemoryLimit)
		if err != nil {
			h.logger.Warn("conversation memory unavailable", map[string]interface{}{"error": err.Error()})
		}
		history = msgs
	}

	user := fmt.Sprintf(`Conversation so far:
%s

User query requiring escalation: %s

Proposed AI response (may be insufficient): %s

Escalation reason: %s

Write the interim response now.`, models.FormatTurns(history), q.Text, proposed, reason)

	text, err := h.llm.Complete(ctx, []llm.Message{llm.System(interimPrompt), llm.User(user)})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model returned an empty interim response")
	}
	return strings.TrimSpace(text), nil
}

// Resolve closes a pending ticket and writes the operator's answer into the
// user's conversation.
func (h *Handler) Resolve(ctx context.Context, escalationID, resolution string) (*models.EscalationRecord, error) {
	if strings.TrimSpace(escalationID) == "" {
		return nil, apperrors.NewMissingIdentifierError("escalationId")
	}
	if strings.TrimSpace(resolution) == "" {
		return nil, apperrors.NewMissingIdentifierError("resolution")
	}

	rec, err := h.store.Resolve(ctx, escalationID, resolution)
	if err != nil {
		return nil, err
	}

	h.remember(ctx, rec.UserID, rec.SessionID,
		models.Message{
			Role:    models.RoleSystem,
			Content: fmt.Sprintf("Escalation %s resolved by human operator", rec.ID),
			Metadata: map[string]interface{}{
				"escalation_id": rec.ID,
				"status":        string(models.EscalationResolved),
			},
		},
		models.Message{
			Role:    models.RoleAssistant,
			Content: resolution,
			Metadata: map[string]interface{}{
				"source":        "human_operator",
				"escalation_id": rec.ID,
			},
		},
	)

	metrics.Escalations.WithLabelValues("operator", string(models.EscalationResolved)).Inc()
	return rec, nil
}

func (h *Handler) remember(ctx context.Context, userID, sessionID string, msgs ...models.Message) {
	if h.memory == nil || userID == "" {
		return
	}
	if err := h.memory.Append(ctx, userID, sessionID, msgs...); err != nil {
		h.logger.Warn("failed to record escalation in memory", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
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
