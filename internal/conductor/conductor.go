// internal/conductor/conductor.go
package conductor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/common/metrics"
	"conversation-orchestrator/internal/common/observability"
	"conversation-orchestrator/internal/models"
	evaluateescalation "conversation-orchestrator/internal/workers/ai-conversation/evaluate-escalation"
)

// FallbackText is shown when no specialist produced a usable answer.
const FallbackText = "I've forwarded your query to our support team. You'll receive an email response shortly."

const (
	pathSingle   = "single"
	pathMulti    = "multi"
	pathFallback = "fallback"
)

type Classifier interface {
	Classify(ctx context.Context, q models.Query) (models.IntentDecision, error)
}

type Decomposer interface {
	Decompose(ctx context.Context, q models.Query, decision models.IntentDecision) ([]models.SubQuery, error)
}

type Combiner interface {
	Combine(ctx context.Context, results []*models.SpecialistResult, originalQuery string) *models.CombinedResult
}

// Escalator owns the human handoff policy and tickets.
type Escalator interface {
	Check(ctx context.Context, query string, r *models.SpecialistResult) evaluateescalation.Evaluation
	Escalate(ctx context.Context, q models.Query, proposed string, eval evaluateescalation.Evaluation) (*models.EscalationRecord, models.Message)
	Resolve(ctx context.Context, escalationID, resolution string) (*models.EscalationRecord, error)
}

// Memory is the per-(user, session) conversation store.
type Memory interface {
	Recent(ctx context.Context, userID, sessionID string, n int) ([]models.Message, error)
	Append(ctx context.Context, userID, sessionID string, msgs ...models.Message) error
}

// QueryRecorder receives one measurement per handled query.
type QueryRecorder interface {
	RecordQuery(ctx context.Context, route string, escalated bool, duration time.Duration)
}

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Conductor routes a query through classification, dispatch, combination
// and escalation. All collaborators are injected and shared across
// requests; a Conductor holds no per-request state.
type Conductor struct {
	config     *Config
	registry   *Registry
	classifier Classifier
	decomposer Decomposer
	combiner   Combiner
	escalator  Escalator
	memory     Memory
	recorder   QueryRecorder
	logger     Logger
}

// Deps groups the collaborators of a Conductor. Memory and Recorder may be nil.
type Deps struct {
	Registry   *Registry
	Classifier Classifier
	Decomposer Decomposer
	Combiner   Combiner
	Escalator  Escalator
	Memory     Memory
	Recorder   QueryRecorder
}

func New(config *Config, deps Deps, log Logger) (*Conductor, error) {
	switch {
	case deps.Registry == nil:
		return nil, fmt.Errorf("conductor: registry is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("conductor: classifier is required")
	case deps.Decomposer == nil:
		return nil, fmt.Errorf("conductor: decomposer is required")
	case deps.Combiner == nil:
		return nil, fmt.Errorf("conductor: combiner is required")
	case deps.Escalator == nil:
		return nil, fmt.Errorf("conductor: escalator is required")
	}
	return &Conductor{
		config:     config,
		registry:   deps.Registry,
		classifier: deps.Classifier,
		decomposer: deps.Decomposer,
		combiner:   deps.Combiner,
		escalator:  deps.Escalator,
		memory:     deps.Memory,
		recorder:   deps.Recorder,
		logger:     log.With(map[string]interface{}{"component": "conductor"}),
	}, nil
}

// HandleQuery answers one user query. Only contract violations (empty
// text, missing user id) are returned as errors; every other failure
// degrades into an escalated answer.
func (c *Conductor) HandleQuery(ctx context.Context, text, userID, sessionID string) (*models.QueryResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewEmptyQueryError()
	}
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewMissingIdentifierError("userId")
	}
	if sessionID == "" {
		sessionID = SessionID(userID, text)
	}

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "conductor.handle_query",
		attribute.String("userId", userID),
		attribute.String("sessionId", sessionID),
	)

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	log := c.logger.With(map[string]interface{}{
		"userId":    userID,
		"sessionId": sessionID,
	})

	q := models.Query{
		Text:      text,
		UserID:    userID,
		SessionID: sessionID,
		History:   c.history(ctx, userID, sessionID, log),
	}

	decision, err := c.classifier.Classify(ctx, q)
	if err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}

	path, combined := c.route(ctx, q, decision, log)

	resp := &models.QueryResponse{
		Response:         combined.ResponseText,
		Sources:          combined.Sources,
		Confidence:       combined.Confidence,
		NeedsEscalation:  combined.NeedsEscalation,
		EscalationReason: combined.EscalationReason,
		SessionID:        sessionID,
	}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}

	fctx, cancelFinalize := c.finalizeContext(ctx)
	defer cancelFinalize()

	var note *models.Message
	if path == pathFallback {
		rec, msg := c.escalator.Escalate(fctx, q, "", evaluateescalation.Evaluation{
			NeedsEscalation: true,
			Reason:          combined.EscalationReason,
			Trigger:         evaluateescalation.TriggerNoResponse,
		})
		resp.EscalationID = rec.ID
		note = &msg
	} else if eval := c.escalator.Check(fctx, q.Text, &combined.SpecialistResult); eval.NeedsEscalation {
		log.Info("escalating answer", map[string]interface{}{
			"trigger":          string(eval.Trigger),
			"reason":           eval.Reason,
			"proposedResponse": logger.Truncate(combined.ResponseText, logger.ActivityPreviewLimit),
		})
		rec, msg := c.escalator.Escalate(fctx, q, combined.ResponseText, eval)
		resp.Response = rec.InterimResponse
		resp.NeedsEscalation = true
		resp.EscalationReason = eval.Reason
		resp.EscalationID = rec.ID
		note = &msg
	}

	c.remember(fctx, q, resp, note, log)

	metrics.ConductorRoutes.WithLabelValues(path).Inc()
	if c.recorder != nil {
		c.recorder.RecordQuery(fctx, path, resp.NeedsEscalation, time.Since(start))
	}

	log.Info("query handled", map[string]interface{}{
		"path":            path,
		"confidence":      resp.Confidence,
		"needsEscalation": resp.NeedsEscalation,
		"escalationId":    resp.EscalationID,
		"durationMs":      time.Since(start).Milliseconds(),
	})
	span.SetAttributes(attribute.String("path", path), attribute.Bool("escalated", resp.NeedsEscalation))
	observability.EndSpan(span, nil)
	return resp, nil
}

// HandleEscalationResolution closes a ticket with the operator's answer.
func (c *Conductor) HandleEscalationResolution(ctx context.Context, escalationID, resolution string) error {
	ctx, span := observability.StartSpan(ctx, "conductor.resolve_escalation",
		attribute.String("escalationId", escalationID),
	)
	_, err := c.escalator.Resolve(ctx, escalationID, resolution)
	if err != nil {
		c.logger.Error("escalation resolution failed", map[string]interface{}{
			"escalationId": escalationID,
			"error":        err.Error(),
		})
	}
	observability.EndSpan(span, err)
	return err
}

// finalizeContext detaches from the request deadline so a timed out
// request still persists its escalation and conversation turn.
func (c *Conductor) finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if c.config.FinalizeTimeout > 0 {
		return context.WithTimeout(ctx, c.config.FinalizeTimeout)
	}
	return ctx, func() {}
}

// route runs the classified query through the specialists and returns the
// routing path together with the answer to show.
func (c *Conductor) route(ctx context.Context, q models.Query, decision models.IntentDecision, log Logger) (string, *models.CombinedResult) {
	path := pathSingle
	var tasks []dispatchTask

	if decision.IsMultiIntent {
		subQueries, err := c.decomposer.Decompose(ctx, q, decision)
		if err != nil {
			log.Warn("decomposition failed, answering as a single knowledge query", map[string]interface{}{
				"error": err.Error(),
			})
			tasks = []dispatchTask{c.task(models.SingleIntent(models.IntentKnowledgeQuery), models.IntentKnowledgeQuery, q, log)}
		} else {
			path = pathMulti
			tasks = make([]dispatchTask, len(subQueries))
			for i, sq := range subQueries {
				tasks[i] = c.task(decision, sq.Intent, q.WithText(sq.Text), log)
			}
		}
	}
	if tasks == nil {
		tasks = []dispatchTask{c.task(decision, decision.PrimaryIntent, q, log)}
	}

	outcomes := c.dispatch(ctx, tasks)

	results := make([]*models.SpecialistResult, 0, len(outcomes))
	failures := make([]string, 0)
	for i, o := range outcomes {
		if o.OK() {
			results = append(results, o.Result)
			continue
		}
		log.Warn("specialist failed", map[string]interface{}{
			"agent":   string(tasks[i].specialist.Name()),
			"message": o.Failure.Message,
		})
		failures = append(failures, fmt.Sprintf("%s: %s", o.Failure.Agent, o.Failure.Message))
	}

	switch len(results) {
	case 0:
		allFailed := apperrors.NewAllSpecialistsFailedError(len(tasks))
		log.Error("no usable specialist response", map[string]interface{}{
			"error":    allFailed.Error(),
			"failures": failures,
		})
		return pathFallback, &models.CombinedResult{
			SpecialistResult: models.SpecialistResult{
				ResponseText:     FallbackText,
				Sources:          []string{},
				NeedsEscalation:  true,
				EscalationReason: fmt.Sprintf("All specialists failed: %s", strings.Join(failures, "; ")),
			},
			Contributors: []models.AgentName{},
		}
	case 1:
		return path, models.FromSingle(results[0])
	default:
		return path, c.combiner.Combine(ctx, results, q.Text)
	}
}

// task resolves the specialist for intent. An explicit agent mapping from
// the classifier wins for any intent tag, catalog or not; otherwise the
// fixed table applies. Unmapped unknown intents and agents missing from
// the registry go to the default specialist.
func (c *Conductor) task(decision models.IntentDecision, intent models.Intent, q models.Query, log Logger) dispatchTask {
	name := decision.AgentFor(intent)
	_, mapped := decision.AgentMapping[intent]
	specialist, matched := c.registry.Resolve(name)
	if !matched || (!mapped && !intent.Known()) {
		log.Warn("no agent match, using default", map[string]interface{}{
			"intent":  string(intent),
			"agent":   string(name),
			"default": string(models.DefaultAgent),
			"code":    string(apperrors.ErrCodeNoAgentMatch),
		})
		specialist, _ = c.registry.Resolve(models.DefaultAgent)
	}
	return dispatchTask{specialist: specialist, query: q}
}

func (c *Conductor) history(ctx context.Context, userID, sessionID string, log Logger) []models.Message {
	if c.memory == nil {
		return nil
	}
	msgs, err := c.memory.Recent(ctx, userID, sessionID, c.config.MemoryLimit)
	if err != nil {
		log.Warn("conversation memory unavailable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return msgs
}

// remember appends the user turn, the escalation note if any, and the
// assistant turn in one write.
func (c *Conductor) remember(ctx context.Context, q models.Query, resp *models.QueryResponse, note *models.Message, log Logger) {
	if c.memory == nil {
		return
	}
	now := time.Now().UTC()
	msgs := []models.Message{{Role: models.RoleUser, Content: q.Text, CreatedAt: now}}
	if note != nil {
		msgs = append(msgs, *note)
	}
	assistant := models.Message{
		Role:    models.RoleAssistant,
		Content: resp.Response,
		Metadata: map[string]interface{}{
			"sources":          resp.Sources,
			"confidence":       resp.Confidence,
			"needs_escalation": resp.NeedsEscalation,
		},
		CreatedAt: now,
	}
	if resp.EscalationID != "" {
		assistant.Metadata["escalation_id"] = resp.EscalationID
	}
	msgs = append(msgs, assistant)

	if err := c.memory.Append(ctx, q.UserID, q.SessionID, msgs...); err != nil {
		log.Warn("failed to record conversation turn", map[string]interface{}{"error": err.Error()})
	}
}
