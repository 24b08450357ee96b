// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"conversation-orchestrator/internal/common/config"
	"conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/common/metrics"
	"conversation-orchestrator/internal/common/validation"
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeThrown    = "thrown"
)

// Registrar opens job workers and wraps every handler with variable
// validation and job metrics.
type Registrar struct {
	client     zbc.Client
	validator  *validation.Validator
	errHandler *errors.ErrorHandler
	logger     logger.Logger

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewRegistrar(client zbc.Client, validator *validation.Validator, log logger.Logger) *Registrar {
	return &Registrar{
		client:     client,
		validator:  validator,
		errHandler: errors.NewErrorHandler(log),
		logger:     log.With(map[string]interface{}{"component": "job-registrar"}),
		workers:    make(map[string]worker.JobWorker),
	}
}

// Register opens a job worker for taskType unless the worker is disabled.
func (r *Registrar) Register(taskType string, cfg config.WorkerConfig, handler worker.JobHandler) {
	if !cfg.Enabled {
		r.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	jobWorker := r.client.NewJobWorker().
		JobType(taskType).
		Handler(r.Wrap(taskType, handler)).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(config.GetDuration(cfg.Timeout)).
		Name("conversation-orchestrator-" + taskType).
		Open()

	r.mu.Lock()
	r.workers[taskType] = jobWorker
	r.mu.Unlock()

	r.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": cfg.MaxJobsActive,
		"timeoutMs":     cfg.Timeout,
	})
}

// TaskTypes lists the task types with open workers.
func (r *Registrar) TaskTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.workers))
	for t := range r.workers {
		out = append(out, t)
	}
	return out
}

// Close stops every worker and waits for in-flight jobs.
func (r *Registrar) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for taskType, w := range r.workers {
		w.Close()
		w.AwaitClose()
		r.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	r.workers = make(map[string]worker.JobWorker)
}

// Wrap validates job variables against the registered schema, then runs
// handler while recording its outcome.
func (r *Registrar) Wrap(taskType string, handler worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		defer func() {
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		}()

		if err := r.CheckVariables(taskType, job.Variables); err != nil {
			metrics.WorkerJobsFailed.WithLabelValues(taskType, string(errors.ErrCodeInvalidJobVariables)).Inc()
			r.errHandler.HandleJobError(context.Background(), client, job, err)
			return
		}

		observed := &observedClient{JobClient: client}
		handler(observed, job)

		switch observed.outcome {
		case outcomeCompleted:
			metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		case outcomeFailed, outcomeThrown:
			metrics.WorkerJobsFailed.WithLabelValues(taskType, observed.outcome).Inc()
		default:
			r.logger.Warn("handler returned without completing or failing the job", map[string]interface{}{
				"taskType": taskType,
				"jobKey":   job.Key,
			})
		}
	}
}

// CheckVariables validates the raw job variables for taskType.
func (r *Registrar) CheckVariables(taskType, variables string) error {
	if r.validator == nil || !r.validator.Has(taskType) {
		return nil
	}

	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return errors.NewInvalidJobVariablesError(taskType, "variables are not a JSON object")
	}
	result, err := r.validator.Validate(taskType, vars)
	if err != nil {
		return errors.NewInvalidJobVariablesError(taskType, err.Error())
	}
	if !result.Valid {
		return errors.NewInvalidJobVariablesError(taskType, strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

// observedClient remembers which terminal command a handler issued.
type observedClient struct {
	worker.JobClient
	outcome string
}

func (c *observedClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	c.outcome = outcomeCompleted
	return c.JobClient.NewCompleteJobCommand()
}

func (c *observedClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	c.outcome = outcomeFailed
	return c.JobClient.NewFailJobCommand()
}

func (c *observedClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	c.outcome = outcomeThrown
	return c.JobClient.NewThrowErrorCommand()
}
