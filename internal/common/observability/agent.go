package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/common/metrics"
)

// ActivityLogger is the slice of a logger an agent run reports to.
type ActivityLogger interface {
	Info(msg string, fields map[string]interface{})
}

// AgentRun times one agent invocation and reports it on End.
type AgentRun struct {
	agent string
	input string
	start time.Time
	span  trace.Span
	log   ActivityLogger
}

// StartAgentRun opens the span for agent and remembers a preview of input.
func StartAgentRun(ctx context.Context, agent string, input interface{}, log ActivityLogger) (context.Context, *AgentRun) {
	ctx, span := StartSpan(ctx, "agent."+agent, attribute.String("agent", agent))
	return ctx, &AgentRun{
		agent: agent,
		input: preview(input),
		start: time.Now(),
		span:  span,
		log:   log,
	}
}

// End records status, latency and the activity log line. A non-nil err or
// failed=true counts the run as an error.
func (r *AgentRun) End(output interface{}, failed bool, err error) {
	elapsed := time.Since(r.start)
	status := "success"
	if failed || err != nil {
		status = "error"
	}

	metrics.AgentInvocations.WithLabelValues(r.agent, status).Inc()
	metrics.AgentDuration.WithLabelValues(r.agent).Observe(elapsed.Seconds())

	fields := map[string]interface{}{
		"agent":      r.agent,
		"status":     status,
		"durationMs": elapsed.Milliseconds(),
		"input":      r.input,
		"output":     preview(output),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	r.log.Info("agent activity", fields)
	EndSpan(r.span, err)
}

func preview(v interface{}) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case fmt.Stringer:
		s = val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "<unprintable>"
		}
		s = string(data)
	}
	return logger.Truncate(s, logger.ActivityPreviewLimit)
}
