// internal/app/loggers.go
package app

import (
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/conductor"
	classifyintent "conversation-orchestrator/internal/workers/ai-conversation/classify-intent"
	combineresponses "conversation-orchestrator/internal/workers/ai-conversation/combine-responses"
	dataingestion "conversation-orchestrator/internal/workers/ai-conversation/data-ingestion"
	decomposequery "conversation-orchestrator/internal/workers/ai-conversation/decompose-query"
	evaluateescalation "conversation-orchestrator/internal/workers/ai-conversation/evaluate-escalation"
	knowledgequery "conversation-orchestrator/internal/workers/ai-conversation/knowledge-query"
	urlcontent "conversation-orchestrator/internal/workers/ai-conversation/url-content"
	websearch "conversation-orchestrator/internal/workers/ai-conversation/web-search"
	handlequery "conversation-orchestrator/internal/workers/orchestration/handle-query"
	resolveescalation "conversation-orchestrator/internal/workers/orchestration/resolve-escalation"
)

// Logger adapters for packages that declare their own Logger interface.

type classifyIntentLoggerAdapter struct {
	logger.Logger
}

func (a *classifyIntentLoggerAdapter) With(fields map[string]interface{}) classifyintent.Logger {
	return &classifyIntentLoggerAdapter{a.Logger.With(fields)}
}

type decomposeQueryLoggerAdapter struct {
	logger.Logger
}

func (a *decomposeQueryLoggerAdapter) With(fields map[string]interface{}) decomposequery.Logger {
	return &decomposeQueryLoggerAdapter{a.Logger.With(fields)}
}

type knowledgeQueryLoggerAdapter struct {
	logger.Logger
}

func (a *knowledgeQueryLoggerAdapter) With(fields map[string]interface{}) knowledgequery.Logger {
	return &knowledgeQueryLoggerAdapter{a.Logger.With(fields)}
}

type webSearchLoggerAdapter struct {
	logger.Logger
}

func (a *webSearchLoggerAdapter) With(fields map[string]interface{}) websearch.Logger {
	return &webSearchLoggerAdapter{a.Logger.With(fields)}
}

type urlContentLoggerAdapter struct {
	logger.Logger
}

func (a *urlContentLoggerAdapter) With(fields map[string]interface{}) urlcontent.Logger {
	return &urlContentLoggerAdapter{a.Logger.With(fields)}
}

type dataIngestionLoggerAdapter struct {
	logger.Logger
}

func (a *dataIngestionLoggerAdapter) With(fields map[string]interface{}) dataingestion.Logger {
	return &dataIngestionLoggerAdapter{a.Logger.With(fields)}
}

type evaluateEscalationLoggerAdapter struct {
	logger.Logger
}

func (a *evaluateEscalationLoggerAdapter) With(fields map[string]interface{}) evaluateescalation.Logger {
	return &evaluateEscalationLoggerAdapter{a.Logger.With(fields)}
}

type combineResponsesLoggerAdapter struct {
	logger.Logger
}

func (a *combineResponsesLoggerAdapter) With(fields map[string]interface{}) combineresponses.Logger {
	return &combineResponsesLoggerAdapter{a.Logger.With(fields)}
}

type conductorLoggerAdapter struct {
	logger.Logger
}

func (a *conductorLoggerAdapter) With(fields map[string]interface{}) conductor.Logger {
	return &conductorLoggerAdapter{a.Logger.With(fields)}
}

type handleQueryLoggerAdapter struct {
	logger.Logger
}

func (a *handleQueryLoggerAdapter) With(fields map[string]interface{}) handlequery.Logger {
	return &handleQueryLoggerAdapter{a.Logger.With(fields)}
}

type resolveEscalationLoggerAdapter struct {
	logger.Logger
}

func (a *resolveEscalationLoggerAdapter) With(fields map[string]interface{}) resolveescalation.Logger {
	return &resolveEscalationLoggerAdapter{a.Logger.With(fields)}
}
