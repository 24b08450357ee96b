// internal/app/app.go
// Package app assembles the orchestrator from configuration. Collaborators,
// agents, the specialist registry and the conductor are built once and shared
// by every request.
package app

import (
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"conversation-orchestrator/internal/common/camunda"
	"conversation-orchestrator/internal/common/config"
	commonhttp "conversation-orchestrator/internal/common/http"
	"conversation-orchestrator/internal/common/llm"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/conductor"
	"conversation-orchestrator/internal/fetch"
	"conversation-orchestrator/internal/search"
	"conversation-orchestrator/internal/stores/escalations"
	"conversation-orchestrator/internal/stores/knowledge"
	"conversation-orchestrator/internal/stores/memory"
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

// Handlers are the job handlers, one per task type.
type Handlers struct {
	HandleQuery        *handlequery.Handler
	ResolveEscalation  *resolveescalation.Handler
	ClassifyIntent     *classifyintent.Handler
	DecomposeQuery     *decomposequery.Handler
	KnowledgeQuery     *knowledgequery.Handler
	WebSearch          *websearch.Handler
	URLContent         *urlcontent.Handler
	DataIngestion      *dataingestion.Handler
	EvaluateEscalation *evaluateescalation.Handler
	CombineResponses   *combineresponses.Handler
}

// App is the assembled orchestrator.
type App struct {
	Config      *config.Config
	Conductor   *conductor.Conductor
	Registry    *conductor.Registry
	Escalations *escalations.Store
	Knowledge   *knowledge.Store
	Memory      *memory.Store
	LLM         *llm.Client
	Handlers    Handlers

	searchHTTP *commonhttp.Client
	fetchHTTP  *commonhttp.Client
	logger     logger.Logger
}

// Build wires every collaborator on top of infra. recorder may be nil.
func Build(cfg *config.Config, infra *Infra, recorder conductor.QueryRecorder, log logger.Logger) (*App, error) {
	if infra == nil || infra.Postgres == nil || infra.Elastic == nil || infra.Redis == nil {
		return nil, fmt.Errorf("app: postgres, elasticsearch and redis are required")
	}
	o := cfg.Orchestration

	a := &App{
		Config:     cfg,
		searchHTTP: commonhttp.NewClient(config.GetDuration(cfg.WebSearch.Timeout), cfg.WebSearch.UserAgent),
		fetchHTTP:  commonhttp.NewClient(config.GetDuration(cfg.Fetch.Timeout), cfg.Fetch.UserAgent),
		logger:     log,
	}

	a.LLM = llm.NewClient(llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		EmbeddingDims:  cfg.LLM.EmbeddingDims,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		MaxRetries:     cfg.LLM.MaxRetries,
		Timeout:        config.GetDuration(cfg.LLM.Timeout),
	}, log)

	a.Knowledge = knowledge.NewStore(knowledge.Config{
		Index:    cfg.Database.Elasticsearch.Index,
		CacheTTL: config.GetDuration(o.CacheTTL),
	}, infra.Elastic.Client, infra.Postgres, infra.Redis.Client, a.LLM, log)
	a.Memory = memory.NewStore(infra.Redis.Client, o.MemoryLimit, config.GetDuration(o.MemoryTTL), log)
	a.Escalations = escalations.NewStore(infra.Postgres, log)

	searcher := search.NewClient(search.Config{
		BaseURL:    cfg.WebSearch.BaseURL,
		APIKey:     cfg.WebSearch.APIKey,
		EngineID:   cfg.WebSearch.EngineID,
		MaxResults: o.MaxSearchResults,
	}, a.searchHTTP, log)
	fetcher := fetch.New(a.fetchHTTP, cfg.Fetch.MaxBytes, log)

	h := &a.Handlers

	h.ClassifyIntent = classifyintent.NewHandler(&classifyintent.Config{
		Timeout:      workerTimeout(cfg, classifyintent.TaskType, 30*time.Second),
		ContextTurns: o.ContextTurns,
	}, a.LLM, &classifyIntentLoggerAdapter{log})

	h.DecomposeQuery = decomposequery.NewHandler(&decomposequery.Config{
		Timeout: workerTimeout(cfg, decomposequery.TaskType, 30*time.Second),
	}, a.LLM, &decomposeQueryLoggerAdapter{log})

	kq := knowledgequery.LoadConfig()
	kq.Timeout = workerTimeout(cfg, knowledgequery.TaskType, kq.Timeout)
	kq.RetrievalLimit = o.RetrievalLimit
	kq.MinScore = o.RetrievalMinScore
	kq.FallbackLimit = o.FallbackLimit
	kq.MemoryLimit = o.MemoryLimit
	h.KnowledgeQuery = knowledgequery.NewHandler(kq, a.Knowledge, a.Memory, a.LLM, &knowledgeQueryLoggerAdapter{log})

	ws := websearch.LoadConfig()
	ws.Timeout = workerTimeout(cfg, websearch.TaskType, ws.Timeout)
	ws.MaxResults = o.MaxSearchResults
	h.WebSearch = websearch.NewHandler(ws, searcher, a.LLM, &webSearchLoggerAdapter{log})

	uc := urlcontent.LoadConfig()
	uc.Timeout = workerTimeout(cfg, urlcontent.TaskType, uc.Timeout)
	h.URLContent = urlcontent.NewHandler(uc, fetcher, a.LLM, &urlContentLoggerAdapter{log})

	di := dataingestion.LoadConfig()
	di.Timeout = workerTimeout(cfg, dataingestion.TaskType, di.Timeout)
	var blobs dataingestion.BlobReader
	if infra.Blobs != nil {
		blobs = infra.Blobs
	}
	h.DataIngestion = dataingestion.NewHandler(di, a.Knowledge, blobs, &dataIngestionLoggerAdapter{log})

	h.EvaluateEscalation = evaluateescalation.NewHandler(&evaluateescalation.Config{
		Timeout:              workerTimeout(cfg, evaluateescalation.TaskType, 30*time.Second),
		ConfidenceThreshold:  o.ConfidenceThreshold,
		ModelReview:          cfg.Escalation.ModelReview,
		MemoryLimit:          o.MemoryLimit,
		EstimatedWaitMinutes: cfg.Escalation.EstimatedWaitMinutes,
		FallbackWaitMinutes:  cfg.Escalation.FallbackWaitMinutes,
	}, a.Escalations, a.Memory, infra.Notifier, a.LLM, &evaluateEscalationLoggerAdapter{log})

	h.CombineResponses = combineresponses.NewHandler(&combineresponses.Config{
		Timeout:          workerTimeout(cfg, combineresponses.TaskType, 30*time.Second),
		SynthesisPenalty: o.SynthesisPenalty,
	}, a.LLM, &combineResponsesLoggerAdapter{log})

	registry, err := conductor.NewRegistry(
		h.KnowledgeQuery,
		h.WebSearch,
		h.URLContent,
		h.DataIngestion,
		h.EvaluateEscalation,
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Registry = registry

	deps := conductor.Deps{
		Registry:   registry,
		Classifier: h.ClassifyIntent,
		Decomposer: h.DecomposeQuery,
		Combiner:   h.CombineResponses,
		Escalator:  h.EvaluateEscalation,
		Memory:     a.Memory,
	}
	if recorder != nil {
		deps.Recorder = recorder
	}

	a.Conductor, err = conductor.New(&conductor.Config{
		Timeout:          workerTimeout(cfg, handlequery.TaskType, 120*time.Second),
		FinalizeTimeout:  workerTimeout(cfg, evaluateescalation.TaskType, 30*time.Second),
		ParallelDispatch: o.ParallelDispatch,
		MaxParallel:      o.MaxParallel,
		MemoryLimit:      o.MemoryLimit,
	}, deps, &conductorLoggerAdapter{log})
	if err != nil {
		a.Close()
		return nil, err
	}

	h.HandleQuery = handlequery.NewHandler(&handlequery.Config{
		Timeout: workerTimeout(cfg, handlequery.TaskType, 120*time.Second),
	}, a.Conductor, &handleQueryLoggerAdapter{log})

	h.ResolveEscalation = resolveescalation.NewHandler(&resolveescalation.Config{
		Timeout: workerTimeout(cfg, resolveescalation.TaskType, 30*time.Second),
	}, a.Conductor, &resolveEscalationLoggerAdapter{log})

	return a, nil
}

type jobBinding struct {
	taskType string
	handler  worker.JobHandler
}

func (a *App) jobBindings() []jobBinding {
	h := a.Handlers
	return []jobBinding{
		{handlequery.TaskType, h.HandleQuery.Handle},
		{resolveescalation.TaskType, h.ResolveEscalation.Handle},
		{classifyintent.TaskType, h.ClassifyIntent.Handle},
		{decomposequery.TaskType, h.DecomposeQuery.Handle},
		{knowledgequery.TaskType, h.KnowledgeQuery.Handle},
		{websearch.TaskType, h.WebSearch.Handle},
		{urlcontent.TaskType, h.URLContent.Handle},
		{dataingestion.TaskType, h.DataIngestion.Handle},
		{evaluateescalation.TaskType, h.EvaluateEscalation.Handle},
		{combineresponses.TaskType, h.CombineResponses.Handle},
	}
}

// TaskTypes lists every task type the orchestrator serves.
func (a *App) TaskTypes() []string {
	bindings := a.jobBindings()
	out := make([]string, len(bindings))
	for i, b := range bindings {
		out[i] = b.taskType
	}
	return out
}

// RegisterWorkers opens a job worker for every enabled task type.
func (a *App) RegisterWorkers(r *camunda.Registrar) {
	for _, b := range a.jobBindings() {
		r.Register(b.taskType, config.GetWorkerConfig(a.Config, b.taskType), b.handler)
	}
}

// Close releases the shared HTTP transports.
func (a *App) Close() {
	a.searchHTTP.Close()
	a.fetchHTTP.Close()
}

func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	return fallback
}
