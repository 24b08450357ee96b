// internal/app/app_test.go
package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"conversation-orchestrator/internal/common/camunda"
	"conversation-orchestrator/internal/common/config"
	"conversation-orchestrator/internal/common/database"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/models"
	"conversation-orchestrator/pkg/registry"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Elasticsearch: config.ElasticsearchConfig{Index: "knowledge"},
		},
		LLM: config.LLMConfig{
			Model:         "gpt-test",
			EmbeddingDims: 8,
			MaxRetries:    1,
			Timeout:       1000,
		},
		WebSearch: config.WebSearchConfig{Timeout: 1000, UserAgent: "test-agent"},
		Fetch:     config.FetchConfig{Timeout: 1000, UserAgent: "test-agent", MaxBytes: 1 << 20},
		Orchestration: config.OrchestrationConfig{
			ConfidenceThreshold: 0.6,
			MaxParallel:         2,
			MemoryLimit:         10,
			ContextTurns:        3,
			RetrievalLimit:      5,
			RetrievalMinScore:   0.6,
			FallbackLimit:       3,
			MaxSearchResults:    5,
			CacheTTL:            1000,
			SynthesisPenalty:    0.8,
		},
		Escalation: config.EscalationConfig{EstimatedWaitMinutes: 15, FallbackWaitMinutes: 30},
		Workers: map[string]config.WorkerConfig{
			"web-search": {Enabled: true, MaxJobsActive: 1, Timeout: 2500},
		},
	}
}

func testInfra(t *testing.T) *Infra {
	t.Helper()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	es, err := database.NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return &Infra{
		Postgres: database.NewPostgresFromDB(db),
		Elastic:  es,
		Redis:    &database.RedisClient{Client: rdb},
	}
}

func TestBuild_WiresEverySpecialist(t *testing.T) {
	a, err := Build(testConfig(), testInfra(t), nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.ElementsMatch(t, []models.AgentName{
		models.AgentKnowledgeQuery,
		models.AgentWebSearch,
		models.AgentURLContent,
		models.AgentDataIngestion,
		models.AgentEscalation,
	}, a.Registry.Names())

	assert.NotNil(t, a.Conductor)
	assert.NotNil(t, a.Handlers.HandleQuery)
	assert.NotNil(t, a.Handlers.ResolveEscalation)
}

func TestBuild_RejectsMissingInfra(t *testing.T) {
	_, err := Build(testConfig(), &Infra{}, nil, logger.NewTestLogger(t))
	assert.Error(t, err)

	_, err = Build(testConfig(), nil, nil, logger.NewTestLogger(t))
	assert.Error(t, err)
}

func TestTaskTypes_MatchActivityCatalog(t *testing.T) {
	a, err := Build(testConfig(), testInfra(t), nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	catalog, err := registry.Default()
	require.NoError(t, err)

	assert.ElementsMatch(t, catalog.TaskTypes(), a.TaskTypes())
}

func TestRegisterWorkers_SkipsDisabled(t *testing.T) {
	cfg := testConfig()
	a, err := Build(cfg, testInfra(t), nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	cfg.Workers = make(map[string]config.WorkerConfig)
	for _, taskType := range a.TaskTypes() {
		cfg.Workers[taskType] = config.WorkerConfig{Enabled: false}
	}

	r := camunda.NewRegistrar(nil, nil, logger.NewTestLogger(t))
	a.RegisterWorkers(r)
	assert.Empty(t, r.TaskTypes())
}

func TestWorkerTimeout(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, 2500*time.Millisecond, workerTimeout(cfg, "web-search", time.Second))
	assert.Equal(t, time.Second, workerTimeout(cfg, "url-content", time.Second))
}

func TestRetryWithBackoff(t *testing.T) {
	log := zap.NewNop()

	t.Run("succeeds after failures", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond, log, "redis")
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), func() error {
			attempts++
			return errors.New("connection refused")
		}, 3, time.Millisecond, log, "postgres")
		require.Error(t, err)
		assert.Equal(t, 3, attempts)
		assert.Contains(t, err.Error(), "postgres failed after 3 attempts")
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		attempts := 0
		err := RetryWithBackoff(ctx, func() error {
			attempts++
			return errors.New("connection refused")
		}, 5, time.Hour, log, "elasticsearch")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}

func TestInfraClose_Partial(t *testing.T) {
	(&Infra{}).Close()
}
