package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
database:
  postgres:
    host: localhost
    database: orchestrator
    user: "${TEST_DB_USER}"
  elasticsearch:
    addresses: ["http://localhost:9200"]
  redis:
    address: localhost:6379
workers:
  knowledge-query:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	t.Setenv("TEST_DB_USER", "orchestrator")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "orchestrator", cfg.Database.Postgres.User)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "knowledge", cfg.Database.Elasticsearch.Index)

	assert.Equal(t, 0.6, cfg.Orchestration.ConfidenceThreshold)
	assert.Equal(t, 10, cfg.Orchestration.MemoryLimit)
	assert.Equal(t, 3, cfg.Orchestration.ContextTurns)
	assert.Equal(t, 5, cfg.Orchestration.RetrievalLimit)
	assert.Equal(t, 0.8, cfg.Orchestration.SynthesisPenalty)
	assert.Equal(t, 15, cfg.Escalation.EstimatedWaitMinutes)
	assert.Equal(t, 30, cfg.Escalation.FallbackWaitMinutes)
	assert.Equal(t, 30000, cfg.LLM.Timeout)
	assert.Equal(t, int64(5<<20), cfg.Fetch.MaxBytes)
	assert.Equal(t, cfg.WebSearch.UserAgent, cfg.Fetch.UserAgent)

	w := cfg.Workers["knowledge-query"]
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 60000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing api key",
			env:     map[string]string{"TEST_DB_USER": "u"},
			wantErr: "llm.api_key",
		},
		{
			name:    "threshold out of range",
			extra:   "orchestration:\n  confidence_threshold: 1.5\n",
			env:     map[string]string{"TEST_DB_USER": "u", "LLM_API_KEY": "k"},
			wantErr: "confidence_threshold",
		},
		{
			name:    "tracing without endpoint",
			extra:   "tracing:\n  enabled: true\n",
			env:     map[string]string{"TEST_DB_USER": "u", "LLM_API_KEY": "k"},
			wantErr: "jaeger_endpoint",
		},
		{
			name:    "camunda without broker",
			extra:   "camunda:\n  enabled: true\n",
			env:     map[string]string{"TEST_DB_USER": "u", "LLM_API_KEY": "k"},
			wantErr: "broker_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LLM_API_KEY", "")
			t.Setenv("OPENAI_API_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromFile(writeConfig(t, minimalYAML+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"web-search": {Enabled: false, MaxJobsActive: 2, Timeout: 1000},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "web-search"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "web-search").MaxJobsActive)

	fallback := GetWorkerConfig(cfg, "url-content")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 60000, fallback.Timeout)
	assert.True(t, IsWorkerEnabled(cfg, "url-content"))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	dsn := PostgresConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Database: "orchestrator", SSLMode: "disable",
	}.GetDSN()
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=orchestrator sslmode=disable", dsn)
}
