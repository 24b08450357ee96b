//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"conversation-orchestrator/internal/app"
	"conversation-orchestrator/internal/common/camunda"
	"conversation-orchestrator/internal/common/config"
	"conversation-orchestrator/internal/common/database"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/common/validation"
	"conversation-orchestrator/internal/models"
	dataingestion "conversation-orchestrator/internal/workers/ai-conversation/data-ingestion"
	evaluateescalation "conversation-orchestrator/internal/workers/ai-conversation/evaluate-escalation"
	"conversation-orchestrator/pkg/registry"
)

const handbook = `Parental leave policy.

Employees with at least six months of service receive sixteen weeks of paid parental leave.
Leave may be taken in up to three blocks within the first year after birth or adoption.
Contractors are not eligible for paid parental leave.`

// setup connects to the services in configs/config.yaml and skips when any
// of them is unreachable.
func setup(t *testing.T) (*config.Config, *app.Infra, *app.App) {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Skipf("config unavailable: %v", err)
	}
	if cfg.LLM.APIKey == "" {
		t.Skip("llm.api_key not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil || pg.Ping(ctx) != nil {
		t.Skip("postgres unreachable")
	}
	pg.Close()

	zapLog := zap.NewNop()
	infra, err := app.Connect(ctx, cfg, zapLog)
	if err != nil {
		t.Skipf("services unreachable: %v", err)
	}
	t.Cleanup(infra.Close)

	a, err := app.Build(cfg, infra, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return cfg, infra, a
}

func TestE2E_IngestThenAsk(t *testing.T) {
	_, _, a := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	out, err := a.Handlers.DataIngestion.Execute(ctx, &dataingestion.Input{
		DocumentText: handbook,
		DocumentType: "policy",
		Title:        "Parental Leave",
		Category:     "hr",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Document)
	assert.Greater(t, out.ChunksProcessed, 0)

	// Give the index a moment to refresh.
	time.Sleep(2 * time.Second)

	userID := "e2e-" + time.Now().Format("150405")
	resp, err := a.Conductor.HandleQuery(ctx, "How many weeks of parental leave do employees get?", userID, "")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Response)
	assert.Regexp(t, `^session_\d{4}$`, resp.SessionID)
	assert.GreaterOrEqual(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 1.0)

	history, err := a.Memory.Recent(ctx, userID, resp.SessionID, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(history), 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, models.RoleAssistant, history[len(history)-1].Role)
}

func TestE2E_EscalationRoundTrip(t *testing.T) {
	_, _, a := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	userID := "e2e-esc-" + time.Now().Format("150405")
	low := 0.2
	out, err := a.Handlers.EvaluateEscalation.Execute(ctx, &evaluateescalation.Input{
		Query:      "Why was my mortgage application declined?",
		UserID:     userID,
		SessionID:  "session_0001",
		Response:   "It may have been a credit check.",
		Confidence: &low,
	})
	require.NoError(t, err)
	require.True(t, out.NeedsEscalation)
	assert.Regexp(t, `^ESC-[0-9A-F]{8}$`, out.EscalationID)

	require.NoError(t, a.Conductor.HandleEscalationResolution(ctx, out.EscalationID, "Your application lacked proof of income."))

	rec, err := a.Escalations.Get(ctx, out.EscalationID)
	require.NoError(t, err)
	assert.Equal(t, models.EscalationResolved, rec.Status)

	err = a.Conductor.HandleEscalationResolution(ctx, out.EscalationID, "again")
	assert.Error(t, err)

	history, err := a.Memory.Recent(ctx, userID, "session_0001", 10)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, "Your application lacked proof of income.", last.Content)
	assert.Equal(t, "human_operator", last.Metadata["source"])
}

func TestE2E_ZeebeWorkers(t *testing.T) {
	cfg, _, a := setup(t)
	if !cfg.Camunda.Enabled || os.Getenv("E2E_ZEEBE") == "" {
		t.Skip("set E2E_ZEEBE=1 with a reachable broker to open workers")
	}

	client, err := camunda.NewClient(cfg.Camunda)
	require.NoError(t, err)
	defer client.Close()

	catalog, err := registry.Default()
	require.NoError(t, err)
	validator := validation.NewValidator()
	require.NoError(t, catalog.RegisterSchemas(validator))

	registrar := camunda.NewRegistrar(client.GetClient(), validator, logger.NewTestLogger(t))
	a.RegisterWorkers(registrar)
	defer registrar.Close()

	assert.ElementsMatch(t, a.TaskTypes(), registrar.TaskTypes())
	require.NoError(t, client.HealthCheck(context.Background()))
}
