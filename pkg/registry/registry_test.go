// pkg/registry/registry_test.go
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-orchestrator/internal/common/validation"
)

func TestDefault_CoversEveryTaskType(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	require.NoError(t, reg.Check())

	assert.Equal(t, []string{
		"handle-query",
		"resolve-escalation",
		"classify-intent",
		"decompose-query",
		"knowledge-query",
		"web-search",
		"url-content",
		"data-ingestion",
		"evaluate-escalation",
		"combine-responses",
	}, reg.TaskTypes())
}

func TestFind(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	activity, ok := reg.Find("web-search")
	require.True(t, ok)
	assert.Equal(t, "Web Search", activity.DisplayName)

	_, ok = reg.Find("franchise-search")
	assert.False(t, ok)
}

func TestValidateVariables(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	tests := []struct {
		name     string
		taskType string
		vars     map[string]interface{}
		valid    bool
		field    string
	}{
		{
			name:     "handle-query ok",
			taskType: "handle-query",
			vars:     map[string]interface{}{"query": "What is the leave policy?", "userId": "u-1"},
			valid:    true,
		},
		{
			name:     "handle-query missing user",
			taskType: "handle-query",
			vars:     map[string]interface{}{"query": "hi"},
			field:    "userId",
		},
		{
			name:     "resolve-escalation bad id",
			taskType: "resolve-escalation",
			vars:     map[string]interface{}{"escalationId": "ticket-9", "resolution": "done"},
			field:    "escalationId",
		},
		{
			name:     "ingestion needs text or path",
			taskType: "data-ingestion",
			vars:     map[string]interface{}{"title": "Handbook"},
		},
		{
			name:     "ingestion with path",
			taskType: "data-ingestion",
			vars:     map[string]interface{}{"documentPath": "s3://docs/handbook.md"},
			valid:    true,
		},
		{
			name:     "evaluate-escalation null confidence",
			taskType: "evaluate-escalation",
			vars:     map[string]interface{}{"query": "q", "userId": "u", "confidence": nil},
			valid:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := reg.ValidateVariables(tt.taskType, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid, "%v", result.GetErrorMessages())
			if tt.field != "" {
				assert.True(t, result.HasErrors(tt.field), "%v", result.Errors)
			}
		})
	}

	_, err = reg.ValidateVariables("unknown", nil)
	assert.Error(t, err)
}

func TestRegisterSchemas(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	v := validation.NewValidator()
	require.NoError(t, reg.RegisterSchemas(v))

	for _, taskType := range reg.TaskTypes() {
		assert.True(t, v.Has(taskType), taskType)
	}
}

func TestCheck_Rejects(t *testing.T) {
	base := func() Activity {
		return Activity{ID: "a", DisplayName: "A", TaskType: "a", Category: "c", Timeout: "10s"}
	}

	tests := []struct {
		name   string
		mutate func(reg *ActivityRegistry)
		want   string
	}{
		{name: "empty", mutate: func(reg *ActivityRegistry) { reg.Activities = nil }, want: "no activities"},
		{name: "duplicate id", mutate: func(reg *ActivityRegistry) {
			dup := base()
			dup.TaskType = "b"
			reg.Activities = append(reg.Activities, dup)
		}, want: "duplicate activity ID"},
		{name: "duplicate task type", mutate: func(reg *ActivityRegistry) {
			dup := base()
			dup.ID = "b"
			reg.Activities = append(reg.Activities, dup)
		}, want: "duplicate task type"},
		{name: "bad timeout", mutate: func(reg *ActivityRegistry) { reg.Activities[0].Timeout = "ten" }, want: "invalid timeout"},
		{name: "bad schema", mutate: func(reg *ActivityRegistry) {
			reg.Activities[0].InputSchema = map[string]interface{}{"type": 12}
		}, want: "activity a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &ActivityRegistry{Activities: []Activity{base()}}
			tt.mutate(reg)
			err := reg.Check()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"2","activities":[{"id":"x","displayName":"X","taskType":"x","category":"c"}]}`), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2", reg.Version)
	require.NoError(t, reg.Check())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	reg, err = Load("")
	require.NoError(t, err)
	assert.Len(t, reg.Activities, 10)
}
