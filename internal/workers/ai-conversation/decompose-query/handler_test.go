// internal/workers/ai-conversation/decompose-query/handler_test.go
package decomposequery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/llm"
	"conversation-orchestrator/internal/models"
)

// ==========================
// Test Logger Implementation
// ==========================

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{
		t:      t,
		fields: make(map[string]interface{}),
	}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, l.mergeFields(fields))
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, l.mergeFields(fields))
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, l.mergeFields(fields))
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	return &TestLogger{t: l.t, fields: l.mergeFields(fields)}
}

func (l *TestLogger) mergeFields(fields map[string]interface{}) map[string]interface{} {
	allFields := make(map[string]interface{})
	for k, v := range l.fields {
		allFields[k] = v
	}
	for k, v := range fields {
		allFields[k] = v
	}
	return allFields
}

// BenchmarkLogger is a minimal logger for benchmarks
type BenchmarkLogger struct{}

func (b *BenchmarkLogger) Info(msg string, fields map[string]interface{})  {}
func (b *BenchmarkLogger) Warn(msg string, fields map[string]interface{})  {}
func (b *BenchmarkLogger) Error(msg string, fields map[string]interface{}) {}
func (b *BenchmarkLogger) With(fields map[string]interface{}) Logger       { return b }

// ==========================
// Test Helper Functions
// ==========================

// scriptedCompleter answers every call with the same model output.
type scriptedCompleter struct {
	response string
	err      error
	calls    int
	messages []llm.Message
}

func (s *scriptedCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	s.calls++
	s.messages = messages
	return s.response, s.err
}

func (s *scriptedCompleter) CompleteJSON(ctx context.Context, messages []llm.Message, out interface{}) error {
	text, err := s.Complete(ctx, messages)
	if err != nil {
		return err
	}
	return llm.DecodeJSON(text, out)
}

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}

func multiDecision(intents ...models.Intent) models.IntentDecision {
	return models.IntentDecision{IsMultiIntent: true, PrimaryIntent: intents[0], Intents: intents}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Decompose(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected []models.SubQuery
	}{
		{
			name: "wrapped object",
			response: `{"sub_queries": [
				{"text": "What are the loan interest rates?", "intent": "knowledge_query"},
				{"text": "Reset my account password", "intent": "escalate"}
			]}`,
			expected: []models.SubQuery{
				{Text: "What are the loan interest rates?", Intent: models.IntentKnowledgeQuery},
				{Text: "Reset my account password", Intent: models.IntentEscalate},
			},
		},
		{
			name:     "bare array",
			response: `[{"text": "latest RBI circular", "intent": "web_search"}]`,
			expected: []models.SubQuery{{Text: "latest RBI circular", Intent: models.IntentWebSearch}},
		},
		{
			name: "duplicate intents are kept in order",
			response: `{"sub_queries": [
				{"text": "fees for plan A", "intent": "knowledge_query"},
				{"text": "fees for plan B", "intent": "knowledge_query"}
			]}`,
			expected: []models.SubQuery{
				{Text: "fees for plan A", Intent: models.IntentKnowledgeQuery},
				{Text: "fees for plan B", Intent: models.IntentKnowledgeQuery},
			},
		},
		{
			name:     "query field alias and missing intent",
			response: "```json\n[{\"query\": \"summarize the page\"}]\n```",
			expected: []models.SubQuery{{Text: "summarize the page", Intent: models.IntentKnowledgeQuery}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), &scriptedCompleter{response: tt.response}, NewTestLogger(t))

			subQueries, err := h.Decompose(context.Background(), models.Query{Text: "combined question"},
				multiDecision(models.IntentKnowledgeQuery, models.IntentEscalate))

			require.NoError(t, err)
			assert.Equal(t, tt.expected, subQueries)
		})
	}
}

func TestHandler_Decompose_Failures(t *testing.T) {
	tests := []struct {
		name      string
		completer *scriptedCompleter
	}{
		{name: "model error", completer: &scriptedCompleter{err: errors.New("LLM_TIMEOUT")}},
		{name: "empty list", completer: &scriptedCompleter{response: `{"sub_queries": []}`}},
		{name: "wrong shape", completer: &scriptedCompleter{response: `{"answer": "two parts"}`}},
		{name: "blank texts", completer: &scriptedCompleter{response: `[{"text": "  ", "intent": "web_search"}]`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), tt.completer, NewTestLogger(t))

			_, err := h.Decompose(context.Background(), models.Query{Text: "a and b"},
				multiDecision(models.IntentWebSearch, models.IntentEscalate))

			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDecompositionFailed))
		})
	}
}

func TestHandler_BuildMessages(t *testing.T) {
	completer := &scriptedCompleter{response: `[]`}
	h := NewHandler(createTestConfig(), completer, NewTestLogger(t))

	_, _ = h.Decompose(context.Background(), models.Query{Text: "rates and a human please"},
		multiDecision(models.IntentKnowledgeQuery, models.IntentEscalate))

	require.Len(t, completer.messages, 2)
	assert.Contains(t, completer.messages[0].Content, "into 2 separate sub-queries")
	assert.Contains(t, completer.messages[0].Content, "[knowledge_query, escalate]")
	assert.Equal(t, "rates and a human please", completer.messages[1].Content)
}

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(createTestConfig(), &scriptedCompleter{
		response: `{"sub_queries": [{"text": "a", "intent": "web_search"}, {"text": "b", "intent": "url_scraping"}]}`,
	}, NewTestLogger(t))

	output, err := h.Execute(context.Background(), &Input{
		Query:          "a and b",
		UserID:         "u1",
		IntentDecision: multiDecision(models.IntentWebSearch, models.IntentURLScraping),
	})

	require.NoError(t, err)
	assert.Equal(t, "a and b", output.OriginalQuery)
	assert.Len(t, output.SubQueries, 2)
}

func TestHandler_Execute_EmptyQuery(t *testing.T) {
	h := NewHandler(createTestConfig(), &scriptedCompleter{}, NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: ""})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEmptyQuery))
}
