// internal/workers/ai-conversation/web-search/handler_test.go
package websearch

import (
	"context"
	"errors"
	"fmt"
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

// queuedCompleter answers successive calls from a fixed script.
type queuedCompleter struct {
	replies []reply
	calls   int
	prompts [][]llm.Message
}

type reply struct {
	text string
	err  error
}

func (q *queuedCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	q.prompts = append(q.prompts, messages)
	if q.calls >= len(q.replies) {
		q.calls++
		return "", errors.New("unexpected model call")
	}
	r := q.replies[q.calls]
	q.calls++
	return r.text, r.err
}

func (q *queuedCompleter) CompleteJSON(ctx context.Context, messages []llm.Message, out interface{}) error {
	text, err := q.Complete(ctx, messages)
	if err != nil {
		return err
	}
	return llm.DecodeJSON(text, out)
}

type fakeSearcher struct {
	results map[string][]models.WebResult
	errs    map[string]error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]models.WebResult, error) {
	f.queries = append(f.queries, query)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

func createTestConfig() *Config {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

func web(n int) models.WebResult {
	return models.WebResult{
		Title:   fmt.Sprintf("Page %d", n),
		URL:     fmt.Sprintf("https://example.com/%d", n),
		Snippet: fmt.Sprintf("snippet %d", n),
	}
}

const goodSummary = `{"summary": "Repo rates rose to 6.5%.", "key_facts": ["RBI raised rates", "Effective June"], "relevance_assessment": "Direct answer", "confidence": 0.8}`

// ==========================
// Search Flow Tests
// ==========================

func TestHandler_Process_DedupesAndTruncates(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.WebResult{
		"rbi repo rate":     {web(1), web(2), web(3)},
		"repo rate history": {web(2), web(4), web(5), web(6)},
		"repo rate 2024":    {web(7)},
	}}
	completer := &queuedCompleter{replies: []reply{
		{text: `{"search_queries": ["rbi repo rate", "repo rate history", "repo rate 2024", "ignored fourth"]}`},
		{text: goodSummary},
	}}
	h := NewHandler(createTestConfig(), searcher, completer, NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "What is the current repo rate?"})
	require.NoError(t, err)
	require.True(t, out.OK())

	assert.Equal(t, []string{"rbi repo rate", "repo rate history", "repo rate 2024"}, searcher.queries)
	require.Len(t, out.Results, 5)
	urls := make([]string, len(out.Results))
	for i, r := range out.Results {
		urls[i] = r.URL
	}
	assert.Equal(t, []string{
		"https://example.com/1", "https://example.com/2", "https://example.com/3",
		"https://example.com/4", "https://example.com/5",
	}, urls)
	assert.Equal(t, urls, out.Result.Sources)

	assert.Equal(t, "Repo rates rose to 6.5%.\n\nKey facts:\n- RBI raised rates\n- Effective June", out.Result.ResponseText)
	assert.InDelta(t, 0.8, out.Result.Confidence, 1e-9)
	assert.False(t, out.Result.NeedsEscalation)
	assert.Equal(t, "Direct answer", out.RelevanceAssessment)
	assert.Contains(t, completer.prompts[1][1].Content, "Source 5: Page 5\nURL: https://example.com/5")
}

func TestHandler_Process_QueryGenerationFallback(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
	}{
		{name: "model error", reply: reply{err: errors.New("LLM_TIMEOUT")}},
		{name: "empty list", reply: reply{text: `{"search_queries": []}`}},
		{name: "blank entries", reply: reply{text: `{"search_queries": ["  "]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{results: map[string][]models.WebResult{"loan tenure options": {web(1)}}}
			completer := &queuedCompleter{replies: []reply{tt.reply, {text: goodSummary}}}
			h := NewHandler(createTestConfig(), searcher, completer, NewTestLogger(t))

			outcome := h.Process(context.Background(), models.Query{Text: "loan tenure options"})

			require.True(t, outcome.OK())
			assert.Equal(t, []string{"loan tenure options"}, searcher.queries)
		})
	}
}

func TestHandler_Process_PartialSearchFailure(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]models.WebResult{"b": {web(1)}},
		errs:    map[string]error{"a": errors.New("quota exceeded")},
	}
	completer := &queuedCompleter{replies: []reply{{text: `{"search_queries": ["a", "b"]}`}, {text: goodSummary}}}
	h := NewHandler(createTestConfig(), searcher, completer, NewTestLogger(t))

	outcome := h.Process(context.Background(), models.Query{Text: "q"})

	require.True(t, outcome.OK())
	assert.Equal(t, []string{"https://example.com/1"}, outcome.Result.Sources)
}

// ==========================
// Failure Tests
// ==========================

func TestHandler_Process_AllSearchesFail(t *testing.T) {
	searcher := &fakeSearcher{errs: map[string]error{"q": errors.New("provider down")}}
	completer := &queuedCompleter{replies: []reply{{err: errors.New("LLM_TIMEOUT")}}}
	h := NewHandler(createTestConfig(), searcher, completer, NewTestLogger(t))

	outcome := h.Process(context.Background(), models.Query{Text: "q"})

	require.False(t, outcome.OK())
	assert.Equal(t, models.AgentWebSearch, outcome.Failure.Agent)
	assert.Contains(t, outcome.Failure.Message, "provider down")
	assert.Equal(t, 1, completer.calls, "no summary without results")
}

func TestHandler_Process_NoResults(t *testing.T) {
	completer := &queuedCompleter{replies: []reply{{text: `{"search_queries": ["q"]}`}}}
	h := NewHandler(createTestConfig(), &fakeSearcher{}, completer, NewTestLogger(t))

	outcome := h.Process(context.Background(), models.Query{Text: "q"})

	require.True(t, outcome.OK())
	assert.Equal(t, noResultsText, outcome.Result.ResponseText)
	assert.Equal(t, 0.0, outcome.Result.Confidence)
	assert.Empty(t, outcome.Result.Sources)
}

func TestHandler_Process_SummaryFailureEscalates(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.WebResult{"q": {web(1)}}}
	completer := &queuedCompleter{replies: []reply{{text: `{"search_queries": ["q"]}`}, {text: "not json at all"}}}
	h := NewHandler(createTestConfig(), searcher, completer, NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "q"})
	require.NoError(t, err)

	require.True(t, out.OK())
	assert.Equal(t, summaryFailedText, out.Result.ResponseText)
	assert.Equal(t, 0.0, out.Result.Confidence)
	assert.True(t, out.Result.NeedsEscalation)
	assert.Equal(t, []string{"https://example.com/1"}, out.Result.Sources)
	assert.Empty(t, out.KeyFacts)
}

func TestHandler_Process_ConfidenceDefaultsAndClamps(t *testing.T) {
	tests := []struct {
		summary  string
		expected float64
	}{
		{summary: `{"summary": "s"}`, expected: 0.7},
		{summary: `{"summary": "s", "confidence": 3}`, expected: 1},
	}
	for _, tt := range tests {
		searcher := &fakeSearcher{results: map[string][]models.WebResult{"q": {web(1)}}}
		completer := &queuedCompleter{replies: []reply{{text: `{"search_queries": ["q"]}`}, {text: tt.summary}}}
		h := NewHandler(createTestConfig(), searcher, completer, NewTestLogger(t))

		outcome := h.Process(context.Background(), models.Query{Text: "q"})
		require.True(t, outcome.OK())
		assert.InDelta(t, tt.expected, outcome.Result.Confidence, 1e-9)
		assert.Equal(t, "s", outcome.Result.ResponseText)
	}
}

func TestHandler_Execute_EmptyQuery(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakeSearcher{}, &queuedCompleter{}, NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: "  "})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEmptyQuery))

	outcome := h.Process(context.Background(), models.Query{})
	assert.False(t, outcome.OK())
}
