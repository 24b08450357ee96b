package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-orchestrator/internal/common/logger"
)

// ==========================
// Test Helpers
// ==========================

func chatCompletionBody(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			},
		},
	})
	return string(body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		BaseURL:        server.URL + "/v1/",
		APIKey:         "test-key",
		Model:          "gpt-3.5-turbo",
		EmbeddingModel: "text-embedding-3-small",
		EmbeddingDims:  3,
		Temperature:    0.2,
		MaxTokens:      256,
		MaxRetries:     2,
		Timeout:        2 * time.Second,
	}, logger.NewTestLogger(t))
}

// ==========================
// Completion Tests
// ==========================

func TestClient_Complete(t *testing.T) {
	var captured map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody("Paris is the capital of France.")))
	})

	text, err := client.Complete(context.Background(), []Message{
		System("You are concise."),
		User("Capital of France?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", text)

	assert.Equal(t, "gpt-3.5-turbo", captured["model"])
	msgs, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
	assert.Equal(t, "user", msgs[1].(map[string]interface{})["role"])
	_, hasFormat := captured["response_format"]
	assert.False(t, hasFormat)
}

func TestClient_CompleteJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]interface{}
		wantErr error
	}{
		{
			name:    "plain object",
			content: `{"confidence": 0.9, "answer": "yes"}`,
			want:    map[string]interface{}{"confidence": 0.9, "answer": "yes"},
		},
		{
			name:    "fenced object",
			content: "```json\n{\"answer\": \"fenced\"}\n```",
			want:    map[string]interface{}{"answer": "fenced"},
		},
		{
			name:    "repairable trailing comma",
			content: `{"answer": "repaired",}`,
			want:    map[string]interface{}{"answer": "repaired"},
		},
		{
			name:    "not json at all",
			content: "I cannot answer that.",
			wantErr: ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				format, _ := body["response_format"].(map[string]interface{})
				assert.Equal(t, "json_object", format["type"])
				_, _ = w.Write([]byte(chatCompletionBody(tt.content)))
			})

			var got map[string]interface{}
			err := client.CompleteJSON(context.Background(), []Message{User("respond in JSON")}, &got)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(chatCompletionBody("recovered")))
	})

	text, err := client.Complete(context.Background(), []Message{User("hi")})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_ErrorMapping(t *testing.T) {
	t.Run("rate limit exhausts retries", func(t *testing.T) {
		var calls int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
		})

		_, err := client.Complete(context.Background(), []Message{User("hi")})
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
		})

		_, err := client.Complete(context.Background(), []Message{User("hi")})
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("cancelled context is a timeout", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(chatCompletionBody("late")))
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := client.Complete(ctx, []Message{User("hi")})
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("no messages", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		_, err := client.Complete(context.Background(), nil)
		assert.True(t, errors.Is(err, ErrInvalidResponse))
	})
}

// ==========================
// Embedding Tests
// ==========================

func TestClient_Embed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		// out of order on purpose; vectors must land by index
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.4, 0.5, 0.6]},
				{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}
			],
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`))
	})

	vecs, err := client.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.InDelta(t, 0.1, vecs[0][0], 1e-6)
	assert.InDelta(t, 0.6, vecs[1][2], 1e-6)
	assert.Equal(t, 3, client.Dimension())

	_, err = client.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestDecodeJSON_NonSyntaxErrorIsReturned(t *testing.T) {
	var out struct {
		Confidence float64 `json:"confidence"`
	}
	err := DecodeJSON(`{"confidence": "high"}`, &out)
	assert.Error(t, err)
}
