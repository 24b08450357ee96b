package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-orchestrator/internal/common/errors"
	commonhttp "conversation-orchestrator/internal/common/http"
	"conversation-orchestrator/internal/common/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	httpClient := commonhttp.NewClient(5*time.Second, "Mozilla/5.0 (compatible; ConversationOrchestrator/1.0; AI Agent)")
	t.Cleanup(httpClient.Close)
	return NewClient(Config{
		BaseURL:    server.URL + "/customsearch/v1",
		APIKey:     "test-key",
		EngineID:   "test-cx",
		MaxResults: 5,
	}, httpClient, logger.NewTestLogger(t))
}

func TestClient_Search(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/customsearch/v1", r.URL.Path)
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "test-cx", q.Get("cx"))
		assert.Equal(t, "golang release notes", q.Get("q"))
		assert.Equal(t, "5", q.Get("num"))
		assert.Contains(t, r.Header.Get("User-Agent"), "ConversationOrchestrator")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"link":"https://go.dev/doc/devel/release","title":"Release History","snippet":"Go releases"},
			{"link":"https://example.com/rates.pdf","title":"Rates","snippet":"pdf","mime":"application/pdf"},
			{"link":"https://go.dev/blog","title":"Blog","snippet":"news","mime":"text/html"}
		]}`))
	})

	results, err := client.Search(context.Background(), "  golang   release notes ")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://go.dev/doc/devel/release", results[0].URL)
	assert.Equal(t, "Blog", results[1].Title)
}

func TestClient_Search_NoItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	results, err := client.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClient_Search_Errors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		_, err := client.Search(context.Background(), "q")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeCollaboratorUnavailable))
	})

	t.Run("bad json", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"items": [`))
		})
		_, err := client.Search(context.Background(), "q")
		assert.Error(t, err)
	})
}

func TestClient_Search_EmptyQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty query must not reach the provider")
	})
	results, err := client.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, results)
}
