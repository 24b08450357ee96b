package fetch

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

func TestExtract_RegionPriority(t *testing.T) {
	tests := []struct {
		name        string
		html        string
		contains    string
		notContains string
	}{
		{
			name:        "article wins over main",
			html:        `<html><body><main><p>Main text</p><article><p>Article text</p></article></main></body></html>`,
			contains:    "Article text",
			notContains: "Main text",
		},
		{
			name:        "main wins over content div",
			html:        `<html><body><div class="content"><p>Div text</p></div><main><p>Main text</p></main></body></html>`,
			contains:    "Main text",
			notContains: "Div text",
		},
		{
			name:        "content class container",
			html:        `<html><body><div class="sidebar">Side</div><div class="page content">Real content</div></body></html>`,
			contains:    "Real content",
			notContains: "Side",
		},
		{
			name:     "content id container",
			html:     `<html><body><p>Outside</p><section id="main"><p>Inside</p></section></body></html>`,
			contains: "Inside",
		},
		{
			name:     "falls back to body",
			html:     `<html><body><p>Just a body</p></body></html>`,
			contains: "Just a body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, content, err := Extract([]byte(tt.html))
			require.NoError(t, err)
			assert.Contains(t, content, tt.contains)
			if tt.notContains != "" {
				assert.NotContains(t, content, tt.notContains)
			}
		})
	}
}

func TestExtract_StripsBoilerplate(t *testing.T) {
	page := `<html><head><title> Pricing </title><style>.x{}</style></head>
	<body>
	  <header>Site header</header>
	  <nav>Home | About</nav>
	  <article>
	    <h1>Plans</h1>
	    <p>The <strong>Pro</strong> plan costs $10.</p>
	    <ul><li>Unlimited seats</li><li>Priority support</li></ul>
	    <script>track()</script>
	    <aside>Related links</aside>
	  </article>
	  <footer>Copyright</footer>
	</body></html>`

	title, content, err := Extract([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Pricing", title)
	assert.Contains(t, content, "# Plans")
	assert.Contains(t, content, "**Pro**")
	assert.Contains(t, content, "- Unlimited seats")
	for _, gone := range []string{"Site header", "Home | About", "track()", "Related links", "Copyright", ".x{}"} {
		assert.NotContains(t, content, gone)
	}
}

func newFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, string) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := commonhttp.NewClient(5*time.Second, "test-agent")
	t.Cleanup(client.Close)
	return New(client, 1<<20, logger.NewTestLogger(t)), server.URL
}

func TestFetcher_Get(t *testing.T) {
	f, url := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Docs</title></head><body><main><p>Hello docs</p></main></body></html>`))
	})

	page, err := f.Get(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "Docs", page.Title)
	assert.Equal(t, "Hello docs", page.Content)
}

func TestFetcher_PlainText(t *testing.T) {
	f, url := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  raw <b>text</b>  "))
	})

	page, err := f.Get(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "raw <b>text</b>", page.Content)
}

func TestFetcher_Errors(t *testing.T) {
	t.Run("404 is fetch failed", func(t *testing.T) {
		f, url := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := f.Get(context.Background(), url+"/missing")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeFetchFailed))
	})

	t.Run("empty page is extraction failed", func(t *testing.T) {
		f, url := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><nav>menu</nav><script>x()</script></body></html>`))
		})
		_, err := f.Get(context.Background(), url)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeExtractionFailed))
	})

	t.Run("unreachable host", func(t *testing.T) {
		f, url := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Get(ctx, url)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeCollaboratorUnavailable))
	})
}
