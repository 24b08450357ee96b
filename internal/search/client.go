// Package search queries a Google Programmable Search compatible endpoint.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"conversation-orchestrator/internal/common/errors"
	commonhttp "conversation-orchestrator/internal/common/http"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/models"
)

var whitespace = regexp.MustCompile(`\s+`)

type Config struct {
	BaseURL    string
	APIKey     string
	EngineID   string
	MaxResults int
}

type Client struct {
	config Config
	http   *commonhttp.Client
	logger logger.Logger
}

func NewClient(cfg Config, httpClient *commonhttp.Client, log logger.Logger) *Client {
	if cfg.MaxResults <= 0 || cfg.MaxResults > 10 {
		cfg.MaxResults = 10
	}
	return &Client{
		config: cfg,
		http:   httpClient,
		logger: log.With(map[string]interface{}{"component": "web-search"}),
	}
}

type apiResponse struct {
	Items []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Mime    string `json:"mime"`
	} `json:"items"`
}

// Search runs one query and returns the hits in provider order. Non-HTML
// results (PDFs and other files) are skipped.
func (c *Client) Search(ctx context.Context, query string) ([]models.WebResult, error) {
	query = whitespace.ReplaceAllString(strings.TrimSpace(query), " ")
	if query == "" {
		return nil, nil
	}

	resp, err := c.http.Get(ctx, c.buildURL(query), 1<<20)
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError("web search", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewCollaboratorUnavailableError("web search", fmt.Errorf("search API returned %d", resp.StatusCode))
	}

	var body apiResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, errors.NewCollaboratorUnavailableError("web search", fmt.Errorf("decode response: %w", err))
	}

	results := make([]models.WebResult, 0, len(body.Items))
	for _, item := range body.Items {
		if item.Mime != "" && !strings.Contains(item.Mime, "html") {
			continue
		}
		results = append(results, models.WebResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}

	c.logger.Info("web search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(results),
	})
	return results, nil
}

func (c *Client) buildURL(query string) string {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		base = &url.URL{Scheme: "https", Host: "www.googleapis.com", Path: "/customsearch/v1"}
	}
	params := url.Values{}
	params.Add("key", c.config.APIKey)
	params.Add("cx", c.config.EngineID)
	params.Add("q", query)
	params.Add("num", fmt.Sprintf("%d", c.config.MaxResults))
	base.RawQuery = params.Encode()
	return base.String()
}
