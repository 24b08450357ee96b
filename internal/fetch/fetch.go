// Package fetch downloads a web page and reduces it to readable text.
package fetch

import (
	"context"
	"strings"
	"unicode/utf8"

	"conversation-orchestrator/internal/common/errors"
	commonhttp "conversation-orchestrator/internal/common/http"
	"conversation-orchestrator/internal/common/logger"
)

// Page is the cleaned content of one URL.
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

type Fetcher struct {
	client   *commonhttp.Client
	maxBytes int64
	logger   logger.Logger
}

func New(client *commonhttp.Client, maxBytes int64, log logger.Logger) *Fetcher {
	return &Fetcher{
		client:   client,
		maxBytes: maxBytes,
		logger:   log.With(map[string]interface{}{"component": "url-fetcher"}),
	}
}

// Get fetches rawURL. Non-2xx answers fail with FETCH_FAILED; pages with no
// text left after stripping fail with EXTRACTION_FAILED.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := f.client.Get(ctx, rawURL, f.maxBytes)
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError("fetch", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("fetch returned non-success status", map[string]interface{}{
			"url":    rawURL,
			"status": resp.StatusCode,
		})
		return nil, errors.NewFetchFailedError(rawURL, resp.StatusCode)
	}

	page := &Page{URL: rawURL, ContentType: resp.ContentType}
	if isPlainText(resp.ContentType) {
		page.Content = strings.TrimSpace(string(resp.Body))
	} else {
		title, content, err := Extract(resp.Body)
		if err != nil {
			return nil, errors.NewExtractionFailedError(rawURL)
		}
		page.Title, page.Content = title, content
	}

	if page.Content == "" {
		return nil, errors.NewExtractionFailedError(rawURL)
	}

	f.logger.Info("page fetched", map[string]interface{}{
		"url":   rawURL,
		"title": page.Title,
		"chars": utf8.RuneCountInString(page.Content),
	})
	return page, nil
}

func isPlainText(contentType string) bool {
	return strings.Contains(contentType, "text/plain") || strings.Contains(contentType, "text/markdown")
}
