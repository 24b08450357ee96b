// Package llm wraps an OpenAI-compatible chat completion endpoint behind the
// small Completer contract the agents depend on.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/common/metrics"
)

var (
	ErrRateLimited     = errors.New("LLM_RATE_LIMITED")
	ErrTimeout         = errors.New("LLM_TIMEOUT")
	ErrInvalidResponse = errors.New("LLM_INVALID_RESPONSE")
	ErrUnavailable     = errors.New("LLM_UNAVAILABLE")
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }

// Completer is the model-completion collaborator.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CompleteJSON(ctx context.Context, messages []Message, out interface{}) error
}

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	EmbeddingDims  int
	Temperature    float64
	MaxTokens      int
	MaxRetries     int
	Timeout        time.Duration
	HTTPClient     *http.Client
}

type Client struct {
	api    openai.Client
	config Config
	logger logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Complete owns retries and backoff.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		api:    openai.NewClient(opts...),
		config: cfg,
		logger: log.With(map[string]interface{}{
			"component": "llm",
			"model":     cfg.Model,
		}),
	}
}

// Complete returns the assistant text for messages.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, "chat", messages, false)
}

// CompleteJSON asks for a JSON object response and decodes it into out,
// repairing malformed JSON where possible.
func (c *Client) CompleteJSON(ctx context.Context, messages []Message, out interface{}) error {
	text, err := c.complete(ctx, "chat_json", messages, true)
	if err != nil {
		return err
	}
	if err := DecodeJSON(text, out); err != nil {
		metrics.LLMRequests.WithLabelValues("chat_json", "invalid").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, op string, messages []Message, wantJSON bool) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages", ErrInvalidResponse)
	}
	params := c.buildParams(messages, wantJSON)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.LLMRequests.WithLabelValues(op, "timeout").Inc()
				return "", fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
		}

		text, err := c.attempt(ctx, params)
		if err == nil {
			metrics.LLMRequests.WithLabelValues(op, "ok").Inc()
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			metrics.LLMRequests.WithLabelValues(op, "timeout").Inc()
			return "", fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		if !retryable(err) {
			break
		}
		c.logger.Warn("llm attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	metrics.LLMRequests.WithLabelValues(op, outcomeLabel(lastErr)).Inc()
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.api.Chat.Completions.New(callCtx, params)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) buildParams(messages []Message, wantJSON bool) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    c.config.Model,
		Messages: toOpenAIMessages(messages),
	}
	if c.config.Temperature > 0 {
		params.Temperature = openai.Float(c.config.Temperature)
	}
	if c.config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.config.MaxTokens))
	}
	if wantJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// classify maps transport and API errors onto the package sentinels.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func retryable(err error) bool {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return errors.Is(err, ErrUnavailable)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid"
	default:
		return "error"
	}
}
