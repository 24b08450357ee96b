package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"

	"conversation-orchestrator/internal/common/metrics"
)

var ErrEmptyInput = errors.New("EMBEDDING_EMPTY_INPUT")

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Model:          c.config.EmbeddingModel,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if c.config.EmbeddingDims > 0 {
		params.Dimensions = openai.Int(int64(c.config.EmbeddingDims))
	}

	resp, err := c.api.Embeddings.New(callCtx, params)
	if err != nil {
		metrics.LLMRequests.WithLabelValues("embed", "error").Inc()
		return nil, classify(err)
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= int64(len(texts)) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrInvalidResponse, item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, f := range item.Embedding {
			vec[i] = float32(f)
		}
		vecs[item.Index] = vec
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for index %d", ErrInvalidResponse, i)
		}
	}

	metrics.LLMRequests.WithLabelValues("embed", "ok").Inc()
	return vecs, nil
}

func (c *Client) Dimension() int {
	return c.config.EmbeddingDims
}
