package collab

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// dimensionsByModel gives the fixed output width for OpenAI's published
// embedding models, grounded in the embedding dimension table used by the
// standalone OpenAI embedding provider in the retrieval pack (zrok's
// internal/embedding/openai.go): each model has one fixed dimensionality,
// never changing across calls.
var dimensionsByModel = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbeddingAdapter implements EmbeddingAdapter using the OpenAI Go
// SDK's embeddings endpoint, the same client construction as
// OpenAIAdapter so both LLM and embedding calls can share one base URL for
// an OpenAI-compatible local inference endpoint.
type OpenAIEmbeddingAdapter struct {
	client openai.Client
	model  string
	dims   int
}

// NewOpenAIEmbeddingAdapter builds an OpenAIEmbeddingAdapter. model
// defaults to "text-embedding-3-small"; baseURL, if non-empty, redirects
// calls to a self-hosted OpenAI-compatible embedding backend.
func NewOpenAIEmbeddingAdapter(model, apiKey, baseURL string) *OpenAIEmbeddingAdapter {
	if model == "" {
		model = "text-embedding-3-small"
	}
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	dims, ok := dimensionsByModel[model]
	if !ok {
		dims = 1536
	}
	return &OpenAIEmbeddingAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		dims:   dims,
	}
}

// Dimensions returns the fixed embedding width for this adapter's model.
func (a *OpenAIEmbeddingAdapter) Dimensions() int { return a.dims }

// Embed returns a fixed-width embedding vector for text.
func (a *OpenAIEmbeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: a.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding: no data returned")
	}
	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}
