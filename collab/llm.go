package collab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIAdapter implements LLMAdapter using the official OpenAI Go SDK.
// Any OpenAI-compatible endpoint (local inference servers included) works
// via WithBaseURL, which is how this adapter can talk to a local LLM
// inference engine despite the SDK's name.
type OpenAIAdapter struct {
	mu     sync.Mutex // serializes Generate: at most one in-flight call
	client openai.Client
	model  string
}

// OpenAIOption configures an OpenAIAdapter.
type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	model   string
	apiKey  string
	baseURL string
	timeout time.Duration
}

// WithModel sets the model name (default "gpt-4o").
func WithModel(model string) OpenAIOption {
	return func(c *openaiConfig) { c.model = model }
}

// WithAPIKey sets the API key; empty defers to the SDK's OPENAI_API_KEY
// fallback.
func WithAPIKey(key string) OpenAIOption {
	return func(c *openaiConfig) { c.apiKey = key }
}

// WithBaseURL points the adapter at a local or self-hosted OpenAI-compatible
// endpoint, which is how this adapter reaches the local LLM
// inference engine collaborator.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) { c.baseURL = url }
}

// WithRequestTimeout sets the per-request timeout (default 30s).
func WithRequestTimeout(d time.Duration) OpenAIOption {
	return func(c *openaiConfig) { c.timeout = d }
}

// NewOpenAIAdapter builds an OpenAIAdapter from the given options.
func NewOpenAIAdapter(opts ...OpenAIOption) *OpenAIAdapter {
	cfg := openaiConfig{model: "gpt-4o", timeout: 30 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}

	var clientOpts []option.RequestOption
	if cfg.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	clientOpts = append(clientOpts, option.WithRequestTimeout(cfg.timeout))

	return &OpenAIAdapter{
		client: openai.NewClient(clientOpts...),
		model:  cfg.model,
	}
}

// Generate sends prompt as a single user message and returns the model's
// reply, truncated to MaxOutputChars. A prompt longer than
// MaxPromptChars is rejected rather than silently truncated, since
// truncating a security-relevant prompt could drop the operative content.
func (a *OpenAIAdapter) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(prompt) > MaxPromptChars {
		return "", fmt.Errorf("%w: prompt exceeds %d characters", ErrLlmUnavailable, MaxPromptChars)
	}

	params := openai.ChatCompletionNewParams{
		Model:    a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLlmUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrLlmUnavailable)
	}

	out := completion.Choices[0].Message.Content
	if len(out) > MaxOutputChars {
		out = out[:MaxOutputChars]
	}
	return out, nil
}
