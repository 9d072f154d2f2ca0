package collab

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound calls to a single collaborator using a
// token-bucket algorithm. The LLM and embedding adapters can each be wrapped
// with their own limiter (RateLimitedLLM, RateLimitedEmbedding), so one
// slow/quota-exhausted collaborator never starves the other; there is no
// vector-DB wrapper.
type RateLimiter struct {
	requests *rate.Limiter
}

// NewRateLimiter builds a limiter allowing requestsPerMin requests per
// minute. A requestsPerMin of 0 disables limiting.
func NewRateLimiter(requestsPerMin int) *RateLimiter {
	if requestsPerMin <= 0 {
		return &RateLimiter{}
	}
	r := rate.Limit(float64(requestsPerMin) / 60.0)
	return &RateLimiter{requests: rate.NewLimiter(r, requestsPerMin)}
}

// Allow blocks until the next call is permitted or ctx is done.
func (rl *RateLimiter) Allow(ctx context.Context) error {
	if rl.requests == nil {
		return nil
	}
	return rl.requests.Wait(ctx)
}

// RateLimitedLLM wraps an LLMAdapter with a RateLimiter.
type RateLimitedLLM struct {
	Adapter LLMAdapter
	Limiter *RateLimiter
}

// Generate waits for rate-limiter clearance before delegating.
func (r *RateLimitedLLM) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := r.Limiter.Allow(ctx); err != nil {
		return "", err
	}
	return r.Adapter.Generate(ctx, prompt, maxTokens)
}

// RateLimitedEmbedding wraps an EmbeddingAdapter with a RateLimiter.
type RateLimitedEmbedding struct {
	Adapter EmbeddingAdapter
	Limiter *RateLimiter
}

// Embed waits for rate-limiter clearance before delegating.
func (r *RateLimitedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.Limiter.Allow(ctx); err != nil {
		return nil, err
	}
	return r.Adapter.Embed(ctx, text)
}

// Dimensions delegates to the wrapped adapter.
func (r *RateLimitedEmbedding) Dimensions() int { return r.Adapter.Dimensions() }
