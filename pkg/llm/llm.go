// Package llm wraps the external embedding and text-completion collaborators
// behind small interfaces the pipeline consumes. Backends are langchaingo's
// OpenAI (embeddings) and Anthropic (completions) clients.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Embedder produces one fixed-dimension vector per text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DocEmbedder additionally embeds document batches; the ingest path uses it
// to avoid one API call per chunk. The OpenAI embedder satisfies it.
type DocEmbedder interface {
	Embedder
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer runs one prompt through a text-completion model and returns the
// raw completion text. No conformance to any structure is guaranteed.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewOpenAIEmbedder builds an embedder backed by the OpenAI embeddings API.
func NewOpenAIEmbedder(token, model string) (Embedder, error) {
	client, err := openai.New(
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("llm: openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("llm: embedder: %w", err)
	}
	return embedder, nil
}

// AnthropicCompleter calls the Anthropic messages API, pacing requests with a
// token bucket so concurrent pipeline requests don't trip provider limits.
type AnthropicCompleter struct {
	model     llms.Model
	limiter   *rate.Limiter
	maxTokens int
}

// CompleterOpts configures the completion client.
type CompleterOpts struct {
	Token     string
	Model     string
	MaxTokens int
	// RequestsPerSecond bounds the call rate; zero disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// NewAnthropicCompleter builds a paced Anthropic completion client.
func NewAnthropicCompleter(opts CompleterOpts) (*AnthropicCompleter, error) {
	model, err := anthropic.New(
		anthropic.WithToken(opts.Token),
		anthropic.WithModel(opts.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic client: %w", err)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &AnthropicCompleter{model: model, limiter: limiter, maxTokens: opts.MaxTokens}, nil
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm: rate wait: %w", err)
		}
	}
	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("llm: complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: complete: empty response")
	}
	return resp.Choices[0].Content, nil
}

// IsRetryable reports whether an error looks like a transient rate-limit or
// overload signal worth a backed-off retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "529", "rate limit", "overloaded", "unavailable", "timeout", "temporarily"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
