package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client provides embedding and text generation for the RAG pipeline.
// Stream delivers fragments to fn as the model produces them; returning
// an error from fn stops the stream.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Invoke(ctx context.Context, prompt string, temperature float32) (string, error)
	Stream(ctx context.Context, prompt string, temperature float32, fn func(fragment string) error) error
	Dim() int
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderOllama   Provider = "ollama"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dim        int
	ProjectID  string
	Location   string
	Host       string // ollama only
	Provider   Provider
}

// NewClient creates a new AI client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	ctx := context.Background()
	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	case ProviderOllama:
		return NewOllamaClient(config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is a stub implementation of the Client interface for testing
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	return &StubClient{dim: dim}
}

// Embed returns a deterministic vector derived from the text length so
// repeated runs stay stable.
func (s *StubClient) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, s.dim)
	for i := range v {
		v[i] = float32((len(text)+i)%7) / 7
	}
	return v, nil
}

func (s *StubClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Invoke returns a fixed sufficiency verdict so the full pipeline can be
// exercised without a real model.
func (s *StubClient) Invoke(ctx context.Context, prompt string, temperature float32) (string, error) {
	return `{"sufficient": true, "coverage": 80, "depth": "moderate", "reasoning": "stub verdict"}`, nil
}

func (s *StubClient) Stream(ctx context.Context, prompt string, temperature float32, fn func(string) error) error {
	for _, frag := range []string{"This is a ", "stub answer ", "for local development."} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(frag); err != nil {
			return err
		}
	}
	return nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}

// truncate keeps prompts within a sane request size for providers that
// bill or reject on raw length.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func errNoContent(provider string) error {
	return fmt.Errorf("%s: model returned no content", strings.ToLower(provider))
}
