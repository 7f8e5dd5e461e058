package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaClient runs embedding and generation against a local Ollama
// server.
type OllamaClient struct {
	config *ClientConfig
	client *api.Client
}

// NewOllamaClient creates a client for the configured host, falling back
// to OLLAMA_HOST / the Ollama default when none is set.
func NewOllamaClient(config *ClientConfig) (*OllamaClient, error) {
	if config.EmbedModel == "" {
		config.EmbedModel = "nomic-embed-text"
	}
	if config.ChatModel == "" {
		config.ChatModel = "llama3.1"
	}
	if config.Dim == 0 {
		// nomic-embed-text dimensionality
		config.Dim = 768
	}

	hostURL := envconfig.Host()
	if strings.TrimSpace(config.Host) != "" {
		u, err := url.Parse(config.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", config.Host, err)
		}
		hostURL = u
	}
	client := api.NewClient(hostURL, http.DefaultClient)

	return &OllamaClient{
		config: config,
		client: client,
	}, nil
}

// Embed implements the embedding functionality
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.config.EmbedModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// Invoke generates a full response and returns it as one string.
func (c *OllamaClient) Invoke(ctx context.Context, prompt string, temperature float32) (string, error) {
	stream := false
	req := api.GenerateRequest{
		Model:  c.config.ChatModel,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": temperature,
		},
	}

	var responseBuilder strings.Builder
	err := c.client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	return responseBuilder.String(), nil
}

// Stream forwards generated fragments to fn via Ollama's native
// streaming callback.
func (c *OllamaClient) Stream(ctx context.Context, prompt string, temperature float32, fn func(string) error) error {
	stream := true
	req := api.GenerateRequest{
		Model:  c.config.ChatModel,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": temperature,
		},
	}

	err := c.client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		if resp.Response == "" {
			return nil
		}
		return fn(resp.Response)
	})
	if err != nil {
		return fmt.Errorf("failed to generate response: %w", err)
	}
	return nil
}

func (c *OllamaClient) Dim() int {
	return c.config.Dim
}
