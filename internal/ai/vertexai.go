package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type VertexAIClient struct {
	config *ClientConfig
	client *genai.Client
}

// NewVertexAIClient creates a new client for the Google Gemini API.
func NewVertexAIClient(ctx context.Context, config *ClientConfig) (*VertexAIClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	// Defaults for Gemini API
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-005"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gemini-2.0-flash"
	}
	if config.Dim == 0 {
		config.Dim = 768
	}
	if config.Location == "" && strings.TrimSpace(config.APIKey) == "" {
		config.Location = "us-central1"
	}

	cc := genai.ClientConfig{
		Backend: genai.BackendVertexAI,
	}
	if strings.TrimSpace(config.APIKey) != "" {
		cc.APIKey = config.APIKey
	}
	if strings.TrimSpace(config.ProjectID) != "" {
		cc.Project = config.ProjectID
	}
	if strings.TrimSpace(config.Location) != "" {
		cc.Location = config.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &VertexAIClient{
		config: config,
		client: client,
	}, nil
}

// Embed implements the embedding functionality using the Gemini API
func (c *VertexAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds all texts in one EmbedContent call; the API returns
// embeddings in input order.
func (c *VertexAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}

	cfg := genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_DOCUMENT",
	}
	res, err := c.client.Models.EmbedContent(ctx, c.config.EmbedModel, contents, &cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if res == nil || len(res.Embeddings) != len(texts) {
		return nil, errors.New("unexpected embedding count returned")
	}

	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// Invoke runs a single-shot generation using the Gemini API.
func (c *VertexAIClient) Invoke(ctx context.Context, prompt string, temperature float32) (string, error) {
	cfg := c.generateConfig(temperature)
	resp, err := c.client.Models.GenerateContent(ctx, c.config.ChatModel, genai.Text(truncate(prompt, 400_000)), &cfg)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errNoContent("vertexai")
	}
	return text, nil
}

// Stream forwards generated fragments to fn as candidates arrive.
func (c *VertexAIClient) Stream(ctx context.Context, prompt string, temperature float32, fn func(string) error) error {
	cfg := c.generateConfig(temperature)
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.config.ChatModel, genai.Text(truncate(prompt, 400_000)), &cfg) {
		if err != nil {
			return fmt.Errorf("generation stream: %w", err)
		}
		if text := responseText(resp); text != "" {
			if err := fn(text); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *VertexAIClient) generateConfig(temperature float32) genai.GenerateContentConfig {
	temp := temperature
	return genai.GenerateContentConfig{
		Temperature: &temp,
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func (c *VertexAIClient) Dim() int {
	return c.config.Dim
}
