// Package sufficiency decides whether retrieved context can answer a
// question. Cheap quantitative gates settle the clear cases; everything
// in between goes to an LLM arbiter.
package sufficiency

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scrybe-app/scrybe/internal/ai"
	"github.com/scrybe-app/scrybe/internal/config"
	"github.com/scrybe-app/scrybe/pkg/models"
)

const arbitrationTemperature = 0.1

// Verdict is a closed set: Insufficient, Sufficient, or Ambiguous.
type Verdict interface {
	verdict()
}

// Insufficient means the context cannot support an answer. Reason is a
// user-facing phrase naming the failed gate.
type Insufficient struct {
	Reason string
}

// Sufficient means every strong gate passed and the answer can be
// grounded in the context alone.
type Sufficient struct{}

// Ambiguous carries the LLM arbiter's judgement for the middle band.
type Ambiguous struct {
	Sufficient bool
	Coverage   int
	Depth      string
	Reasoning  string
}

func (Insufficient) verdict() {}
func (Sufficient) verdict()   {}
func (Ambiguous) verdict()    {}

// Classifier applies the configured gates and, for the middle band,
// asks the model.
type Classifier struct {
	client ai.Client
	cfg    config.SufficiencySpecification
}

func NewClassifier(client ai.Client, cfg config.SufficiencySpecification) *Classifier {
	return &Classifier{client: client, cfg: cfg}
}

// Classify maps retrieval metrics to a verdict. Gates are checked
// weakest-first and the first failing gate names the reason.
func (c *Classifier) Classify(ctx context.Context, query, contextBlock string, m models.RetrievalMetrics) (Verdict, error) {
	if reason := c.insufficientReason(m); reason != "" {
		return Insufficient{Reason: reason}, nil
	}

	if m.ChunkCount >= c.cfg.StrongChunks &&
		m.TotalWords >= c.cfg.StrongWords &&
		m.AvgScore >= c.cfg.StrongAvgScore &&
		m.KeywordCoverage >= c.cfg.StrongCoverage &&
		m.MaxScore >= c.cfg.StrongMaxScore {
		return Sufficient{}, nil
	}

	return c.arbitrate(ctx, query, contextBlock, m)
}

func (c *Classifier) insufficientReason(m models.RetrievalMetrics) string {
	switch {
	case m.ChunkCount < c.cfg.MinChunks:
		return "doesn't appear to cover this topic"
	case m.TotalWords < c.cfg.MinWords:
		return "found limited detail on this topic"
	case m.AvgScore < c.cfg.MinAvgScore:
		return "the retrieved content has low relevance"
	case m.KeywordCoverage < c.cfg.MinCoverage:
		return "the video content doesn't match your question well"
	}
	return ""
}

// arbitrate asks the model to judge the middle band. A response that
// cannot be parsed falls back to not-sufficient so the answer path
// degrades to hybrid rather than failing the request.
func (c *Classifier) arbitrate(ctx context.Context, query, contextBlock string, m models.RetrievalMetrics) (Verdict, error) {
	prompt := arbitrationPrompt(query, contextBlock, m)

	response, err := c.client.Invoke(ctx, prompt, arbitrationTemperature)
	if err != nil {
		return nil, fmt.Errorf("sufficiency arbitration failed: %w", err)
	}

	verdict, err := parseArbitration(response)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to parse arbitration response, treating context as not sufficient")
		return Ambiguous{
			Sufficient: false,
			Coverage:   50,
			Depth:      "moderate",
			Reasoning:  "Unable to parse evaluation",
		}, nil
	}
	return verdict, nil
}

func arbitrationPrompt(query, contextBlock string, m models.RetrievalMetrics) string {
	var b strings.Builder
	b.WriteString("You are evaluating if retrieved video transcript context is sufficient to answer a user's question.\n\n")
	b.WriteString("QUANTITATIVE METRICS:\n")
	fmt.Fprintf(&b, "- Chunks retrieved: %d\n", m.ChunkCount)
	fmt.Fprintf(&b, "- Total words: %d\n", m.TotalWords)
	fmt.Fprintf(&b, "- Keyword coverage: %.0f%%\n\n", m.KeywordCoverage*100)
	b.WriteString("RETRIEVED CONTEXT:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nUSER QUESTION:\n")
	b.WriteString(query)
	b.WriteString("\n\nEvaluate these 3 aspects:\n")
	b.WriteString("1. Does the context cover all aspects of the question?\n")
	b.WriteString("2. Is there enough depth/detail to provide a meaningful answer?\n")
	b.WriteString("3. What percentage of the question can be answered with this context?\n\n")
	b.WriteString("Respond ONLY with valid JSON (no markdown):\n")
	b.WriteString("{\n")
	b.WriteString("  \"sufficient\": true or false,\n")
	b.WriteString("  \"coverage\": 0-100,\n")
	b.WriteString("  \"depth\": \"shallow\" or \"moderate\" or \"comprehensive\",\n")
	b.WriteString("  \"reasoning\": \"brief explanation\"\n")
	b.WriteString("}")
	return b.String()
}

// parseArbitration extracts the first JSON object from the model's
// response; models wrap JSON in prose or fences often enough that a
// strict parse of the whole body is not workable.
func parseArbitration(response string) (Ambiguous, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return Ambiguous{}, fmt.Errorf("no JSON object in response")
	}

	var parsed struct {
		Sufficient bool   `json:"sufficient"`
		Coverage   int    `json:"coverage"`
		Depth      string `json:"depth"`
		Reasoning  string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err != nil {
		return Ambiguous{}, fmt.Errorf("malformed arbitration JSON: %w", err)
	}

	return Ambiguous{
		Sufficient: parsed.Sufficient,
		Coverage:   parsed.Coverage,
		Depth:      parsed.Depth,
		Reasoning:  parsed.Reasoning,
	}, nil
}
