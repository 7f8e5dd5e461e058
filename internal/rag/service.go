// Package rag runs the request pipeline: ingest a video's transcript,
// retrieve and judge context for a question, and pick the prompt that
// matches the verdict.
package rag

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/scrybe-app/scrybe/internal/ai"
	"github.com/scrybe-app/scrybe/internal/chunker"
	"github.com/scrybe-app/scrybe/internal/config"
	"github.com/scrybe-app/scrybe/internal/prompt"
	"github.com/scrybe-app/scrybe/internal/retrieval"
	"github.com/scrybe-app/scrybe/internal/store"
	"github.com/scrybe-app/scrybe/internal/sufficiency"
	"github.com/scrybe-app/scrybe/internal/transcript"
	"github.com/scrybe-app/scrybe/pkg/models"
)

const (
	answerTemperature  float32 = 0.4
	summaryTemperature float32 = 0.1

	source = "youtube"

	noMatchSuggestion = "Try asking about a different topic that's covered in the video, or rephrase your question using different keywords."
)

// Service wires the pipeline stages together. One Service serves all
// requests; each call is independent.
type Service struct {
	client      ai.Client
	store       store.VectorStore
	transcripts transcript.Fetcher
	chunker     *chunker.Chunker
	controller  *retrieval.Controller
	classifier  *sufficiency.Classifier
	batchSize   int
}

func NewService(client ai.Client, st store.VectorStore, transcripts transcript.Fetcher, cfg config.Specification) *Service {
	return &Service{
		client:      client,
		store:       st,
		transcripts: transcripts,
		chunker:     chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		controller:  retrieval.NewController(cfg.Retrieval),
		classifier:  sufficiency.NewClassifier(client, cfg.Sufficiency),
		batchSize:   cfg.Chunking.BatchSize,
	}
}

// Answer is the outcome of the query pipeline. Exactly one of Terminal
// and Prompt is set: Terminal responses go back as JSON, prompts get
// streamed through the generation model.
type Answer struct {
	Terminal *models.QueryResponse
	Prompt   string
	Strategy string
	Quality  string
}

// Answer runs retrieval and sufficiency classification for a question
// against one video's chunks.
func (s *Service) Answer(ctx context.Context, query, videoID string) (*Answer, error) {
	k := s.controller.KForQuery(query)
	if k == 0 {
		return &Answer{Terminal: &models.QueryResponse{
			Answer: "Invalid query",
			Metadata: models.QueryMetadata{
				ContextQuality: "insufficient",
				Strategy:       "error",
			},
		}}, nil
	}

	vector, err := s.client.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	namespace := store.Namespace(source, videoID)
	matches, err := s.store.Query(ctx, namespace, vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	if len(matches) == 0 {
		return &Answer{Terminal: terminalNoContent("No relevant chunks found")}, nil
	}

	kept := s.controller.Filter(matches)
	if len(kept) == 0 {
		answer := fmt.Sprintf("I couldn't find any relevant information in this video related to %q. This topic doesn't appear to be covered in the video transcript.", query)
		return &Answer{Terminal: terminalNoContent(answer)}, nil
	}

	retrieval.SortChronological(kept)
	contextBlock := retrieval.BuildContext(kept)
	metrics := retrieval.Metrics(query, kept, contextBlock)

	verdict, err := s.classifier.Classify(ctx, query, contextBlock, metrics)
	if err != nil {
		return nil, err
	}

	switch v := verdict.(type) {
	case sufficiency.Insufficient:
		return &Answer{Terminal: terminalInsufficient(query, v.Reason, metrics)}, nil
	case sufficiency.Sufficient:
		return &Answer{
			Prompt:   prompt.StrictAnswer(contextBlock, query),
			Strategy: "strict_rag",
			Quality:  "sufficient",
		}, nil
	case sufficiency.Ambiguous:
		log.Debug().Bool("sufficient", v.Sufficient).Int("coverage", v.Coverage).
			Str("depth", v.Depth).Str("reasoning", v.Reasoning).Msg("Arbitrated ambiguous context")
		if v.Sufficient {
			return &Answer{
				Prompt:   prompt.StrictAnswer(contextBlock, query),
				Strategy: "strict_rag",
				Quality:  "ambiguous",
			}, nil
		}
		return &Answer{
			Prompt:   prompt.HybridAnswer(contextBlock, query),
			Strategy: "hybrid",
			Quality:  "ambiguous",
		}, nil
	default:
		return nil, fmt.Errorf("unexpected verdict type %T", verdict)
	}
}

// Summary holds the resolved inputs for a summary stream.
type Summary struct {
	VideoID string
	Prompt  string
}

// PrepareSummary resolves the video, sizes K from the video's length,
// retrieves in summary mode, and builds the note-taker prompt.
func (s *Service) PrepareSummary(ctx context.Context, req models.SummaryRequest) (*Summary, error) {
	videoID, title, chunkCount, err := s.Ingest(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	k := s.controller.KForSummary(chunkCount, req.Depth)
	retrievalQuery := prompt.SummaryRetrievalQuery(title)

	vector, err := s.client.Embed(ctx, retrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed summary query: %w", err)
	}

	namespace := store.Namespace(source, videoID)
	matches, err := s.store.Query(ctx, namespace, vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	if len(matches) == 0 {
		return nil, transcript.ErrNotFound
	}

	retrieval.SortChronological(matches)
	notes := buildSummaryNotes(matches, req.IncludeTimestamps)

	return &Summary{
		VideoID: videoID,
		Prompt:  prompt.Summary(notes, title, req.Depth, req.Style, req.IncludeTimestamps),
	}, nil
}

// buildSummaryNotes renders matches for the summary prompt. Unlike the
// answer path, timestamps are attached only when the user asked for
// them.
func buildSummaryNotes(matches []models.Match, includeTimestamps bool) string {
	if includeTimestamps {
		return retrieval.BuildContext(matches)
	}
	stripped := make([]models.Match, len(matches))
	for i, m := range matches {
		stripped[i] = m
		stripped[i].Chunk.OffsetMs = 0
	}
	return retrieval.BuildContext(stripped)
}

// Stream pushes the generated answer through fn fragment by fragment.
func (s *Service) Stream(ctx context.Context, promptText string, temperature float32, fn func(string) error) error {
	return s.client.Stream(ctx, promptText, temperature, fn)
}

func terminalNoContent(answer string) *models.QueryResponse {
	return &models.QueryResponse{
		Answer: answer,
		Metadata: models.QueryMetadata{
			ContextQuality: "insufficient",
			Strategy:       "error",
			Metrics:        &models.RetrievalMetrics{},
			Suggestion:     noMatchSuggestion,
		},
	}
}

func terminalInsufficient(query, reason string, metrics models.RetrievalMetrics) *models.QueryResponse {
	suggestion := "Try rephrasing your question or asking about a topic that's more central to the video's content."
	if metrics.ChunkCount > 0 {
		suggestion = "The video touches on this briefly. Try asking a more specific question about what was mentioned, or explore a different aspect of the video."
	}

	rounded := metrics
	rounded.AvgScore = round2(metrics.AvgScore)
	rounded.MaxScore = round2(metrics.MaxScore)
	rounded.KeywordCoverage = round2(metrics.KeywordCoverage)

	return &models.QueryResponse{
		Answer: fmt.Sprintf("I couldn't find sufficient information in this video to properly answer your question about %q. The video %s.", query, reason),
		Metadata: models.QueryMetadata{
			ContextQuality: "insufficient",
			Strategy:       "error",
			Metrics:        &rounded,
			Suggestion:     suggestion,
		},
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
