// Package store persists chunk embeddings and serves similarity
// queries. Two backends are supported: Postgres with pgvector and
// Qdrant.
package store

import (
	"context"
	"fmt"

	"github.com/scrybe-app/scrybe/pkg/models"
)

// VectorStore is the index surface the retrieval pipeline depends on.
// Scores returned by Query are similarity in [0, 1], descending.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, chunks []models.Chunk, vectors [][]float32) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error)
	Count(ctx context.Context, namespace string) (int, error)
	Close() error
}

// Namespace scopes a video's chunks within the shared index, e.g.
// "youtube-dQw4w9WgXcQ".
func Namespace(source, videoID string) string {
	return fmt.Sprintf("%s-%s", source, videoID)
}

// clampScore forces a backend similarity score into [0, 1] so the
// sufficiency thresholds can rely on the range regardless of which
// index produced it.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
