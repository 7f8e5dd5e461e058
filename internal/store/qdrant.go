package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"github.com/scrybe-app/scrybe/pkg/models"
)

const collectionName = "transcripts"

// QdrantStore keeps chunk embeddings in a Qdrant collection. All videos
// share one collection; the namespace payload field scopes queries.
type QdrantStore struct {
	client *qdrant.Client
	dim    int
}

func NewQdrantStore(host string, port int, dim int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &QdrantStore{client: client, dim: dim}
	if err := s.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant unreachable: %w", err)
	}
	return s, nil
}

func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		result, err := s.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}, newBackOff())
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// EnsureCollection creates the transcripts collection and the namespace
// payload index if they do not exist yet. Idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == collectionName {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// without this index, namespace filters scan the full collection
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collectionName,
		FieldName:      "namespace",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create namespace index: %w", err)
	}
	return nil
}

// PointID derives a deterministic UUID from a chunk ID so re-ingesting
// a video overwrites its points instead of duplicating them.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func (s *QdrantStore) Upsert(ctx context.Context, namespace string, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != s.dim {
			return fmt.Errorf("chunk %d has %d dimensions, expected %d", i, len(vectors[i]), s.dim)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(chunk.ID())),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id":    chunk.ID(),
				"namespace":   namespace,
				"video_id":    chunk.VideoID,
				"video_title": chunk.VideoTitle,
				"chunk_index": chunk.Index,
				"content":     chunk.Text,
				"offset_ms":   chunk.OffsetMs,
				"duration_ms": chunk.DurationMs,
			}),
		}
	}

	err := backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName,
			Points:         points,
		})
		return err
	}, newBackOff())
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	log.Debug().Int("chunks", len(chunks)).Str("namespace", namespace).Msg("Upserted chunks")
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query has %d dimensions, expected %d", len(vector), s.dim)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("namespace", namespace)},
		},
		Limit:       qdrant.PtrOf(uint64(topK)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	matches := make([]models.Match, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		matches = append(matches, models.Match{
			ID:    payload["chunk_id"].GetStringValue(),
			Score: clampScore(float64(result.Score)),
			Chunk: models.Chunk{
				Text:       payload["content"].GetStringValue(),
				Index:      int(payload["chunk_index"].GetIntegerValue()),
				OffsetMs:   payload["offset_ms"].GetIntegerValue(),
				DurationMs: payload["duration_ms"].GetIntegerValue(),
				VideoID:    payload["video_id"].GetStringValue(),
				VideoTitle: payload["video_title"].GetStringValue(),
			},
		})
	}
	return matches, nil
}

func (s *QdrantStore) Count(ctx context.Context, namespace string) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("namespace", namespace)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(count), nil
}

func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
