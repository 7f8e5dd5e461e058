package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"

	"github.com/scrybe-app/scrybe/pkg/models"
)

// PostgresStore keeps chunk embeddings in a pgvector-enabled table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the chunk table and its indexes. dim must match the
// embedding model's output size.
func (s *PostgresStore) Migrate(ctx context.Context, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS transcript_chunks (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			video_id TEXT NOT NULL,
			video_title TEXT NOT NULL DEFAULT '',
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			offset_ms BIGINT NOT NULL,
			duration_ms BIGINT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dim),
		`CREATE INDEX IF NOT EXISTS idx_transcript_chunks_namespace ON transcript_chunks (namespace)`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_chunks_embedding ON transcript_chunks
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, namespace string, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		batch.Queue(`INSERT INTO transcript_chunks
			(id, namespace, video_id, video_title, chunk_index, content, offset_ms, duration_ms, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				namespace = EXCLUDED.namespace,
				video_title = EXCLUDED.video_title,
				content = EXCLUDED.content,
				offset_ms = EXCLUDED.offset_ms,
				duration_ms = EXCLUDED.duration_ms,
				embedding = EXCLUDED.embedding`,
			chunk.ID(), namespace, chunk.VideoID, chunk.VideoTitle, chunk.Index,
			chunk.Text, chunk.OffsetMs, chunk.DurationMs, pgvector.NewVector(vectors[i]))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert chunk: %w", err)
		}
	}
	log.Debug().Int("chunks", len(chunks)).Str("namespace", namespace).Msg("Upserted chunks")
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error) {
	rows, err := s.pool.Query(ctx, `SELECT
			id, video_id, video_title, chunk_index, content, offset_ms, duration_ms,
			LEAST(GREATEST(1.0 - (embedding <=> $1), 0), 1) AS score
		FROM transcript_chunks
		WHERE namespace = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(vector), namespace, topK)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.Chunk.VideoID, &m.Chunk.VideoTitle, &m.Chunk.Index,
			&m.Chunk.Text, &m.Chunk.OffsetMs, &m.Chunk.DurationMs, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Score = clampScore(m.Score)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matches: %w", err)
	}
	return matches, nil
}

func (s *PostgresStore) Count(ctx context.Context, namespace string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transcript_chunks WHERE namespace = $1`, namespace).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
