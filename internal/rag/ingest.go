package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/scrybe-app/scrybe/internal/store"
	"github.com/scrybe-app/scrybe/internal/transcript"
	"github.com/scrybe-app/scrybe/pkg/models"
)

// Ingest fetches a video's transcript, chunks it, and indexes the
// chunks. Re-ingesting a video overwrites its existing chunks: IDs are
// derived from video and position, so upserts land on the same rows.
func (s *Service) Ingest(ctx context.Context, videoURL string) (videoID, title string, chunkCount int, err error) {
	videoID, err = transcript.ExtractVideoID(videoURL)
	if err != nil {
		return "", "", 0, err
	}

	segments, title, err := s.transcripts.Fetch(ctx, videoURL)
	if err != nil {
		return "", "", 0, err
	}

	chunkCount, err = s.IngestSegments(ctx, videoID, title, segments)
	if err != nil {
		return "", "", 0, err
	}
	return videoID, title, chunkCount, nil
}

// IngestSegments chunks and indexes pre-fetched caption segments, e.g.
// from an uploaded SRT file.
func (s *Service) IngestSegments(ctx context.Context, videoID, title string, segments []models.Segment) (int, error) {
	normalized, err := transcript.Normalize(segments)
	if err != nil {
		return 0, err
	}

	chunks, err := s.chunker.Chunk(normalized, videoID, title)
	if err != nil {
		return 0, fmt.Errorf("failed to chunk transcript: %w", err)
	}

	if err := s.index(ctx, store.Namespace(source, videoID), chunks); err != nil {
		return 0, err
	}

	log.Info().Str("video_id", videoID).Int("chunks", len(chunks)).Msg("Ingested transcript")
	return len(chunks), nil
}

// index embeds and upserts chunks in capped batches. Batches run
// concurrently; each upsert is independent and idempotent by chunk ID.
func (s *Service) index(ctx context.Context, namespace string, chunks []models.Chunk) error {
	batchSize := s.batchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	numBatches := (len(chunks) + batchSize - 1) / batchSize
	errChan := make(chan error, numBatches)
	var wg sync.WaitGroup

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]

		wg.Add(1)
		go func(batch []models.Chunk) {
			defer wg.Done()

			texts := make([]string, len(batch))
			for i, chunk := range batch {
				texts[i] = chunk.Text
			}

			vectors, err := s.client.EmbedBatch(ctx, texts)
			if err != nil {
				errChan <- fmt.Errorf("failed to embed batch: %w", err)
				return
			}
			if err := s.store.Upsert(ctx, namespace, batch, vectors); err != nil {
				errChan <- err
			}
		}(batch)
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}
