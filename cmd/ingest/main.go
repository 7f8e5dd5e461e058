package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/karrick/godirwalk"
	"github.com/spf13/pflag"

	"github.com/scrybe-app/scrybe/internal/ai"
	"github.com/scrybe-app/scrybe/internal/config"
	"github.com/scrybe-app/scrybe/internal/rag"
	"github.com/scrybe-app/scrybe/internal/store"
	"github.com/scrybe-app/scrybe/internal/transcript"
)

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("scrybe-ingest", pflag.ExitOnError)
	videoURL := fs.String("url", "", "YouTube video URL to ingest")
	captionsDir := fs.String("captions-dir", "", "directory of .srt caption files to ingest")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	if *videoURL == "" && *captionsDir == "" {
		log.Fatal("either --url or --captions-dir is required")
	}

	provider := strings.ToLower(cfg.Provider)
	log.Printf("using provider: %s", provider)
	var clientConfig *ai.ClientConfig
	switch provider {
	case "openai":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
		}
	case "vertexai":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}
	case "ollama":
		clientConfig = &ai.ClientConfig{
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			Host:       cfg.OllamaHost,
			Provider:   ai.ProviderOllama,
		}
	case "stub":
		clientConfig = &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}
	default:
		log.Fatalf("unsupported provider: %s", provider)
	}

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatal(err)
	}
	if c.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}

	ctx := context.Background()

	var st store.VectorStore
	switch strings.ToLower(cfg.Store) {
	case "postgres":
		ps, err := store.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			log.Fatal(err)
		}
		if err := ps.Migrate(ctx, c.Dim()); err != nil {
			log.Fatal(err)
		}
		st = ps
	case "qdrant":
		qs, err := store.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, c.Dim())
		if err != nil {
			log.Fatal(err)
		}
		if err := qs.EnsureCollection(ctx); err != nil {
			log.Fatal(err)
		}
		st = qs
	default:
		log.Fatalf("unsupported store: %s", cfg.Store)
	}
	defer st.Close()

	fetcher := transcript.NewAPIClient(cfg.TranscriptBaseURL, cfg.TranscriptAPIKey)
	svc := rag.NewService(c, st, fetcher, cfg)

	if *videoURL != "" {
		videoID, title, count, err := svc.Ingest(ctx, *videoURL)
		if err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
		log.Printf("ingested %s (%q): %d chunks", videoID, title, count)
	}

	if *captionsDir != "" {
		if err := ingestCaptions(ctx, svc, *captionsDir); err != nil {
			log.Fatal(err)
		}
	}
}

// ingestCaptions walks dir and ingests every .srt file. The file's base
// name doubles as video ID and title.
func ingestCaptions(ctx context.Context, svc *rag.Service, dir string) error {
	return godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || !strings.EqualFold(filepath.Ext(path), ".srt") {
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			segments, err := transcript.ParseSRT(string(data))
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			count, err := svc.IngestSegments(ctx, name, name, segments)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			log.Printf("ingested %s: %d chunks", path, count)
			return nil
		},
		Unsorted: true,
	})
}
