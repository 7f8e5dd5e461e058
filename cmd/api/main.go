package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/scrybe-app/scrybe/internal/ai"
	"github.com/scrybe-app/scrybe/internal/config"
	"github.com/scrybe-app/scrybe/internal/rag"
	"github.com/scrybe-app/scrybe/internal/store"
	"github.com/scrybe-app/scrybe/internal/transcript"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Create flagset for configuration
	fs := pflag.NewFlagSet("scrybe-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("store", cfg.Store).Str("log_level", cfg.LogLevel).Msg("starting scrybe api")

	clientConfig, err := buildClientConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to build AI client config: %v", err)
	}

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	dim := c.Dim()
	logger.Info().Int("embedding_dim", dim).Str("embed_model", clientConfig.EmbedModel).Msg("AI client initialized")

	ctx := context.Background()
	st, err := buildStore(ctx, cfg, dim)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}
	defer st.Close()

	fetcher := transcript.NewAPIClient(cfg.TranscriptBaseURL, cfg.TranscriptAPIKey)
	svc := rag.NewService(c, st, fetcher, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	rag.NewHandler(svc).Register(mux)

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

func buildClientConfig(cfg config.Specification) (*ai.ClientConfig, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
		}, nil
	case "vertexai", "google":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}, nil
	case "ollama":
		return &ai.ClientConfig{
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			Host:       cfg.OllamaHost,
			Provider:   ai.ProviderOllama,
		}, nil
	case "stub":
		return &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

func buildStore(ctx context.Context, cfg config.Specification, dim int) (store.VectorStore, error) {
	switch strings.ToLower(cfg.Store) {
	case "postgres":
		st, err := store.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx, dim); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "qdrant":
		st, err := store.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, dim)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureCollection(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}
