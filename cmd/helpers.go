package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tessera-search/tessera/internal/config"
	"github.com/tessera-search/tessera/internal/embeddings"
	"github.com/tessera-search/tessera/internal/extractor"
	"github.com/tessera-search/tessera/internal/ingest"
	"github.com/tessera-search/tessera/internal/keyword"
	"github.com/tessera-search/tessera/internal/pipeline"
	"github.com/tessera-search/tessera/internal/search"
	"github.com/tessera-search/tessera/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `tessera init` to create a config file", err)
	}
	return cfg, nil
}

// createProviders builds the primary embedding provider plus an
// alternate for the fallback chain when the other provider is also
// configured.
func createProviders(cfg *config.Config) (primary, alternate embeddings.Provider, err error) {
	timeout := time.Duration(cfg.Embedding.RequestTimeoutMS) * time.Millisecond

	newOpenAI := func() (embeddings.Provider, error) {
		apiKey := os.Getenv(config.APIKeyEnvVar(config.EmbeddingOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		model := embeddings.OpenAIModel(cfg.Embedding.Model)
		if cfg.Embedding.Provider != config.EmbeddingOpenAI {
			model = embeddings.ModelTextEmbedding3Small
		}
		return embeddings.NewOpenAIProvider(apiKey, model), nil
	}
	newCLIP := func() (embeddings.Provider, error) {
		if cfg.Embedding.CLIPEndpoint == "" {
			return nil, fmt.Errorf("embedding.clip_endpoint is required for CLIP embeddings")
		}
		return embeddings.NewCLIPProvider(cfg.Embedding.CLIPEndpoint, cfg.Embedding.Model, timeout), nil
	}

	switch cfg.Embedding.Provider {
	case config.EmbeddingCLIP:
		primary, err = newCLIP()
		if err != nil {
			return nil, nil, err
		}
		if os.Getenv(config.APIKeyEnvVar(config.EmbeddingOpenAI)) != "" {
			alternate, _ = newOpenAI()
		}
	case config.EmbeddingOpenAI:
		primary, err = newOpenAI()
		if err != nil {
			return nil, nil, err
		}
		if cfg.Embedding.CLIPEndpoint != "" {
			alternate, _ = newCLIP()
		}
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	return primary, alternate, nil
}

// app holds the wired component graph shared by serve, ingest, and
// search commands.
type app struct {
	cfg      *config.Config
	extract  extractor.Extractor
	embedder *embeddings.Service
	store    *vectordb.ChromemStore
	index    *keyword.Index
	pipe     *pipeline.Pipeline
	bus      *ingest.Bus
	queue    *ingest.Queue
	engine   *search.Engine
}

// buildApp wires the full component graph from config and loads any
// persisted state from the data directory.
func buildApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	primary, alternate, err := createProviders(cfg)
	if err != nil {
		return nil, err
	}
	embedder := embeddings.NewService(cfg.Embedding, primary, alternate)

	store, err := vectordb.NewChromemStore()
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	if err := store.Load(context.Background(), cfg.DataDir); err != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "Warning: no persisted vectors loaded: %v\n", err)
		}
	}

	index, err := keyword.Open(filepath.Join(cfg.DataDir, "keyword.db"))
	if err != nil {
		return nil, fmt.Errorf("opening keyword index: %w", err)
	}

	extract := extractor.NewDispatch(extractor.NewClient(cfg.ExtractorEndpoint))
	pipe := pipeline.New(extract, embedder, store, index, cfg.Pipeline)

	fingerprints, err := ingest.LoadFingerprints(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("loading fingerprint cache: %w", err)
	}

	bus := ingest.NewBus()
	queue := ingest.NewQueue(cfg.Queue, pipe, fingerprints, ingest.NewPolicy(cfg.Watch), bus)
	engine := search.NewEngine(embedder, store, index, cfg.Search)

	return &app{
		cfg:      cfg,
		extract:  extract,
		embedder: embedder,
		store:    store,
		index:    index,
		pipe:     pipe,
		bus:      bus,
		queue:    queue,
		engine:   engine,
	}, nil
}

// Close persists the vector store and closes the keyword index.
func (a *app) Close() error {
	if err := a.store.Persist(context.Background(), a.cfg.DataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: persisting vector store: %v\n", err)
	}
	return a.index.Close()
}
