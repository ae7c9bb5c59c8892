package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (TESSERA_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: TESSERA_SERVER.PORT -> server.port, etc.
	// Underscores map to section separators via the double-underscore convention.
	if err := k.Load(env.Provider("TESSERA_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "TESSERA_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized embedding provider values.
var validProviders = map[EmbeddingProviderType]bool{
	EmbeddingOpenAI: true,
	EmbeddingCLIP:   true,
}

// validStrategies is the set of recognized chunking strategy values.
var validStrategies = map[ChunkStrategy]bool{
	ChunkSemantic:  true,
	ChunkParagraph: true,
	ChunkFixed:     true,
}

// validFallbacks is the set of recognized fallback mode values.
var validFallbacks = map[FallbackMode]bool{
	FallbackAlternateProvider: true,
	FallbackDegraded:          true,
	FallbackCacheOnly:         true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if len(c.Watch.Dirs) == 0 {
		return fmt.Errorf("watch.dirs must name at least one directory")
	}
	if c.Watch.MaxFileSizeMB <= 0 {
		return fmt.Errorf("watch.max_file_size_mb must be positive")
	}

	if c.Queue.Capacity < 1 {
		return fmt.Errorf("queue.capacity must be at least 1")
	}
	if c.Queue.MaxConcurrentJobs < 1 {
		return fmt.Errorf("queue.max_concurrent_jobs must be at least 1")
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries must be non-negative")
	}

	if !validStrategies[c.Pipeline.Strategy] {
		return fmt.Errorf("invalid pipeline.strategy %q: must be one of semantic, paragraph, fixed", c.Pipeline.Strategy)
	}
	if c.Pipeline.MinChunkSize < 1 || c.Pipeline.MaxChunkSize < c.Pipeline.MinChunkSize {
		return fmt.Errorf("pipeline chunk sizes invalid: min=%d max=%d", c.Pipeline.MinChunkSize, c.Pipeline.MaxChunkSize)
	}
	if c.Pipeline.FixedOverlap >= c.Pipeline.FixedWindowSize {
		return fmt.Errorf("pipeline.fixed_overlap must be smaller than fixed_window_size")
	}
	if c.Pipeline.SimilarityThreshold < 0 || c.Pipeline.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline.similarity_threshold must be within [0, 1]")
	}

	if !validProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding.provider %q: must be one of openai, clip", c.Embedding.Provider)
	}
	if c.Embedding.BreakerThreshold < 1 {
		return fmt.Errorf("embedding.breaker_threshold must be at least 1")
	}
	for _, f := range c.Embedding.Fallbacks {
		if !validFallbacks[f] {
			return fmt.Errorf("invalid embedding fallback %q", f)
		}
	}

	if c.Search.RRFConstant < 1 {
		return fmt.Errorf("search.rrf_constant must be at least 1")
	}
	if c.Search.MMRLambda < 0 || c.Search.MMRLambda > 1 {
		return fmt.Errorf("search.mmr_lambda must be within [0, 1]")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given embedding provider.
func APIKeyEnvVar(provider EmbeddingProviderType) string {
	switch provider {
	case EmbeddingOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
