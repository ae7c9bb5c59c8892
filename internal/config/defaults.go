package config

// DefaultExcludes are glob patterns skipped during discovery by default.
var DefaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.tmp",
	"**/*.part",
	"**/~$*",
	"**/.DS_Store",
}

// DefaultIncludes are the document extensions watched by default.
var DefaultIncludes = []string{
	"**/*.pdf",
	"**/*.docx",
	"**/*.md",
	"**/*.txt",
	"**/*.png",
	"**/*.jpg",
	"**/*.jpeg",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:           ".tessera",
		ExtractorEndpoint: "http://localhost:8081",
		Watch: WatchConfig{
			Dirs:          []string{"."},
			Include:       DefaultIncludes,
			Exclude:       DefaultExcludes,
			MaxFileSizeMB: 50,
		},
		Queue: QueueConfig{
			Capacity:          500,
			MaxConcurrentJobs: 3,
			DispatchTickMS:    500,
			MaxRetries:        3,
			RetryDelayMS:      5000,
			BackoffJitter:     false,
			ShutdownGraceSec:  30,
			DedupEnabled:      true,
		},
		Pipeline: PipelineConfig{
			Strategy:            ChunkSemantic,
			MinChunkSize:        100,
			MaxChunkSize:        1000,
			FixedWindowSize:     800,
			FixedOverlap:        100,
			EmbedBatchSize:      16,
			EmbedConcurrency:    4,
			ProximityThreshold:  150,
			SimilarityThreshold: 0.85,
		},
		Embedding: EmbeddingConfig{
			Provider:         EmbeddingCLIP,
			Model:            "clip-vit-b-32",
			CLIPEndpoint:     "http://localhost:8082",
			RequestTimeoutMS: 30000,
			CacheSize:        2048,
			CacheTTLSec:      3600,
			BreakerThreshold: 5,
			BreakerCooldownS: 60,
			Fallbacks: []FallbackMode{
				FallbackAlternateProvider,
				FallbackCacheOnly,
				FallbackDegraded,
			},
		},
		Search: SearchConfig{
			KeywordWeight:    1.0,
			SemanticWeight:   1.0,
			CrossModalWeight: 0.8,
			RRFConstant:      60,
			MinSimilarity:    0.3,
			MMRLambda:        0.7,
			SnippetLength:    200,
			CacheSize:        256,
			CacheTTLSec:      300,
		},
		Server: ServerConfig{
			Port:     8080,
			AllowAll: false,
		},
	}
}
