package config

// EmbeddingProviderType identifies an embedding provider.
type EmbeddingProviderType string

const (
	EmbeddingOpenAI EmbeddingProviderType = "openai"
	EmbeddingCLIP   EmbeddingProviderType = "clip"
)

// ChunkStrategy selects how extracted text spans are grouped into chunks.
type ChunkStrategy string

const (
	ChunkSemantic  ChunkStrategy = "semantic"
	ChunkParagraph ChunkStrategy = "paragraph"
	ChunkFixed     ChunkStrategy = "fixed"
)

// FallbackMode names one step of the embedding fallback chain.
type FallbackMode string

const (
	FallbackAlternateProvider FallbackMode = "alternate_provider"
	FallbackDegraded          FallbackMode = "degraded"
	FallbackCacheOnly         FallbackMode = "cache_only"
)

// WatchConfig controls directory discovery and file admission policy.
type WatchConfig struct {
	Dirs          []string `yaml:"dirs" koanf:"dirs"`
	Include       []string `yaml:"include" koanf:"include"`
	Exclude       []string `yaml:"exclude" koanf:"exclude"`
	MaxFileSizeMB int64    `yaml:"max_file_size_mb" koanf:"max_file_size_mb"`
}

// QueueConfig tunes the ingestion queue and its dispatch loop.
type QueueConfig struct {
	Capacity          int      `yaml:"capacity" koanf:"capacity"`
	MaxConcurrentJobs int      `yaml:"max_concurrent_jobs" koanf:"max_concurrent_jobs"`
	DispatchTickMS    int      `yaml:"dispatch_tick_ms" koanf:"dispatch_tick_ms"`
	MaxRetries        int      `yaml:"max_retries" koanf:"max_retries"`
	RetryDelayMS      int      `yaml:"retry_delay_ms" koanf:"retry_delay_ms"`
	BackoffJitter     bool     `yaml:"backoff_jitter" koanf:"backoff_jitter"`
	ShutdownGraceSec  int      `yaml:"shutdown_grace_sec" koanf:"shutdown_grace_sec"`
	DedupEnabled      bool     `yaml:"dedup_enabled" koanf:"dedup_enabled"`
	WebhookURLs       []string `yaml:"webhook_urls" koanf:"webhook_urls"`
}

// PipelineConfig tunes chunking, batching, and relationship inference.
type PipelineConfig struct {
	Strategy            ChunkStrategy `yaml:"strategy" koanf:"strategy"`
	MinChunkSize        int           `yaml:"min_chunk_size" koanf:"min_chunk_size"`
	MaxChunkSize        int           `yaml:"max_chunk_size" koanf:"max_chunk_size"`
	FixedWindowSize     int           `yaml:"fixed_window_size" koanf:"fixed_window_size"`
	FixedOverlap        int           `yaml:"fixed_overlap" koanf:"fixed_overlap"`
	EmbedBatchSize      int           `yaml:"embed_batch_size" koanf:"embed_batch_size"`
	EmbedConcurrency    int           `yaml:"embed_concurrency" koanf:"embed_concurrency"`
	ProximityThreshold  float64       `yaml:"proximity_threshold" koanf:"proximity_threshold"`
	SimilarityThreshold float64       `yaml:"similarity_threshold" koanf:"similarity_threshold"`
}

// EmbeddingConfig configures providers and the resilience layer around them.
type EmbeddingConfig struct {
	Provider         EmbeddingProviderType `yaml:"provider" koanf:"provider"`
	Model            string                `yaml:"model" koanf:"model"`
	CLIPEndpoint     string                `yaml:"clip_endpoint" koanf:"clip_endpoint"`
	RequestTimeoutMS int                   `yaml:"request_timeout_ms" koanf:"request_timeout_ms"`
	CacheSize        int                   `yaml:"cache_size" koanf:"cache_size"`
	CacheTTLSec      int                   `yaml:"cache_ttl_sec" koanf:"cache_ttl_sec"`
	BreakerThreshold int                   `yaml:"breaker_threshold" koanf:"breaker_threshold"`
	BreakerCooldownS int                   `yaml:"breaker_cooldown_sec" koanf:"breaker_cooldown_sec"`
	Fallbacks        []FallbackMode        `yaml:"fallbacks" koanf:"fallbacks"`
}

// SearchConfig tunes fusion, post-processing, and the query cache.
type SearchConfig struct {
	KeywordWeight    float64 `yaml:"keyword_weight" koanf:"keyword_weight"`
	SemanticWeight   float64 `yaml:"semantic_weight" koanf:"semantic_weight"`
	CrossModalWeight float64 `yaml:"cross_modal_weight" koanf:"cross_modal_weight"`
	RRFConstant      int     `yaml:"rrf_constant" koanf:"rrf_constant"`
	MinSimilarity    float64 `yaml:"min_similarity" koanf:"min_similarity"`
	MMRLambda        float64 `yaml:"mmr_lambda" koanf:"mmr_lambda"`
	SnippetLength    int     `yaml:"snippet_length" koanf:"snippet_length"`
	CacheSize        int     `yaml:"cache_size" koanf:"cache_size"`
	CacheTTLSec      int     `yaml:"cache_ttl_sec" koanf:"cache_ttl_sec"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// Config is the top-level tessera configuration, corresponding to .tessera.yml.
type Config struct {
	DataDir           string          `yaml:"data_dir" koanf:"data_dir"`
	ExtractorEndpoint string          `yaml:"extractor_endpoint" koanf:"extractor_endpoint"`
	Watch             WatchConfig     `yaml:"watch" koanf:"watch"`
	Queue             QueueConfig     `yaml:"queue" koanf:"queue"`
	Pipeline          PipelineConfig  `yaml:"pipeline" koanf:"pipeline"`
	Embedding         EmbeddingConfig `yaml:"embedding" koanf:"embedding"`
	Search            SearchConfig    `yaml:"search" koanf:"search"`
	Server            ServerConfig    `yaml:"server" koanf:"server"`
}
