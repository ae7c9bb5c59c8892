package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/tessera-search/tessera/internal/config"
)

// degradedQuality is the quality score attached to placeholder vectors.
const degradedQuality = 0.1

// Stats holds the layer's running counters.
type Stats struct {
	TotalRequests int64   `json:"total_requests"`
	Successful    int64   `json:"successful"`
	Failed        int64   `json:"failed"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
	BreakerState  string  `json:"breaker_state"`
	LastError     string  `json:"last_error,omitempty"`
}

// Service wraps a primary Provider with a response cache, a circuit
// breaker, and an ordered list of fallback strategies. All shared state
// is owned here and guarded by s.mu or by the embedded types' own locks.
type Service struct {
	primary   Provider
	alternate Provider // optional, used by the alternate_provider fallback
	cache     *vectorCache
	breaker   *breaker
	fallbacks []config.FallbackMode
	timeout   time.Duration

	mu           sync.Mutex
	total        int64
	successful   int64
	failed       int64
	cacheHits    int64
	cacheMisses  int64
	avgLatencyMS float64
	lastError    string
}

// NewService builds the resilience layer from configuration. alternate
// may be nil, in which case the alternate_provider fallback is skipped.
func NewService(cfg config.EmbeddingConfig, primary, alternate Provider) *Service {
	timeout := time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		primary:   primary,
		alternate: alternate,
		cache:     newVectorCache(cfg.CacheSize, time.Duration(cfg.CacheTTLSec)*time.Second),
		breaker:   newBreaker(cfg.BreakerThreshold, time.Duration(cfg.BreakerCooldownS)*time.Second),
		fallbacks: cfg.Fallbacks,
		timeout:   timeout,
	}
}

// Dimensions returns the primary provider's vector width.
func (s *Service) Dimensions() int { return s.primary.Dimensions() }

// BreakerState exposes the breaker state for health reporting.
func (s *Service) BreakerState() BreakerState { return s.breaker.State() }

// Healthy reports whether the primary provider is reachable and the
// breaker is not open.
func (s *Service) Healthy(ctx context.Context) bool {
	if s.breaker.State() == BreakerOpen {
		return false
	}
	return s.primary.Healthy(ctx)
}

// EmbedText returns a vector for text, serving from cache when possible.
func (s *Service) EmbedText(ctx context.Context, text string) (*Embedding, error) {
	return s.embed(ctx, Input{Text: text})
}

// EmbedImage returns a vector for the image at path.
func (s *Service) EmbedImage(ctx context.Context, path string) (*Embedding, error) {
	return s.embed(ctx, Input{ImagePath: path})
}

func (s *Service) embed(ctx context.Context, in Input) (*Embedding, error) {
	fp, err := fingerprint(in)
	if err != nil {
		return nil, err
	}

	if vec, ok := s.cache.Get(fp); ok {
		s.countCache(true)
		return &Embedding{Vector: vec, Source: "cache", Quality: 1.0, Cached: true}, nil
	}
	s.countCache(false)

	return s.embedMiss(ctx, in, fp)
}

// embedMiss resolves an input already counted as a cache miss.
func (s *Service) embedMiss(ctx context.Context, in Input, fp string) (*Embedding, error) {
	vec, err := s.callPrimary(ctx, in)
	if err == nil {
		s.cache.Put(fp, vec)
		return &Embedding{Vector: vec, Source: s.primary.Name(), Quality: 1.0}, nil
	}

	if emb, ok := s.runFallbacks(ctx, in, fp); ok {
		return emb, nil
	}
	return nil, err
}

// callPrimary performs one breaker-guarded, timed provider call.
func (s *Service) callPrimary(ctx context.Context, in Input) ([]float32, error) {
	if err := s.breaker.Allow(); err != nil {
		s.recordFailure(err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var vec []float32
	var err error
	if in.IsImage() {
		vec, err = s.primary.EmbedImage(ctx, in.ImagePath)
	} else {
		vec, err = s.primary.EmbedText(ctx, in.Text)
	}
	latency := time.Since(start)

	if err != nil {
		s.breaker.RecordFailure()
		s.recordFailure(err)
		return nil, err
	}
	s.breaker.RecordSuccess()
	s.recordSuccess(latency)
	return vec, nil
}

// runFallbacks tries each configured fallback in order and returns the
// first success.
func (s *Service) runFallbacks(ctx context.Context, in Input, fp string) (*Embedding, bool) {
	for _, mode := range s.fallbacks {
		switch mode {
		case config.FallbackAlternateProvider:
			if s.alternate == nil {
				continue
			}
			var vec []float32
			var err error
			if in.IsImage() {
				vec, err = s.alternate.EmbedImage(ctx, in.ImagePath)
			} else {
				vec, err = s.alternate.EmbedText(ctx, in.Text)
			}
			if err == nil {
				s.cache.Put(fp, vec)
				return &Embedding{Vector: vec, Source: s.alternate.Name(), Quality: 0.9}, true
			}

		case config.FallbackCacheOnly:
			if vec, ok := s.cache.GetStale(fp); ok {
				return &Embedding{Vector: vec, Source: "stale_cache", Quality: 0.7, Cached: true}, true
			}

		case config.FallbackDegraded:
			return &Embedding{
				Vector:  s.placeholderVector(fp),
				Source:  "degraded",
				Quality: degradedQuality,
			}, true
		}
	}
	return nil, false
}

// EmbedBatch embeds all inputs with one provider request, falling back
// to bounded-concurrency individual calls if the batch fails. A failed
// individual item yields a placeholder vector rather than failing the
// batch.
func (s *Service) EmbedBatch(ctx context.Context, inputs []Input, concurrency int) ([]Embedding, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	out := make([]Embedding, len(inputs))

	// Serve cached items up front and batch only the misses.
	fps := make([]string, len(inputs))
	var missIdx []int
	for i, in := range inputs {
		fp, err := fingerprint(in)
		if err != nil {
			return nil, err
		}
		fps[i] = fp
		if vec, ok := s.cache.Get(fp); ok {
			s.countCache(true)
			out[i] = Embedding{Vector: vec, Source: "cache", Quality: 1.0, Cached: true}
			continue
		}
		s.countCache(false)
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	missed := make([]Input, len(missIdx))
	for i, idx := range missIdx {
		missed[i] = inputs[idx]
	}

	if vecs, err := s.callPrimaryBatch(ctx, missed); err == nil {
		for i, idx := range missIdx {
			s.cache.Put(fps[idx], vecs[i])
			out[idx] = Embedding{Vector: vecs[i], Source: s.primary.Name(), Quality: 1.0}
		}
		return out, nil
	}

	// Batch failed: embed the misses individually with bounded
	// concurrency, isolating per-item failures.
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, idx := range missIdx {
		idx := idx
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			emb, err := s.embedMiss(ctx, inputs[idx], fps[idx])
			if err != nil {
				out[idx] = Embedding{
					Vector:  s.placeholderVector(fps[idx]),
					Source:  "degraded",
					Quality: degradedQuality,
				}
				return
			}
			out[idx] = *emb
		}()
	}
	wg.Wait()

	return out, nil
}

func (s *Service) callPrimaryBatch(ctx context.Context, inputs []Input) ([][]float32, error) {
	if err := s.breaker.Allow(); err != nil {
		s.recordFailure(err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	vecs, err := s.primary.EmbedBatch(ctx, inputs)
	if err != nil {
		s.breaker.RecordFailure()
		s.recordFailure(err)
		return nil, err
	}
	if len(vecs) != len(inputs) {
		err = fmt.Errorf("provider returned %d vectors, expected %d", len(vecs), len(inputs))
		s.breaker.RecordFailure()
		s.recordFailure(err)
		return nil, err
	}
	s.breaker.RecordSuccess()
	s.recordSuccess(time.Since(start))
	return vecs, nil
}

// placeholderVector derives a deterministic unit vector from the
// fingerprint so degraded results are at least stable across retries.
func (s *Service) placeholderVector(fp string) []float32 {
	dims := s.primary.Dimensions()
	vec := make([]float32, dims)
	sum := sha256.Sum256([]byte(fp))
	var norm float64
	for i := range vec {
		b := sum[i%len(sum)]
		v := float64(b)/255.0 - 0.5
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

// Snapshot returns a copy of the running counters.
func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		TotalRequests: s.total,
		Successful:    s.successful,
		Failed:        s.failed,
		CacheHits:     s.cacheHits,
		CacheMisses:   s.cacheMisses,
		AvgLatencyMS:  s.avgLatencyMS,
		BreakerState:  string(s.breaker.State()),
		LastError:     s.lastError,
	}
	if lookups := s.cacheHits + s.cacheMisses; lookups > 0 {
		stats.CacheHitRate = float64(s.cacheHits) / float64(lookups)
	}
	return stats
}

func (s *Service) recordSuccess(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.successful++
	// Incremental mean over successful calls.
	s.avgLatencyMS += (float64(latency.Milliseconds()) - s.avgLatencyMS) / float64(s.successful)
}

func (s *Service) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.failed++
	s.lastError = err.Error()
}

func (s *Service) countCache(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.cacheHits++
	} else {
		s.cacheMisses++
	}
}

// fingerprint computes the cache key for an input: a content hash for
// text, path plus modification time for images.
func fingerprint(in Input) (string, error) {
	if in.IsImage() {
		info, err := os.Stat(in.ImagePath)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", in.ImagePath, err)
		}
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", in.ImagePath, info.Size(), info.ModTime().UnixNano())))
		return "img:" + hex.EncodeToString(sum[:]), nil
	}
	sum := sha256.Sum256([]byte(in.Text))
	return "txt:" + hex.EncodeToString(sum[:]), nil
}
