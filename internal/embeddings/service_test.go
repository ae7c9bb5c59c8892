package embeddings

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessera-search/tessera/internal/config"
)

// mockProvider counts calls and fails on demand.
type mockProvider struct {
	name      string
	dims      int
	fail      atomic.Bool
	failBatch atomic.Bool
	calls     atomic.Int64
	healthy   bool
}

func newMockProvider(name string, dims int) *mockProvider {
	return &mockProvider{name: name, dims: dims, healthy: true}
}

func (m *mockProvider) vector(seed float32) []float32 {
	vec := make([]float32, m.dims)
	for i := range vec {
		vec[i] = seed
	}
	return vec
}

func (m *mockProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.fail.Load() {
		return nil, errors.New("provider unavailable")
	}
	return m.vector(float32(len(text))), nil
}

func (m *mockProvider) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	m.calls.Add(1)
	if m.fail.Load() {
		return nil, errors.New("provider unavailable")
	}
	return m.vector(float32(len(path))), nil
}

func (m *mockProvider) EmbedBatch(ctx context.Context, inputs []Input) ([][]float32, error) {
	m.calls.Add(1)
	if m.fail.Load() || m.failBatch.Load() {
		return nil, errors.New("provider unavailable")
	}
	vecs := make([][]float32, len(inputs))
	for i, in := range inputs {
		vecs[i] = m.vector(float32(len(in.Text)))
	}
	return vecs, nil
}

func (m *mockProvider) Dimensions() int                  { return m.dims }
func (m *mockProvider) Name() string                     { return m.name }
func (m *mockProvider) Healthy(ctx context.Context) bool { return m.healthy }

func testServiceConfig(fallbacks ...config.FallbackMode) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		RequestTimeoutMS: 1000,
		CacheSize:        32,
		CacheTTLSec:      60,
		BreakerThreshold: 3,
		BreakerCooldownS: 60,
		Fallbacks:        fallbacks,
	}
}

func TestEmbedTextCachesResult(t *testing.T) {
	primary := newMockProvider("primary", 4)
	svc := NewService(testServiceConfig(), primary, nil)

	first, err := svc.EmbedText(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	if first.Cached || first.Source != "primary" {
		t.Errorf("first call: cached=%v source=%s, want fresh primary result", first.Cached, first.Source)
	}

	second, err := svc.EmbedText(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("EmbedText (cached): %v", err)
	}
	if !second.Cached {
		t.Error("second identical call should be served from cache")
	}
	if got := primary.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
}

func TestBreakerFailsFastWithoutProviderCalls(t *testing.T) {
	primary := newMockProvider("primary", 4)
	primary.fail.Store(true)
	svc := NewService(testServiceConfig(), primary, nil)

	// Trip the breaker with distinct inputs so the cache never hits.
	for i := 0; i < 3; i++ {
		if _, err := svc.EmbedText(context.Background(), string(rune('a'+i))); err == nil {
			t.Fatal("expected provider failure")
		}
	}
	if got := svc.BreakerState(); got != BreakerOpen {
		t.Fatalf("breaker state = %s, want open after threshold failures", got)
	}

	before := primary.calls.Load()
	_, err := svc.EmbedText(context.Background(), "another input")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if primary.calls.Load() != before {
		t.Error("open breaker must fail fast without calling the provider")
	}
}

func TestAlternateProviderFallback(t *testing.T) {
	primary := newMockProvider("primary", 4)
	primary.fail.Store(true)
	alternate := newMockProvider("alternate", 4)
	svc := NewService(testServiceConfig(config.FallbackAlternateProvider), primary, alternate)

	emb, err := svc.EmbedText(context.Background(), "text")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	if emb.Source != "alternate" {
		t.Errorf("source = %s, want alternate", emb.Source)
	}
	if emb.Quality >= 1.0 {
		t.Errorf("fallback quality = %f, want below 1.0", emb.Quality)
	}
}

func TestCacheOnlyFallbackServesStale(t *testing.T) {
	primary := newMockProvider("primary", 4)
	svc := NewService(testServiceConfig(config.FallbackCacheOnly), primary, nil)

	// Populate the cache, then force expiry and provider failure.
	if _, err := svc.EmbedText(context.Background(), "doc"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc.cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	primary.fail.Store(true)

	emb, err := svc.EmbedText(context.Background(), "doc")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	if emb.Source != "stale_cache" {
		t.Errorf("source = %s, want stale_cache", emb.Source)
	}
}

func TestDegradedFallbackIsDeterministic(t *testing.T) {
	primary := newMockProvider("primary", 8)
	primary.fail.Store(true)
	svc := NewService(testServiceConfig(config.FallbackDegraded), primary, nil)

	a, err := svc.EmbedText(context.Background(), "same input")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	b, err := svc.EmbedText(context.Background(), "same input")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}

	if a.Source != "degraded" || a.Quality != degradedQuality {
		t.Errorf("source=%s quality=%f, want degraded placeholder", a.Source, a.Quality)
	}
	for i := range a.Vector {
		if a.Vector[i] != b.Vector[i] {
			t.Fatal("placeholder vectors must be deterministic for the same input")
		}
	}
}

func TestNoFallbackReturnsPrimaryError(t *testing.T) {
	primary := newMockProvider("primary", 4)
	primary.fail.Store(true)
	svc := NewService(testServiceConfig(), primary, nil)

	if _, err := svc.EmbedText(context.Background(), "x"); err == nil {
		t.Fatal("expected the primary error with no fallbacks configured")
	}
}

func TestEmbedBatchMixesCacheAndProvider(t *testing.T) {
	primary := newMockProvider("primary", 4)
	svc := NewService(testServiceConfig(), primary, nil)

	if _, err := svc.EmbedText(context.Background(), "aaa"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := svc.EmbedBatch(context.Background(), []Input{{Text: "aaa"}, {Text: "bbbb"}}, 2)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(out))
	}
	if !out[0].Cached {
		t.Error("first item should be a cache hit")
	}
	if out[1].Cached {
		t.Error("second item should come from the provider")
	}
}

func TestEmbedBatchDegradesPerItemOnTotalFailure(t *testing.T) {
	primary := newMockProvider("primary", 4)
	primary.fail.Store(true)
	svc := NewService(testServiceConfig(config.FallbackDegraded), primary, nil)

	out, err := svc.EmbedBatch(context.Background(), []Input{{Text: "a"}, {Text: "b"}}, 2)
	if err != nil {
		t.Fatalf("EmbedBatch must not fail when items degrade: %v", err)
	}
	for i, emb := range out {
		if emb.Source != "degraded" {
			t.Errorf("item %d source = %s, want degraded", i, emb.Source)
		}
		if len(emb.Vector) != 4 {
			t.Errorf("item %d vector width = %d, want 4", i, len(emb.Vector))
		}
	}
}

func TestEmbedBatchIndividualFallbackCountsMissesOnce(t *testing.T) {
	primary := newMockProvider("primary", 4)
	primary.failBatch.Store(true) // batch path fails, individual calls succeed
	svc := NewService(testServiceConfig(), primary, nil)

	out, err := svc.EmbedBatch(context.Background(), []Input{{Text: "aa"}, {Text: "bbb"}, {Text: "cccc"}}, 2)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, emb := range out {
		if emb.Source != "primary" {
			t.Errorf("item %d source = %s, want primary via individual calls", i, emb.Source)
		}
	}

	stats := svc.Snapshot()
	if stats.CacheMisses != 3 {
		t.Errorf("misses = %d, want each item counted once", stats.CacheMisses)
	}
	if stats.CacheHits != 0 {
		t.Errorf("hits = %d, want 0", stats.CacheHits)
	}
}

func TestSnapshotCounters(t *testing.T) {
	primary := newMockProvider("primary", 4)
	svc := NewService(testServiceConfig(), primary, nil)

	svc.EmbedText(context.Background(), "one")
	svc.EmbedText(context.Background(), "one") // cache hit
	primary.fail.Store(true)
	svc.EmbedText(context.Background(), "two")

	stats := svc.Snapshot()
	if stats.Successful != 1 || stats.Failed != 1 {
		t.Errorf("successful=%d failed=%d, want 1 and 1", stats.Successful, stats.Failed)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 2 {
		t.Errorf("hits=%d misses=%d, want 1 and 2", stats.CacheHits, stats.CacheMisses)
	}
	if stats.LastError == "" {
		t.Error("last error should be recorded")
	}
}
