package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tessera-search/tessera/internal/config"
	"github.com/tessera-search/tessera/internal/embeddings"
	"github.com/tessera-search/tessera/internal/keyword"
	"github.com/tessera-search/tessera/internal/node"
	"github.com/tessera-search/tessera/internal/vectordb"
)

// stubProvider returns fixed vectors keyed by topic words so tests can
// steer semantic similarity deterministically.
type stubProvider struct {
	fail bool
}

func (p *stubProvider) topicVector(s string) []float32 {
	switch {
	case strings.Contains(strings.ToLower(s), "solar"):
		return []float32{1, 0, 0, 0}
	case strings.Contains(strings.ToLower(s), "wind"):
		return []float32{0, 1, 0, 0}
	default:
		return []float32{0, 0, 1, 0}
	}
}

func (p *stubProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if p.fail {
		return nil, errors.New("provider down")
	}
	return p.topicVector(text), nil
}

func (p *stubProvider) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	if p.fail {
		return nil, errors.New("provider down")
	}
	return p.topicVector(path), nil
}

func (p *stubProvider) EmbedBatch(ctx context.Context, inputs []embeddings.Input) ([][]float32, error) {
	if p.fail {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = p.topicVector(in.Text + in.ImagePath)
	}
	return out, nil
}

func (p *stubProvider) Dimensions() int                  { return 4 }
func (p *stubProvider) Name() string                     { return "stub" }
func (p *stubProvider) Healthy(ctx context.Context) bool { return !p.fail }

func newTestEngine(t *testing.T, provider embeddings.Provider) (*Engine, *stubProvider) {
	t.Helper()

	stub, _ := provider.(*stubProvider)
	svc := embeddings.NewService(config.EmbeddingConfig{
		RequestTimeoutMS: 1000,
		CacheSize:        16,
		CacheTTLSec:      60,
		BreakerThreshold: 1,
		BreakerCooldownS: 60,
	}, provider, nil)

	store, err := vectordb.NewChromemStore()
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	index, err := keyword.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	now := time.Now()
	nodes := []node.Node{
		{
			ID: "d1:text:0", DocumentID: "d1", Kind: node.KindText,
			Content: "solar panel installation guide", Language: "en",
			Confidence: 0.9, Position: node.Position{Page: 1},
			Embedding: []float32{1, 0, 0, 0}, CreatedAt: now,
		},
		{
			ID: "d1:image:0", DocumentID: "d1", Kind: node.KindImage,
			Content: "solar array wiring diagram", Language: "en",
			Confidence: 0.8, Position: node.Position{Page: 2},
			Embedding: []float32{0.9, 0.1, 0, 0}, CreatedAt: now,
		},
		{
			ID: "d2:text:0", DocumentID: "d2", Kind: node.KindText,
			Content: "wind turbine blade maintenance", Language: "de",
			Confidence: 0.95, Position: node.Position{Page: 1},
			Embedding: []float32{0, 1, 0, 0}, CreatedAt: now,
		},
		{
			ID: "d1:table:0", DocumentID: "d1", Kind: node.KindTable,
			Content: "efficiency figures by quarter", Language: "en",
			Confidence: 0.85, Position: node.Position{Page: 3},
			Embedding: []float32{0, 0, 1, 0}, CreatedAt: now,
		},
	}
	ctx := context.Background()
	if err := store.Upsert(ctx, nodes); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := index.Add(ctx, nodes); err != nil {
		t.Fatalf("Add: %v", err)
	}

	engine := NewEngine(svc, store, index, config.SearchConfig{
		KeywordWeight:    1.0,
		SemanticWeight:   1.0,
		CrossModalWeight: 0.8,
		RRFConstant:      60,
		MinSimilarity:    0.1,
		MMRLambda:        0.7,
		SnippetLength:    120,
		CacheSize:        8,
		CacheTTLSec:      60,
	})
	return engine, stub
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	engine, _ := newTestEngine(t, &stubProvider{})
	if _, err := engine.Search(context.Background(), Query{}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestKeywordStrategy(t *testing.T) {
	engine, _ := newTestEngine(t, &stubProvider{})

	resp, err := engine.Search(context.Background(), Query{
		Text:    "turbine",
		Options: Options{Strategy: StrategyKeyword},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 1 || resp.Results[0].NodeID != "d2:text:0" {
		t.Errorf("results = %+v, want only the turbine node", resp.Results)
	}
}

func TestSemanticStrategy(t *testing.T) {
	engine, _ := newTestEngine(t, &stubProvider{})

	resp, err := engine.Search(context.Background(), Query{
		Text:    "solar energy",
		Options: Options{Strategy: StrategySemantic, TopK: 2},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected semantic results")
	}
	if resp.Results[0].NodeID != "d1:text:0" {
		t.Errorf("top result = %s, want the solar text node", resp.Results[0].NodeID)
	}
}

func TestSemanticTextAndTableKindsNoDuplicates(t *testing.T) {
	engine, _ := newTestEngine(t, &stubProvider{})

	// Table nodes live in the text collection, so asking for both kinds
	// queries the same collection twice.
	q := Query{Text: "efficiency data", Options: Options{Strategy: StrategySemantic, TopK: 5}}
	q.Filters.Kinds = []node.Kind{node.KindText, node.KindTable}
	resp, err := engine.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	seen := make(map[string]int)
	for _, r := range resp.Results {
		seen[r.NodeID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("node %s returned %d times, want once", id, n)
		}
	}
	if seen["d1:table:0"] != 1 {
		t.Errorf("results = %+v, want the table node exactly once", resp.Results)
	}
}

func TestCrossModalTextFindsImages(t *testing.T) {
	engine, _ := newTestEngine(t, &stubProvider{})

	resp, err := engine.Search(context.Background(), Query{
		Text:    "solar wiring",
		Options: Options{Strategy: StrategyCrossModal},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range resp.Results {
		if r.Kind != node.KindImage {
			t.Errorf("cross-modal text query returned %s node %s, want images only", r.Kind, r.NodeID)
		}
	}
	if len(resp.Results) == 0 {
		t.Error("expected the wiring diagram image")
	}
}

func TestHybridFusesKeywordAndSemantic(t *testing.T) {
	engine, _ := newTestEngine(t, &stubProvider{})

	resp, err := engine.Search(context.Background(), Query{
		Text:    "solar panel",
		Options: Options{Strategy: StrategyHybrid, TopK: 3},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected hybrid results")
	}
	// d1:text:0 matches both the keyword index and the vector space.
	if resp.Results[0].NodeID != "d1:text:0" {
		t.Errorf("top result = %s, want the doubly-supported node", resp.Results[0].NodeID)
	}
	if resp.Degraded {
		t.Error("healthy providers must not flag degradation")
	}
}

func TestHybridDegradesToKeywordWhenProviderFails(t *testing.T) {
	engine, stub := newTestEngine(t, &stubProvider{})

	// Trip the breaker (threshold 1) with a failing call first.
	stub.fail = true
	engine.Search(context.Background(), Query{
		Text:    "warmup",
		Options: Options{Strategy: StrategySemantic},
	})

	resp, err := engine.Search(context.Background(), Query{
		Text:    "turbine",
		Options: Options{Strategy: StrategyHybrid},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !resp.Degraded || resp.Note == "" {
		t.Error("keyword-only fallback should be flagged as degraded with a note")
	}
	if len(resp.Results) != 1 || resp.Results[0].NodeID != "d2:text:0" {
		t.Errorf("results = %+v, want the keyword hit to survive", resp.Results)
	}
}

func TestSearchFiltersAndFacets(t *testing.T) {
	engine, _ := newTestEngine(t, &stubProvider{})

	q := Query{Text: "maintenance guide", Options: Options{Strategy: StrategyKeyword}}
	q.Filters.Languages = []string{"en"}
	resp, err := engine.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range resp.Results {
		if r.Language != "en" {
			t.Errorf("result %s has language %s, want filtered to en", r.NodeID, r.Language)
		}
	}
	if resp.Facets.Kinds[string(node.KindText)] != len(resp.Results) {
		t.Errorf("facets = %+v, want kind tallies matching results", resp.Facets)
	}
}

func TestSearchResponseCaching(t *testing.T) {
	engine, _ := newTestEngine(t, &stubProvider{})
	q := Query{Text: "turbine", Options: Options{Strategy: StrategyKeyword}}

	first, err := engine.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if first.Cached {
		t.Error("first response must not be cached")
	}

	second, err := engine.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search (repeat): %v", err)
	}
	if !second.Cached {
		t.Error("repeated query should be served from the cache")
	}
}

func TestSearchSnippets(t *testing.T) {
	engine, _ := newTestEngine(t, &stubProvider{})

	resp, err := engine.Search(context.Background(), Query{
		Text:    "turbine",
		Options: Options{Strategy: StrategyKeyword},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) == 0 || resp.Results[0].Snippet == "" {
		t.Error("text queries should produce snippets")
	}
}
