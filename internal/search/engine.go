// Package search answers queries by fusing keyword, semantic, and
// cross-modal retrieval into one ranked, diversified result list.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/tessera-search/tessera/internal/config"
	"github.com/tessera-search/tessera/internal/embeddings"
	"github.com/tessera-search/tessera/internal/keyword"
	"github.com/tessera-search/tessera/internal/node"
	"github.com/tessera-search/tessera/internal/vectordb"
)

// ErrEmptyQuery is returned when a query carries neither text nor an
// image. It is a caller input error, never retried.
var ErrEmptyQuery = errors.New("query needs text or an image")

// Engine executes search queries against the keyword index and the
// vector store, embedding queries through the resilience layer.
type Engine struct {
	embedder *embeddings.Service
	store    vectordb.Store
	index    *keyword.Index
	cfg      config.SearchConfig
	cache    *queryCache
}

// NewEngine creates a search engine with its collaborators injected.
func NewEngine(embedder *embeddings.Service, store vectordb.Store, index *keyword.Index, cfg config.SearchConfig) *Engine {
	return &Engine{
		embedder: embedder,
		store:    store,
		index:    index,
		cfg:      cfg,
		cache:    newQueryCache(cfg.CacheSize, time.Duration(cfg.CacheTTLSec)*time.Second),
	}
}

// Search runs the query and returns a ranked response. Results younger
// than the cache TTL are served without re-executing retrieval.
func (e *Engine) Search(ctx context.Context, q Query) (*Response, error) {
	if q.Text == "" && q.ImagePath == "" {
		return nil, ErrEmptyQuery
	}

	key := cacheKey(q)
	if resp, ok := e.cache.Get(key); ok {
		resp.Cached = true
		return &resp, nil
	}

	start := time.Now()
	strategy := q.Options.Strategy
	if strategy == "" {
		strategy = StrategyHybrid
	}
	topK := q.Options.TopK
	if topK <= 0 {
		topK = 10
	}

	var results []Result
	var err error
	degraded := false

	switch strategy {
	case StrategyKeyword:
		results, err = e.keywordSearch(ctx, q, topK)
	case StrategySemantic:
		results, err = e.semanticSearch(ctx, q, topK)
	case StrategyCrossModal:
		results, err = e.crossModalSearch(ctx, q, topK)
	case StrategyHybrid:
		results, degraded, err = e.hybridSearch(ctx, q, topK)
	default:
		return nil, fmt.Errorf("unknown search strategy %q", strategy)
	}
	if err != nil {
		return nil, err
	}

	if q.Options.Rerank {
		results = rerank(results, q)
	}
	if q.Options.Diversify && len(results) > 1 {
		results = diversify(results, e.cfg.MMRLambda)
	}
	if len(results) > topK {
		results = results[:topK]
	}

	if q.Text != "" {
		for i := range results {
			results[i].Snippet = snippet(results[i].Content, q.Text, e.cfg.SnippetLength)
		}
	}

	resp := Response{
		Results:  results,
		Total:    len(results),
		TookMS:   time.Since(start).Milliseconds(),
		Strategy: strategy,
		Facets:   buildFacets(results),
		Degraded: degraded,
	}
	if degraded {
		resp.Note = "embedding provider unavailable; treat results as keyword-only until it recovers"
	}
	if len(results) == 0 {
		resp.Suggestions = suggestions(q)
	}

	e.cache.Put(key, resp)
	return &resp, nil
}

// keywordSearch runs the inverted-index lookup with native BM25 scores.
func (e *Engine) keywordSearch(ctx context.Context, q Query, topK int) ([]Result, error) {
	if q.Text == "" {
		return nil, nil
	}

	// Over-fetch so post-filters do not starve the result list.
	hits, err := e.index.Search(ctx, q.Text, topK*3)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	var results []Result
	for _, h := range hits {
		r := Result{
			NodeID:     h.NodeID,
			DocumentID: h.DocumentID,
			Kind:       h.Kind,
			Score:      h.Score,
			Content:    h.Content,
			Language:   h.Language,
			Page:       h.Page,
			Confidence: 1.0,
		}
		if !matchesFilters(r, q.Filters) {
			continue
		}
		results = append(results, r)
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// semanticSearch embeds the query and vector-searches the collections
// matching the requested content types.
func (e *Engine) semanticSearch(ctx context.Context, q Query, topK int) ([]Result, error) {
	vector, err := e.queryVector(ctx, q)
	if err != nil {
		return nil, err
	}

	kinds := q.Filters.Kinds
	if len(kinds) == 0 {
		kinds = []node.Kind{node.KindText, node.KindImage}
	}

	return e.vectorSearch(ctx, vector, kinds, q, topK)
}

// crossModalSearch retrieves across modalities: a text query searches
// the image collection and vice versa. With both inputs present, the
// two result sets are unioned and deduplicated by node id.
func (e *Engine) crossModalSearch(ctx context.Context, q Query, topK int) ([]Result, error) {
	var results []Result

	if q.Text != "" {
		emb, err := e.embedder.EmbedText(ctx, q.Text)
		if err != nil {
			return nil, fmt.Errorf("embedding query text: %w", err)
		}
		found, err := e.vectorSearch(ctx, emb.Vector, []node.Kind{node.KindImage}, q, topK)
		if err != nil {
			return nil, err
		}
		results = append(results, found...)
	}

	if q.ImagePath != "" {
		emb, err := e.embedder.EmbedImage(ctx, q.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("embedding query image: %w", err)
		}
		found, err := e.vectorSearch(ctx, emb.Vector, []node.Kind{node.KindText}, q, topK)
		if err != nil {
			return nil, err
		}
		results = append(results, found...)
	}

	results = dedupeByNodeID(results)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// hybridSearch runs keyword and semantic retrieval concurrently (plus
// cross-modal when the query has an image) and fuses them with RRF.
// When the embedding circuit is open, the semantic lists are empty and
// the response is flagged as degraded keyword-only.
func (e *Engine) hybridSearch(ctx context.Context, q Query, topK int) ([]Result, bool, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var lists []rankedList
	degraded := false

	run := func(strategy Strategy, weight float64, fn func() ([]Result, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := fn()
			if err != nil {
				if errors.Is(err, embeddings.ErrCircuitOpen) {
					mu.Lock()
					degraded = true
					mu.Unlock()
					return
				}
				log.Printf("search: %s strategy: %v", strategy, err)
				return
			}
			mu.Lock()
			lists = append(lists, rankedList{strategy: strategy, weight: weight, results: results})
			mu.Unlock()
		}()
	}

	if q.Text != "" {
		run(StrategyKeyword, e.cfg.KeywordWeight, func() ([]Result, error) {
			return e.keywordSearch(ctx, q, topK)
		})
	}
	run(StrategySemantic, e.cfg.SemanticWeight, func() ([]Result, error) {
		return e.semanticSearch(ctx, q, topK)
	})
	if q.ImagePath != "" {
		run(StrategyCrossModal, e.cfg.CrossModalWeight, func() ([]Result, error) {
			return e.crossModalSearch(ctx, q, topK)
		})
	}

	wg.Wait()

	if len(lists) == 0 {
		if degraded {
			return nil, true, nil
		}
		return nil, false, nil
	}

	// Keep fusion deterministic regardless of goroutine completion order.
	sort.Slice(lists, func(i, j int) bool { return lists[i].strategy < lists[j].strategy })

	fused := fuseRRF(lists, e.cfg.RRFConstant, q.Options.Explain)
	return fused, degraded, nil
}

// queryVector embeds the query text, or the query image when no text
// is present.
func (e *Engine) queryVector(ctx context.Context, q Query) ([]float32, error) {
	if q.Text != "" {
		emb, err := e.embedder.EmbedText(ctx, q.Text)
		if err != nil {
			return nil, fmt.Errorf("embedding query text: %w", err)
		}
		return emb.Vector, nil
	}
	emb, err := e.embedder.EmbedImage(ctx, q.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("embedding query image: %w", err)
	}
	return emb.Vector, nil
}

// vectorSearch queries each collection and merges the scored nodes.
func (e *Engine) vectorSearch(ctx context.Context, vector []float32, kinds []node.Kind, q Query, topK int) ([]Result, error) {
	minSim := q.Options.MinSimilarity
	if minSim <= 0 {
		minSim = e.cfg.MinSimilarity
	}

	filter := buildStoreFilter(q.Filters)

	var results []Result
	for _, kind := range kinds {
		scored, err := e.store.Search(ctx, kind, vector, topK, filter, float32(minSim))
		if err != nil {
			return nil, fmt.Errorf("vector search %s: %w", kind, err)
		}
		for _, s := range scored {
			r := Result{
				NodeID:     s.Node.ID,
				DocumentID: s.Node.DocumentID,
				Kind:       s.Node.Kind,
				Score:      float64(s.Similarity),
				Content:    s.Node.Content,
				Language:   s.Node.Language,
				Page:       s.Node.Position.Page,
				Confidence: s.Node.Confidence,
			}
			if !matchesFilters(r, q.Filters) {
				continue
			}
			results = append(results, r)
		}
	}

	// Text and table nodes share a collection, so querying both kinds
	// can surface the same node twice.
	results = dedupeByNodeID(results)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// buildStoreFilter pushes single-valued filters down to the store;
// multi-valued filters are applied post-hoc by matchesFilters.
func buildStoreFilter(f Filters) *vectordb.Filter {
	var filter vectordb.Filter
	any := false
	if len(f.DocumentIDs) == 1 {
		filter.DocumentID = &f.DocumentIDs[0]
		any = true
	}
	if len(f.Languages) == 1 {
		filter.Language = &f.Languages[0]
		any = true
	}
	if len(f.Pages) == 1 {
		filter.Page = &f.Pages[0]
		any = true
	}
	if !any {
		return nil
	}
	return &filter
}

func matchesFilters(r Result, f Filters) bool {
	if len(f.DocumentIDs) > 0 && !containsString(f.DocumentIDs, r.DocumentID) {
		return false
	}
	if len(f.Languages) > 0 && !containsString(f.Languages, r.Language) {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == r.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Pages) > 0 {
		found := false
		for _, p := range f.Pages {
			if p == r.Page {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinConfidence > 0 && r.Confidence < f.MinConfidence {
		return false
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func dedupeByNodeID(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		if seen[r.NodeID] {
			continue
		}
		seen[r.NodeID] = true
		out = append(out, r)
	}
	return out
}

func buildFacets(results []Result) Facets {
	f := Facets{
		Documents: make(map[string]int),
		Kinds:     make(map[string]int),
		Languages: make(map[string]int),
		Pages:     make(map[int]int),
	}
	for _, r := range results {
		f.Documents[r.DocumentID]++
		f.Kinds[string(r.Kind)]++
		if r.Language != "" {
			f.Languages[r.Language]++
		}
		f.Pages[r.Page]++
	}
	return f
}

// suggestions offers basic guidance when a query comes back empty.
func suggestions(q Query) []string {
	var out []string
	if len(q.Filters.DocumentIDs) > 0 || len(q.Filters.Kinds) > 0 || len(q.Filters.Languages) > 0 || len(q.Filters.Pages) > 0 {
		out = append(out, "try removing filters")
	}
	if q.Options.MinSimilarity > 0.5 {
		out = append(out, "lower min_similarity")
	}
	if len(q.Text) > 100 {
		out = append(out, "use a shorter query")
	}
	return out
}
