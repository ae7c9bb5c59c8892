package search

import (
	"strings"
	"testing"
	"time"

	"github.com/tessera-search/tessera/internal/node"
)

func TestDiversifyKeepsTopAndSpreadsContent(t *testing.T) {
	in := []Result{
		{NodeID: "a", Score: 1.0, Content: "solar panel efficiency report"},
		{NodeID: "b", Score: 0.9, Content: "solar panel efficiency report"},
		{NodeID: "c", Score: 0.8, Content: "wind turbine maintenance schedule"},
	}

	out := diversify(in, 0.5)
	if out[0].NodeID != "a" {
		t.Errorf("top result = %s, want the original best kept first", out[0].NodeID)
	}
	// The near-duplicate of the top result should drop behind the
	// dissimilar one.
	if out[1].NodeID != "c" {
		t.Errorf("second result = %s, want the dissimilar document promoted", out[1].NodeID)
	}
}

func TestDiversifyShortListsUnchanged(t *testing.T) {
	in := []Result{{NodeID: "a"}, {NodeID: "b"}}
	out := diversify(in, 0.7)
	if len(out) != 2 || out[0].NodeID != "a" || out[1].NodeID != "b" {
		t.Errorf("short lists should pass through untouched: %+v", out)
	}
}

func TestJaccard(t *testing.T) {
	a := tokenSet("the red fox")
	b := tokenSet("the red hen")
	// intersection {the, red} = 2, union {the, red, fox, hen} = 4.
	if got := jaccard(a, b); got != 0.5 {
		t.Errorf("jaccard = %f, want 0.5", got)
	}
	if got := jaccard(a, tokenSet("")); got != 0 {
		t.Errorf("jaccard with empty set = %f, want 0", got)
	}
}

func TestRerankConfidenceAndImageBoost(t *testing.T) {
	in := []Result{
		{NodeID: "text", Kind: node.KindText, Score: 0.50, Confidence: 0},
		{NodeID: "img", Kind: node.KindImage, Score: 0.48, Confidence: 0},
	}

	out := rerank(in, Query{ImagePath: "/tmp/q.png"})
	if out[0].NodeID != "img" {
		t.Errorf("top result = %s, want image boosted on an image query", out[0].NodeID)
	}

	// Without an image query the confidence boost decides.
	in = []Result{
		{NodeID: "low", Kind: node.KindText, Score: 0.50, Confidence: 0.1},
		{NodeID: "high", Kind: node.KindText, Score: 0.49, Confidence: 0.9},
	}
	out = rerank(in, Query{Text: "q"})
	if out[0].NodeID != "high" {
		t.Errorf("top result = %s, want high-confidence node promoted", out[0].NodeID)
	}
}

func TestRerankLanguageMatch(t *testing.T) {
	in := []Result{
		{NodeID: "de", Kind: node.KindText, Score: 0.50, Language: "de"},
		{NodeID: "en", Kind: node.KindText, Score: 0.50, Language: "en"},
	}

	q := Query{Text: "q"}
	q.Filters.Languages = []string{"en"}
	out := rerank(in, q)
	if out[0].NodeID != "en" {
		t.Errorf("top result = %s, want the filter language boosted", out[0].NodeID)
	}
}

func TestSnippetFindsDensestWindow(t *testing.T) {
	content := strings.Repeat("filler words here. ", 30) +
		"the gearbox assembly requires gearbox oil" +
		strings.Repeat(" trailing padding", 20)

	s := snippet(content, "gearbox", 80)
	if !strings.Contains(strings.ToLower(s), "gearbox") {
		t.Errorf("snippet %q should contain the query term", s)
	}
	if len(s) > 80+3 {
		t.Errorf("snippet length %d exceeds the limit", len(s))
	}
}

func TestSnippetShortContentUnchanged(t *testing.T) {
	if got := snippet("tiny", "query", 100); got != "tiny" {
		t.Errorf("snippet = %q, want short content returned as-is", got)
	}
}

func TestTruncateWordBoundary(t *testing.T) {
	got := truncate("alpha beta gamma delta epsilon", 20)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncate output %q should end with ellipsis", got)
	}
	if strings.Contains(strings.TrimSuffix(got, "..."), "gamma delta") {
		t.Errorf("truncate %q should have cut before the limit", got)
	}
}

func TestQueryCacheTTL(t *testing.T) {
	current := time.Unix(0, 0)
	c := newQueryCache(4, 10*time.Second)
	c.now = func() time.Time { return current }

	key := cacheKey(Query{Text: "hello"})
	c.Put(key, Response{Total: 3})

	if resp, ok := c.Get(key); !ok || resp.Total != 3 {
		t.Fatalf("Get = %+v, %v; want cached response", resp, ok)
	}

	current = current.Add(11 * time.Second)
	if _, ok := c.Get(key); ok {
		t.Error("expired response should read as a miss")
	}
}

func TestCacheKeyDistinguishesOptions(t *testing.T) {
	base := Query{Text: "hello"}
	diversified := Query{Text: "hello"}
	diversified.Options.Diversify = true

	if cacheKey(base) == cacheKey(diversified) {
		t.Error("queries differing in options must not share a cache key")
	}
	if cacheKey(base) != cacheKey(Query{Text: "hello"}) {
		t.Error("identical queries must share a cache key")
	}
}
