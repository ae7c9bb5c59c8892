package search

import (
	"github.com/tessera-search/tessera/internal/node"
)

// Strategy selects how a query is executed.
type Strategy string

const (
	StrategyKeyword    Strategy = "keyword"
	StrategySemantic   Strategy = "semantic"
	StrategyCrossModal Strategy = "cross_modal"
	StrategyHybrid     Strategy = "hybrid"
)

// Filters restrict which nodes a query may return.
type Filters struct {
	DocumentIDs   []string    `json:"document_ids,omitempty"`
	Pages         []int       `json:"pages,omitempty"`
	Kinds         []node.Kind `json:"kinds,omitempty"`
	Languages     []string    `json:"languages,omitempty"`
	MinConfidence float64     `json:"min_confidence,omitempty"`
}

// Options tune execution and post-processing.
type Options struct {
	Strategy      Strategy `json:"strategy,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	MinSimilarity float64  `json:"min_similarity,omitempty"`
	Rerank        bool     `json:"rerank,omitempty"`
	Diversify     bool     `json:"diversify,omitempty"`
	Explain       bool     `json:"explain,omitempty"`
}

// Query is one search request. At least one of Text or ImagePath must
// be set.
type Query struct {
	Text      string  `json:"text,omitempty"`
	ImagePath string  `json:"image_path,omitempty"`
	Filters   Filters `json:"filters,omitempty"`
	Options   Options `json:"options,omitempty"`
}

// Result is one ranked hit.
type Result struct {
	NodeID      string    `json:"node_id"`
	DocumentID  string    `json:"document_id"`
	Kind        node.Kind `json:"kind"`
	Score       float64   `json:"score"`
	Content     string    `json:"content"`
	Snippet     string    `json:"snippet,omitempty"`
	Language    string    `json:"language,omitempty"`
	Page        int       `json:"page"`
	Confidence  float64   `json:"confidence"`
	Explanation string    `json:"explanation,omitempty"`
}

// Facets tally the result set for caller-side filtering UI.
type Facets struct {
	Documents map[string]int `json:"documents"`
	Kinds     map[string]int `json:"kinds"`
	Languages map[string]int `json:"languages"`
	Pages     map[int]int    `json:"pages"`
}

// Response is the complete answer to a query.
type Response struct {
	Results     []Result `json:"results"`
	Total       int      `json:"total"`
	TookMS      int64    `json:"took_ms"`
	Strategy    Strategy `json:"strategy"`
	Facets      Facets   `json:"facets"`
	Suggestions []string `json:"suggestions,omitempty"`
	Degraded    bool     `json:"degraded,omitempty"`
	Note        string   `json:"note,omitempty"`
	Cached      bool     `json:"cached,omitempty"`
}
