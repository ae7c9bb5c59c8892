package search

import (
	"fmt"
	"sort"

	"github.com/tessera-search/tessera/internal/node"
)

// confidenceBoost scales how much extraction confidence lifts a score.
const confidenceBoost = 0.1

// imageQueryBoost is applied to image nodes when the query itself
// included an image.
const imageQueryBoost = 1.2

// languageMatchBoost is applied when a node's language matches a
// requested filter language.
const languageMatchBoost = 1.1

// rerank applies post-fusion boosts and re-sorts: an additive
// confidence-weighted boost, a multiplicative boost for image nodes on
// image queries, and a multiplicative boost for language matches.
func rerank(results []Result, q Query) []Result {
	hasImage := q.ImagePath != ""
	languages := make(map[string]bool, len(q.Filters.Languages))
	for _, l := range q.Filters.Languages {
		languages[l] = true
	}

	for i := range results {
		r := &results[i]
		before := r.Score

		r.Score += r.Confidence * confidenceBoost
		if hasImage && r.Kind == node.KindImage {
			r.Score *= imageQueryBoost
		}
		if len(languages) > 0 && languages[r.Language] {
			r.Score *= languageMatchBoost
		}

		if q.Options.Explain && r.Score != before {
			note := fmt.Sprintf("rerank: %.4f -> %.4f", before, r.Score)
			if r.Explanation != "" {
				r.Explanation += "; " + note
			} else {
				r.Explanation = note
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
