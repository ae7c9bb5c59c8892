package search

import (
	"fmt"
	"sort"
	"strings"
)

// rankedList is one strategy's ordered results with its fusion weight.
type rankedList struct {
	strategy Strategy
	weight   float64
	results  []Result
}

// fuseRRF combines ranked lists with Reciprocal Rank Fusion: a result
// at 0-indexed rank r in a list with weight w contributes w/(k+r+1),
// and contributions for the same node id sum across lists. Nodes
// supported by more strategies therefore outrank single-strategy nodes
// at comparable ranks.
func fuseRRF(lists []rankedList, k int, explain bool) []Result {
	type fused struct {
		result  Result
		score   float64
		sources []string
	}

	byID := make(map[string]*fused)
	var order []string

	for _, list := range lists {
		for rank, r := range list.results {
			contribution := list.weight / float64(k+rank+1)
			f, ok := byID[r.NodeID]
			if !ok {
				f = &fused{result: r}
				byID[r.NodeID] = f
				order = append(order, r.NodeID)
			}
			f.score += contribution
			if explain {
				f.sources = append(f.sources, fmt.Sprintf("%s rank %d (+%.4f)", list.strategy, rank+1, contribution))
			}
		}
	}

	out := make([]Result, 0, len(order))
	for _, id := range order {
		f := byID[id]
		f.result.Score = f.score
		if explain {
			f.result.Explanation = "rrf: " + strings.Join(f.sources, ", ")
		}
		out = append(out, f.result)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
