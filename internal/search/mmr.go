package search

import "strings"

// diversify reorders results with Maximal Marginal Relevance: greedily
// pick the result maximizing lambda*relevance - (1-lambda)*maxSim to
// the already-selected set, using token-set Jaccard similarity between
// contents. The top result is always kept first.
func diversify(results []Result, lambda float64) []Result {
	if len(results) <= 2 {
		return results
	}

	tokens := make([]map[string]bool, len(results))
	for i, r := range results {
		tokens[i] = tokenSet(r.Content)
	}

	selected := []int{0}
	remaining := make([]int, 0, len(results)-1)
	for i := 1; i < len(results); i++ {
		remaining = append(remaining, i)
	}

	for len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		for pos, i := range remaining {
			maxSim := 0.0
			for _, j := range selected {
				if sim := jaccard(tokens[i], tokens[j]); sim > maxSim {
					maxSim = sim
				}
			}
			mmr := lambda*results[i].Score - (1-lambda)*maxSim
			if bestIdx < 0 || mmr > bestScore {
				bestIdx = pos
				bestScore = mmr
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	out := make([]Result, len(selected))
	for i, idx := range selected {
		out[i] = results[idx]
	}
	return out
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(tok, ".,;:!?()[]\"'")] = true
	}
	delete(set, "")
	return set
}

// jaccard is |A∩B| / |A∪B| over token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
