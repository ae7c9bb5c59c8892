package search

import "strings"

// snippet returns the window of content with the most query-term
// occurrences, truncated to maxLen. Returns the head of the content
// when no term matches.
func snippet(content, query string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return truncate(content, maxLen)
	}

	lower := strings.ToLower(content)
	step := maxLen / 2
	if step < 1 {
		step = 1
	}

	bestStart := 0
	bestCount := -1
	for start := 0; start < len(lower); start += step {
		end := start + maxLen
		if end > len(lower) {
			end = len(lower)
		}
		window := lower[start:end]

		count := 0
		for _, t := range terms {
			count += strings.Count(window, t)
		}
		if count > bestCount {
			bestCount = count
			bestStart = start
		}
		if end == len(lower) {
			break
		}
	}

	return truncate(content[bestStart:], maxLen)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	// Break on a word boundary when one is reasonably close.
	if idx := strings.LastIndex(cut, " "); idx > maxLen*3/4 {
		cut = cut[:idx]
	}
	return cut + "..."
}
