package pipeline

import (
	"strings"

	"github.com/tessera-search/tessera/internal/config"
	"github.com/tessera-search/tessera/internal/extractor"
)

// Chunk is a unit of text headed for a node, with the position of its
// first contributing span.
type Chunk struct {
	Text string
	Page int
	X    float64
	Y    float64
}

// BuildChunks groups extracted spans into chunks using the configured
// strategy.
func BuildChunks(spans []extractor.Span, cfg config.PipelineConfig) []Chunk {
	switch cfg.Strategy {
	case config.ChunkParagraph:
		return paragraphChunks(spans)
	case config.ChunkFixed:
		return fixedChunks(spans, cfg.FixedWindowSize, cfg.FixedOverlap, cfg.MinChunkSize)
	default:
		return semanticChunks(spans, cfg.MinChunkSize, cfg.MaxChunkSize)
	}
}

// paragraphChunks keeps one chunk per extracted span, unmodified.
func paragraphChunks(spans []extractor.Span) []Chunk {
	chunks := make([]Chunk, 0, len(spans))
	for _, s := range spans {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		chunks = append(chunks, Chunk{Text: s.Text, Page: s.Page, X: s.X, Y: s.Y})
	}
	return chunks
}

// semanticChunks greedily merges consecutive same-page spans while the
// running length stays within [minSize, maxSize]. A chunk is flushed
// when appending the next span would exceed the maximum, and kept only
// if it already met the minimum.
func semanticChunks(spans []extractor.Span, minSize, maxSize int) []Chunk {
	var chunks []Chunk

	var parts []string
	var current Chunk
	currentLen := 0

	flush := func() {
		if currentLen >= minSize {
			current.Text = strings.Join(parts, " ")
			chunks = append(chunks, current)
		}
		parts = nil
		currentLen = 0
	}

	for _, s := range spans {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}

		newPage := len(parts) > 0 && s.Page != current.Page
		wouldOverflow := currentLen > 0 && currentLen+1+len(text) > maxSize
		if newPage || wouldOverflow {
			flush()
		}

		if len(parts) == 0 {
			current = Chunk{Page: s.Page, X: s.X, Y: s.Y}
		}
		parts = append(parts, text)
		if currentLen > 0 {
			currentLen++ // joining space
		}
		currentLen += len(text)
	}
	flush()

	return chunks
}

// fixedChunks slides a window of windowSize with overlap over the
// concatenated text of each page. Windows shorter than minSize are
// discarded. Consecutive windows share exactly overlap characters.
func fixedChunks(spans []extractor.Span, windowSize, overlap, minSize int) []Chunk {
	if windowSize <= 0 {
		return nil
	}
	step := windowSize - overlap
	if step <= 0 {
		step = windowSize
	}

	var chunks []Chunk

	// Group spans by page, preserving order.
	var pages []int
	pageText := make(map[int][]string)
	pagePos := make(map[int]extractor.Span)
	for _, s := range spans {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if _, ok := pageText[s.Page]; !ok {
			pages = append(pages, s.Page)
			pagePos[s.Page] = s
		}
		pageText[s.Page] = append(pageText[s.Page], text)
	}

	for _, page := range pages {
		text := strings.Join(pageText[page], " ")
		first := pagePos[page]
		for start := 0; start < len(text); start += step {
			end := start + windowSize
			if end > len(text) {
				end = len(text)
			}
			window := text[start:end]
			if len(window) >= minSize {
				chunks = append(chunks, Chunk{Text: window, Page: page, X: first.X, Y: first.Y})
			}
			if end == len(text) {
				break
			}
		}
	}

	return chunks
}
