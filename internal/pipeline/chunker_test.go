package pipeline

import (
	"strings"
	"testing"

	"github.com/tessera-search/tessera/internal/config"
	"github.com/tessera-search/tessera/internal/extractor"
)

func span(text string, page int) extractor.Span {
	return extractor.Span{Text: text, Page: page}
}

func TestParagraphChunksSkipBlank(t *testing.T) {
	spans := []extractor.Span{
		span("first paragraph", 1),
		span("   ", 1),
		span("second paragraph", 2),
	}

	chunks := BuildChunks(spans, config.PipelineConfig{Strategy: config.ChunkParagraph})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != "first paragraph" || chunks[1].Page != 2 {
		t.Errorf("unexpected chunks: %+v", chunks)
	}
}

func TestSemanticChunksMergeWithinBounds(t *testing.T) {
	spans := []extractor.Span{
		span("alpha beta", 1),
		span("gamma delta", 1),
		span("epsilon", 1),
	}
	cfg := config.PipelineConfig{Strategy: config.ChunkSemantic, MinChunkSize: 5, MaxChunkSize: 100}

	chunks := BuildChunks(spans, cfg)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 merged chunk", len(chunks))
	}
	want := "alpha beta gamma delta epsilon"
	if chunks[0].Text != want {
		t.Errorf("text = %q, want %q", chunks[0].Text, want)
	}
}

func TestSemanticChunksFlushOnMaxSize(t *testing.T) {
	spans := []extractor.Span{
		span(strings.Repeat("a", 40), 1),
		span(strings.Repeat("b", 40), 1),
		span(strings.Repeat("c", 40), 1),
	}
	cfg := config.PipelineConfig{Strategy: config.ChunkSemantic, MinChunkSize: 10, MaxChunkSize: 90}

	chunks := BuildChunks(spans, cfg)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 90 {
			t.Errorf("chunk length %d exceeds max 90", len(c.Text))
		}
	}
}

func TestSemanticChunksSplitOnPageBreak(t *testing.T) {
	spans := []extractor.Span{
		span("page one text here", 1),
		span("page two text here", 2),
	}
	cfg := config.PipelineConfig{Strategy: config.ChunkSemantic, MinChunkSize: 5, MaxChunkSize: 1000}

	chunks := BuildChunks(spans, cfg)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want one per page", len(chunks))
	}
	if chunks[0].Page != 1 || chunks[1].Page != 2 {
		t.Errorf("pages = %d,%d, want 1,2", chunks[0].Page, chunks[1].Page)
	}
}

func TestSemanticChunksDropRunt(t *testing.T) {
	spans := []extractor.Span{span("tiny", 1)}
	cfg := config.PipelineConfig{Strategy: config.ChunkSemantic, MinChunkSize: 50, MaxChunkSize: 100}

	if chunks := BuildChunks(spans, cfg); len(chunks) != 0 {
		t.Errorf("got %d chunks, want runt below min size dropped", len(chunks))
	}
}

func TestFixedChunksExactOverlap(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxy"
	spans := []extractor.Span{span(text, 1)}
	cfg := config.PipelineConfig{
		Strategy:        config.ChunkFixed,
		FixedWindowSize: 10,
		FixedOverlap:    4,
		MinChunkSize:    1,
	}

	chunks := BuildChunks(spans, cfg)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several windows", len(chunks))
	}

	// Consecutive full windows must share exactly FixedOverlap characters.
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1].Text, chunks[i].Text
		if len(prev) < cfg.FixedOverlap {
			continue
		}
		tail := prev[len(prev)-cfg.FixedOverlap:]
		if !strings.HasPrefix(cur, tail) {
			t.Errorf("window %d does not start with the previous window's %d-char tail", i, cfg.FixedOverlap)
		}
	}
}

func TestFixedChunksDiscardShortWindows(t *testing.T) {
	spans := []extractor.Span{span(strings.Repeat("y", 12), 1)}
	cfg := config.PipelineConfig{
		Strategy:        config.ChunkFixed,
		FixedWindowSize: 10,
		FixedOverlap:    0,
		MinChunkSize:    5,
	}

	chunks := BuildChunks(spans, cfg)
	// 12 chars with window 10: one full window plus a 2-char remainder
	// below the minimum.
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if len(chunks[0].Text) != 10 {
		t.Errorf("window length = %d, want 10", len(chunks[0].Text))
	}
}
