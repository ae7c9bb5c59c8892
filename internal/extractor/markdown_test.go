package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestMarkdownExtractorSupports(t *testing.T) {
	m := NewMarkdownExtractor()
	tests := []struct {
		path string
		want bool
	}{
		{"notes.md", true},
		{"NOTES.MD", true},
		{"guide.markdown", true},
		{"readme.txt", true},
		{"report.pdf", false},
		{"diagram.png", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := m.Supports(tt.path); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMarkdownExtractorBlocks(t *testing.T) {
	src := "# Quarterly Report\n\nRevenue grew twelve percent.\n\n```\ntotal = sum(rows)\n```\n"
	path := writeFile(t, "report.md", src)

	m := NewMarkdownExtractor()
	res, err := m.Process(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.Status != "success" || res.QualityScore != 1.0 {
		t.Errorf("res = %+v, want success with full quality", res)
	}
	want := []string{
		"Quarterly Report",
		"Revenue grew twelve percent.",
		"total = sum(rows)",
	}
	if len(res.Spans) != len(want) {
		t.Fatalf("got %d spans, want %d: %+v", len(res.Spans), len(want), res.Spans)
	}
	for i, w := range want {
		if res.Spans[i].Text != w {
			t.Errorf("span %d text = %q, want %q", i, res.Spans[i].Text, w)
		}
		if res.Spans[i].Page != 1 {
			t.Errorf("span %d page = %d, want 1", i, res.Spans[i].Page)
		}
	}
}

func TestMarkdownExtractorSyntheticPositions(t *testing.T) {
	src := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph.\n"
	path := writeFile(t, "doc.md", src)

	m := NewMarkdownExtractor()
	res, err := m.Process(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(res.Spans))
	}
	for i, s := range res.Spans {
		want := float64(i) * blockSpacing
		if s.Y != want {
			t.Errorf("span %d Y = %v, want %v", i, s.Y, want)
		}
	}
}

func TestPlainTextSplitsOnBlankLines(t *testing.T) {
	src := "alpha line\r\n\r\nbeta line\n\n\n\ngamma line\n"
	path := writeFile(t, "notes.txt", src)

	m := NewMarkdownExtractor()
	res, err := m.Process(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []string{"alpha line", "beta line", "gamma line"}
	if len(res.Spans) != len(want) {
		t.Fatalf("got %d spans, want %d: %+v", len(res.Spans), len(want), res.Spans)
	}
	for i, w := range want {
		if res.Spans[i].Text != w {
			t.Errorf("span %d = %q, want %q", i, res.Spans[i].Text, w)
		}
	}
}

func TestMarkdownExtractorMissingFile(t *testing.T) {
	m := NewMarkdownExtractor()
	if _, err := m.Process(context.Background(), filepath.Join(t.TempDir(), "absent.md"), Options{}); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestMarkdownExtractorCanceledContext(t *testing.T) {
	path := writeFile(t, "doc.md", "content\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMarkdownExtractor()
	if _, err := m.Process(ctx, path, Options{}); err == nil {
		t.Fatal("expected a context error")
	}
}
