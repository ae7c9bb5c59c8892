package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// blockSpacing is the synthetic vertical distance between consecutive
// blocks. It gives locally-extracted documents usable positions for
// proximity inference even though Markdown has no page geometry.
const blockSpacing = 40.0

// MarkdownExtractor extracts content from Markdown and plain-text files
// locally, without the remote extraction service.
type MarkdownExtractor struct {
	md goldmark.Markdown
}

// NewMarkdownExtractor creates a local Markdown/plain-text extractor.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{md: goldmark.New()}
}

// Supports reports whether the extractor handles the file's extension.
func (m *MarkdownExtractor) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// Process reads the file and splits it into one span per block. Plain
// text files are split on blank lines instead of being parsed.
func (m *MarkdownExtractor) Process(ctx context.Context, path string, _ Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	var blocks []string
	if strings.ToLower(filepath.Ext(path)) == ".txt" {
		blocks = splitParagraphs(string(source))
	} else {
		blocks = m.markdownBlocks(source)
	}

	result := &Result{
		Status:       "success",
		Language:     "en",
		QualityScore: 1.0,
		Metadata:     map[string]string{"extractor": "local-markdown"},
	}
	for i, b := range blocks {
		result.Spans = append(result.Spans, Span{
			Text: b,
			Page: 1,
			Y:    float64(i) * blockSpacing,
		})
	}
	return result, nil
}

// Healthy always reports true; the local extractor has no dependencies.
func (m *MarkdownExtractor) Healthy(_ context.Context) bool { return true }

// markdownBlocks parses source and returns the text of each top-level block.
func (m *MarkdownExtractor) markdownBlocks(source []byte) []string {
	doc := m.md.Parser().Parse(text.NewReader(source))

	var blocks []string
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		var t string
		switch b := child.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			t = codeBlockText(child, source)
		default:
			t = string(b.Text(source))
		}
		t = strings.TrimSpace(t)
		if t != "" {
			blocks = append(blocks, t)
		}
	}
	return blocks
}

// codeBlockText concatenates the raw lines of a code block.
func codeBlockText(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

// splitParagraphs splits plain text on blank lines.
func splitParagraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
