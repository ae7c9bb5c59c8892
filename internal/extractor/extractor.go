// Package extractor talks to the out-of-process content extraction service
// and provides a local fallback for plain Markdown and text files.
package extractor

import "context"

// Span is a unit of extracted text with its page position.
type Span struct {
	Text string  `json:"text"`
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Image describes an image extracted from a document.
type Image struct {
	Path    string  `json:"path"`
	Page    int     `json:"page"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	OCRText string  `json:"ocr_text,omitempty"`
	Caption string  `json:"caption,omitempty"`
}

// Table describes a table extracted from a document.
type Table struct {
	Page    int        `json:"page"`
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Rows    [][]string `json:"rows"`
	Caption string     `json:"caption,omitempty"`
}

// Result is the extractor's response for a single document.
type Result struct {
	Status       string            `json:"status"`
	Spans        []Span            `json:"text_chunks"`
	Images       []Image           `json:"images"`
	Tables       []Table           `json:"tables"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Language     string            `json:"language,omitempty"`
	QualityScore float64           `json:"quality_score"`
	Errors       []string          `json:"errors,omitempty"`
}

// Options passes per-document extraction settings to the service.
type Options struct {
	ExtractImages bool `json:"extract_images"`
	ExtractTables bool `json:"extract_tables"`
	RunOCR        bool `json:"run_ocr"`
}

// Extractor turns a document file into structured content.
type Extractor interface {
	// Process extracts content from the file at path. A non-success status
	// is returned as an error; the document is a hard failure.
	Process(ctx context.Context, path string, opts Options) (*Result, error)

	// Healthy reports whether the extractor can accept work.
	Healthy(ctx context.Context) bool
}
