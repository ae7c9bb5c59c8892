package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// remoteFormats are the extensions handled by the remote extraction service.
// Markdown and plain text are handled locally by MarkdownExtractor.
var remoteFormats = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Client calls the extraction service over HTTP.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates an extractor client for the given base endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type processRequest struct {
	FilePath string  `json:"file_path"`
	Options  Options `json:"options"`
}

// Process sends the file path to the extraction service and decodes the result.
func (c *Client) Process(ctx context.Context, path string, opts Options) (*Result, error) {
	payload, err := json.Marshal(processRequest{FilePath: path, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("encoding extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/process", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("extractor returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding extract response: %w", err)
	}

	if result.Status != "success" {
		return nil, fmt.Errorf("extraction failed for %s: %s", filepath.Base(path), strings.Join(result.Errors, "; "))
	}

	return &result, nil
}

// Healthy checks the extractor's health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Supports reports whether the remote service handles the file's extension.
func (c *Client) Supports(path string) bool {
	return remoteFormats[strings.ToLower(filepath.Ext(path))]
}
