package extractor

import (
	"context"
	"fmt"
	"path/filepath"
)

// Dispatch routes each file to the first extractor that supports its
// extension: the local Markdown extractor for .md/.txt, the remote
// service for everything else it advertises.
type Dispatch struct {
	local  *MarkdownExtractor
	remote *Client
}

// NewDispatch creates a Dispatch over the given remote client.
func NewDispatch(remote *Client) *Dispatch {
	return &Dispatch{
		local:  NewMarkdownExtractor(),
		remote: remote,
	}
}

// Process extracts content from the file at path.
func (d *Dispatch) Process(ctx context.Context, path string, opts Options) (*Result, error) {
	if d.local.Supports(path) {
		return d.local.Process(ctx, path, opts)
	}
	if d.remote != nil && d.remote.Supports(path) {
		return d.remote.Process(ctx, path, opts)
	}
	return nil, fmt.Errorf("unsupported document format %q", filepath.Ext(path))
}

// Healthy reports whether the remote extraction service is reachable.
// The local extractor never affects health.
func (d *Dispatch) Healthy(ctx context.Context) bool {
	if d.remote == nil {
		return true
	}
	return d.remote.Healthy(ctx)
}
