package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tessera-search/tessera/internal/ingest"
	"github.com/tessera-search/tessera/internal/search"
)

// handleSearchDocuments runs a query against the search engine.
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}

	q := search.Query{
		Text: query,
		Options: search.Options{
			Strategy: search.Strategy(request.GetString("strategy", string(search.StrategyHybrid))),
			TopK:     limit,
		},
	}
	if docID := request.GetString("document_id", ""); docID != "" {
		q.Filters.DocumentIDs = []string{docID}
	}

	resp, err := s.engine.Search(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(resp.Results) == 0 {
		return mcp.NewToolResultText("No results found. The documents may not be indexed yet."), nil
	}

	return mcp.NewToolResultText(formatResults(resp)), nil
}

// handleEnqueueDocument queues one file for indexing.
func (s *Server) handleEnqueueDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid path: %v", err)), nil
	}
	if _, err := os.Stat(abs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("file not found: %s", abs)), nil
	}

	priority := ingest.PriorityMedium
	if p := request.GetString("priority", ""); p != "" {
		parsed, err := ingest.ParsePriority(p)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		priority = parsed
	}

	s.queue.Enqueue(abs, ingest.ChangeAdded, priority)
	return mcp.NewToolResultText(fmt.Sprintf("Queued %s at %s priority.", abs, priority)), nil
}

// handleQueueStatus reports queue statistics.
func (s *Server) handleQueueStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.queue.Status()

	var b strings.Builder
	fmt.Fprintf(&b, "Pending: %d\n", st.Pending)
	fmt.Fprintf(&b, "Active: %d\n", st.Active)
	fmt.Fprintf(&b, "Completed: %d\n", st.Stats.Completed)
	fmt.Fprintf(&b, "Failed: %d\n", st.FailedDocs)
	fmt.Fprintf(&b, "Skipped (unchanged): %d\n", st.Stats.Skipped)
	fmt.Fprintf(&b, "Dropped (capacity): %d\n", st.Stats.Dropped)
	for _, f := range s.queue.Failed() {
		fmt.Fprintf(&b, "  failed %s: %s\n", f.Path, f.LastError)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// formatResults renders a search response for tool output.
func formatResults(resp *search.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results (%s, %dms):\n\n", resp.Total, resp.Strategy, resp.TookMS)
	if resp.Degraded {
		fmt.Fprintf(&b, "Note: %s\n\n", resp.Note)
	}
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. [%.3f] %s (doc %s, page %d)\n", i+1, r.Score, r.Kind, r.DocumentID, r.Page)
		text := r.Snippet
		if text == "" {
			text = r.Content
		}
		if text != "" {
			fmt.Fprintf(&b, "   %s\n", text)
		}
		if r.Explanation != "" {
			fmt.Fprintf(&b, "   %s\n", r.Explanation)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
