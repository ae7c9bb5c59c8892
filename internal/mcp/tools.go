package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchDocumentsTool defines the search_documents MCP tool.
var searchDocumentsTool = mcp.NewTool("search_documents",
	mcp.WithDescription("Search the indexed documents. Returns ranked passages with document and page references."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
	mcp.WithString("strategy",
		mcp.Description("Search strategy (default hybrid)"),
		mcp.Enum("keyword", "semantic", "cross_modal", "hybrid"),
	),
	mcp.WithString("document_id",
		mcp.Description("Restrict results to one document"),
	),
)

// enqueueDocumentTool defines the enqueue_document MCP tool.
var enqueueDocumentTool = mcp.NewTool("enqueue_document",
	mcp.WithDescription("Queue a document file for indexing."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Absolute or working-directory-relative path to the document"),
	),
	mcp.WithString("priority",
		mcp.Description("Queue priority (default medium)"),
		mcp.Enum("low", "medium", "high", "critical"),
	),
)

// queueStatusTool defines the queue_status MCP tool.
var queueStatusTool = mcp.NewTool("queue_status",
	mcp.WithDescription("Get ingestion queue statistics: pending, active, completed, and failed documents."),
)
