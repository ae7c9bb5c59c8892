// Package mcp exposes document search and ingestion over the Model
// Context Protocol so agent tooling can use the index directly.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/tessera-search/tessera/internal/ingest"
	"github.com/tessera-search/tessera/internal/search"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes document search tools.
type Server struct {
	engine *search.Engine
	queue  *ingest.Queue
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(engine *search.Engine, queue *ingest.Queue) *Server {
	s := &Server{
		engine: engine,
		queue:  queue,
	}

	s.mcp = server.NewMCPServer(
		"tessera",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool, s.handleSearchDocuments)
	s.mcp.AddTool(enqueueDocumentTool, s.handleEnqueueDocument)
	s.mcp.AddTool(queueStatusTool, s.handleQueueStatus)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
