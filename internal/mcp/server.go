package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/rag-assistant/internal/rag"
	"github.com/bull/rag-assistant/internal/retrieval"
	"github.com/bull/rag-assistant/internal/storage"
	"github.com/bull/rag-assistant/internal/telemetry"
)

// Service is the subset of rag.Service the tools use.
type Service interface {
	Query(ctx context.Context, req rag.Request) (*rag.Response, error)
	Search(ctx context.Context, query string, topK int) ([]retrieval.ScoredChunk, error)
	ListDocuments(ctx context.Context) ([]*storage.Document, error)
	Stats(ctx context.Context) (*telemetry.Stats, error)
	Dashboard(ctx context.Context) (*rag.Dashboard, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	svc    Service
}

// Config holds server dependencies.
type Config struct {
	Service Service
	Version string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "rag-assistant",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_documents",
		Description: "Answer a question from the uploaded documents. Returns the answer with the ranked source chunks it was grounded on.",
	}, makeQueryHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_chunks",
		Description: "Rank stored document chunks by similarity to a query without generating an answer.",
	}, makeSearchHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List every uploaded document with its format, size and chunk count.",
	}, makeListHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_telemetry_stats",
		Description: "Get aggregate query statistics: total queries, average latency, tokens, estimated cost and success rate.",
	}, makeStatsHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_dashboard",
		Description: "Get document, chunk and query counts plus the five most recent queries.",
	}, makeDashboardHandler(cfg.Service))

	return &Server{
		server: server,
		svc:    cfg.Service,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
