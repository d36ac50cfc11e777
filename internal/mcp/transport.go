package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the HTTP transport behavior.
type HTTPHandlerOptions struct {
	// Stateless disables session management. The tools never call back into
	// the client, so stateless mode is safe behind load balancers.
	Stateless bool
	// JSONResponse answers with application/json instead of an SSE stream.
	JSONResponse bool
}

// NewHTTPHandler creates an HTTP handler for the MCP server using the
// Streamable HTTP transport. The API router mounts it at /mcp.
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{
		Stateless:    opts.Stateless,
		JSONResponse: opts.JSONResponse,
	})
}
