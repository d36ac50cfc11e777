// Package mcp exposes the document assistant as Model Context Protocol tools.
package mcp

import (
	"github.com/bull/rag-assistant/internal/rag"
	"github.com/bull/rag-assistant/internal/retrieval"
	"github.com/bull/rag-assistant/internal/storage"
	"github.com/bull/rag-assistant/internal/telemetry"
)

// QueryDocumentsInput defines the input parameters for the query_documents tool.
type QueryDocumentsInput struct {
	// Query is the natural-language question.
	Query string `json:"query" jsonschema:"the question to answer from the uploaded documents"`
	// TopK is the number of chunks used as context.
	TopK int `json:"top_k,omitempty" jsonschema:"number of context chunks to retrieve (default 3)"`
}

// QueryDocumentsOutput contains the generated answer and its sources.
type QueryDocumentsOutput struct {
	Answer     string                  `json:"answer"`
	Sources    []retrieval.ScoredChunk `json:"sources"`
	LatencyMS  float64                 `json:"latency_ms"`
	TokenCount int                     `json:"token_count"`
	// Message provides informational context (e.g., "No documents available").
	Message string `json:"message,omitempty"`
}

// SearchChunksInput defines the input parameters for the search_chunks tool.
type SearchChunksInput struct {
	Query string `json:"query" jsonschema:"text to rank stored chunks against"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of chunks to return (default 3)"`
}

// SearchChunksOutput contains the ranked chunks.
type SearchChunksOutput struct {
	Results []retrieval.ScoredChunk `json:"results"`
	Message string                  `json:"message,omitempty"`
}

// ListDocumentsInput takes no parameters.
type ListDocumentsInput struct{}

// ListDocumentsOutput contains every stored document.
type ListDocumentsOutput struct {
	Documents []*storage.Document `json:"documents"`
	Count     int                 `json:"count"`
}

// StatsInput takes no parameters.
type StatsInput struct{}

// StatsOutput is the get_telemetry_stats result.
type StatsOutput = telemetry.Stats

// DashboardInput takes no parameters.
type DashboardInput struct{}

// DashboardOutput is the get_dashboard result.
type DashboardOutput = rag.Dashboard
