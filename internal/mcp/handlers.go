package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/rag-assistant/internal/rag"
	"github.com/bull/rag-assistant/internal/retrieval"
	"github.com/bull/rag-assistant/internal/storage"
)

const noDocumentsMessage = "No documents available. Please upload documents first."

// makeQueryHandler creates the query_documents tool handler.
// An empty store is not a tool error: the output carries a message instead.
func makeQueryHandler(svc Service) func(
	context.Context, *mcp.CallToolRequest, QueryDocumentsInput,
) (*mcp.CallToolResult, QueryDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input QueryDocumentsInput) (
		*mcp.CallToolResult, QueryDocumentsOutput, error,
	) {
		resp, err := svc.Query(ctx, rag.Request{Query: input.Query, TopK: input.TopK})
		if err != nil {
			if errors.Is(err, rag.ErrNoDocuments) {
				return nil, QueryDocumentsOutput{
					Sources: []retrieval.ScoredChunk{},
					Message: noDocumentsMessage,
				}, nil
			}
			return nil, QueryDocumentsOutput{}, fmt.Errorf("query failed: %w", err)
		}
		return nil, QueryDocumentsOutput{
			Answer:     resp.Answer,
			Sources:    nonNil(resp.Sources),
			LatencyMS:  resp.LatencyMS,
			TokenCount: resp.TokenCount,
		}, nil
	}
}

// makeSearchHandler creates the search_chunks tool handler.
// Retrieval only; no answer is generated and no telemetry is written.
func makeSearchHandler(svc Service) func(
	context.Context, *mcp.CallToolRequest, SearchChunksInput,
) (*mcp.CallToolResult, SearchChunksOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchChunksInput) (
		*mcp.CallToolResult, SearchChunksOutput, error,
	) {
		results, err := svc.Search(ctx, input.Query, input.TopK)
		if err != nil {
			return nil, SearchChunksOutput{}, fmt.Errorf("search failed: %w", err)
		}
		if len(results) == 0 {
			return nil, SearchChunksOutput{
				Results: []retrieval.ScoredChunk{},
				Message: noDocumentsMessage,
			}, nil
		}
		return nil, SearchChunksOutput{Results: results}, nil
	}
}

// makeListHandler creates the list_documents tool handler.
func makeListHandler(svc Service) func(
	context.Context, *mcp.CallToolRequest, ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (
		*mcp.CallToolResult, ListDocumentsOutput, error,
	) {
		docs, err := svc.ListDocuments(ctx)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}
		if docs == nil {
			docs = []*storage.Document{}
		}
		return nil, ListDocumentsOutput{Documents: docs, Count: len(docs)}, nil
	}
}

// makeStatsHandler creates the get_telemetry_stats tool handler.
func makeStatsHandler(svc Service) func(
	context.Context, *mcp.CallToolRequest, StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (
		*mcp.CallToolResult, StatsOutput, error,
	) {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return nil, StatsOutput{}, fmt.Errorf("failed to compute stats: %w", err)
		}
		return nil, *stats, nil
	}
}

// makeDashboardHandler creates the get_dashboard tool handler.
func makeDashboardHandler(svc Service) func(
	context.Context, *mcp.CallToolRequest, DashboardInput,
) (*mcp.CallToolResult, DashboardOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DashboardInput) (
		*mcp.CallToolResult, DashboardOutput, error,
	) {
		d, err := svc.Dashboard(ctx)
		if err != nil {
			return nil, DashboardOutput{}, fmt.Errorf("failed to load dashboard: %w", err)
		}
		if d.RecentQueries == nil {
			d.RecentQueries = []rag.RecentQuery{}
		}
		return nil, *d, nil
	}
}

func nonNil(chunks []retrieval.ScoredChunk) []retrieval.ScoredChunk {
	if chunks == nil {
		return []retrieval.ScoredChunk{}
	}
	return chunks
}
