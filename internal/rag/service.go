// Package rag answers questions over the indexed documents and exposes the
// document and telemetry views used by the API, MCP and CLI surfaces.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bull/rag-assistant/internal/answer"
	"github.com/bull/rag-assistant/internal/indexer"
	"github.com/bull/rag-assistant/internal/retrieval"
	"github.com/bull/rag-assistant/internal/storage"
	"github.com/bull/rag-assistant/internal/telemetry"
)

const (
	// DefaultTopK is the number of chunks handed to the answerer.
	DefaultTopK = 3

	recentQueriesLimit = 5
)

var (
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrNoDocuments means there is nothing to retrieve from.
	ErrNoDocuments = errors.New("no documents found; please upload documents first")
)

type Request struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type Response struct {
	Answer          string                  `json:"answer"`
	Sources         []retrieval.ScoredChunk `json:"sources"`
	LatencyMS       float64                 `json:"latency_ms"`
	TokenCount      int                     `json:"token_count"`
	RetrievedChunks []string                `json:"retrieved_chunks"`
}

// RecentQuery is the dashboard view of a telemetry record.
type RecentQuery struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
}

type Dashboard struct {
	DocumentCount int           `json:"document_count"`
	ChunkCount    int           `json:"chunk_count"`
	QueryCount    int           `json:"query_count"`
	RecentQueries []RecentQuery `json:"recent_queries"`
}

// Service wires retrieval, answer generation and telemetry over one store.
type Service struct {
	store     storage.Store
	retriever *retrieval.Retriever
	answerer  answer.Answerer
	recorder  *telemetry.Recorder
	pipeline  *indexer.Pipeline
	topK      int
	logger    *slog.Logger
}

type Option func(*Service)

// WithDefaultTopK sets the chunk count used when a request leaves TopK unset.
func WithDefaultTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

func NewService(
	store storage.Store,
	retriever *retrieval.Retriever,
	answerer answer.Answerer,
	recorder *telemetry.Recorder,
	pipeline *indexer.Pipeline,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:     store,
		retriever: retriever,
		answerer:  answerer,
		recorder:  recorder,
		pipeline:  pipeline,
		topK:      DefaultTopK,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query retrieves the best chunks for req.Query and generates an answer.
//
// Every attempt past the empty-store check writes exactly one telemetry
// record. Failures after that point do not fail the query: the response
// carries answer.FallbackText and the record is marked unsuccessful.
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	start := time.Now()

	n, err := s.store.CountChunks(ctx, "")
	if err != nil {
		return s.fallback(ctx, query, start, nil, fmt.Errorf("count chunks: %w", err)), nil
	}
	if n == 0 {
		return nil, ErrNoDocuments
	}

	sources, err := s.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return s.fallback(ctx, query, start, nil, fmt.Errorf("retrieve: %w", err)), nil
	}
	if len(sources) == 0 {
		// Chunks were deleted between the count and the scan.
		return nil, ErrNoDocuments
	}

	contexts := make([]string, len(sources))
	for i, src := range sources {
		contexts[i] = src.Text
	}

	ans, err := s.answerer.Answer(ctx, query, contexts)
	if err != nil {
		return s.fallback(ctx, query, start, sources, err), nil
	}

	latency := time.Since(start)
	s.record(ctx, query, telemetry.Success{Answer: ans.Text, Latency: latency, TokenCount: ans.TokenCount})
	return &Response{
		Answer:          ans.Text,
		Sources:         sources,
		LatencyMS:       toMillis(latency),
		TokenCount:      ans.TokenCount,
		RetrievedChunks: contexts,
	}, nil
}

// fallback records a failed attempt and builds the apology response.
func (s *Service) fallback(ctx context.Context, query string, start time.Time, sources []retrieval.ScoredChunk, err error) *Response {
	latency := time.Since(start)
	s.logger.Error("Query failed, answering with fallback", "error", err)
	s.record(ctx, query, telemetry.Failure{Latency: latency, Err: err})

	if sources == nil {
		sources = []retrieval.ScoredChunk{}
	}
	contexts := make([]string, len(sources))
	for i, src := range sources {
		contexts[i] = src.Text
	}
	return &Response{
		Answer:          answer.FallbackText,
		Sources:         sources,
		LatencyMS:       toMillis(latency),
		RetrievedChunks: contexts,
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (s *Service) record(ctx context.Context, query string, outcome telemetry.Outcome) {
	// A cancelled request still gets its record.
	ctx = context.WithoutCancel(ctx)
	if _, err := s.recorder.Record(ctx, query, outcome); err != nil {
		s.logger.Error("Failed to record telemetry", "error", err)
	}
}

// Search runs retrieval only, without answering or recording telemetry.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]retrieval.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = s.topK
	}
	return s.retriever.Retrieve(ctx, query, topK)
}

// Upload ingests one file through the indexing pipeline.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*storage.Document, error) {
	return s.pipeline.Ingest(ctx, filename, data)
}

// Sync ingests every file of src.
func (s *Service) Sync(ctx context.Context, src indexer.Source) (*indexer.IndexResult, error) {
	return s.pipeline.IngestAll(ctx, src)
}

func (s *Service) ListDocuments(ctx context.Context) ([]*storage.Document, error) {
	return s.store.ListDocuments(ctx)
}

func (s *Service) GetDocument(ctx context.Context, id string) (*storage.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// DeleteDocument removes a document and its chunks and reports how many
// chunks were removed.
func (s *Service) DeleteDocument(ctx context.Context, id string) (int, error) {
	n, err := s.store.DeleteDocument(ctx, id)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Deleted document", "id", id, "chunks", n)
	return n, nil
}

func (s *Service) Stats(ctx context.Context) (*telemetry.Stats, error) {
	return s.recorder.Stats(ctx)
}

func (s *Service) History(ctx context.Context, limit int) ([]*storage.TelemetryRecord, error) {
	return s.recorder.History(ctx, limit)
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	docs, err := s.store.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunks, err := s.store.CountChunks(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	queries, err := s.store.CountTelemetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("count telemetry: %w", err)
	}
	recent, err := s.store.ListTelemetry(ctx, recentQueriesLimit)
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}

	d := &Dashboard{
		DocumentCount: docs,
		ChunkCount:    chunks,
		QueryCount:    queries,
		RecentQueries: make([]RecentQuery, len(recent)),
	}
	for i, rec := range recent {
		d.RecentQueries[i] = RecentQuery{Query: rec.Query, Timestamp: rec.Timestamp, Success: rec.Success}
	}
	return d, nil
}

// Health reports whether the backing store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}
