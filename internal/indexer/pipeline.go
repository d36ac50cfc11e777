// Package indexer turns uploaded files into stored, embedded chunks.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bull/rag-assistant/internal/chunker"
	"github.com/bull/rag-assistant/internal/embedding"
	"github.com/bull/rag-assistant/internal/extract"
	"github.com/bull/rag-assistant/internal/storage"
	"github.com/bull/rag-assistant/internal/telemetry"
)

// IndexResult contains statistics about a batch indexing operation.
type IndexResult struct {
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	FailedDocs     []FailedDoc
	Documents      []*storage.Document
	CommitSHA      string
	Duration       time.Duration
}

// FailedDoc represents a document that failed to index.
type FailedDoc struct {
	Path   string
	Reason string
}

// Source lists and reads files from somewhere other than an upload, such as
// a GitHub repository.
type Source interface {
	GetLatestCommitSHA(ctx context.Context) (string, error)
	ListFiles(ctx context.Context) ([]string, error)
	FetchFile(ctx context.Context, path string) ([]byte, error)
}

// Pipeline orchestrates extraction, chunking, embedding and storage.
type Pipeline struct {
	extractor *extract.Extractor
	embedder  embedding.Embedder
	store     storage.Store
	maxWords  int
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Pipeline)

// WithMaxWords sets the chunk window size.
func WithMaxWords(n int) Option {
	return func(p *Pipeline) { p.maxWords = n }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a new indexing pipeline with the given components.
func NewPipeline(
	extractor *extract.Extractor,
	embedder embedding.Embedder,
	store storage.Store,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		maxWords:  chunker.DefaultMaxWords,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest extracts, chunks and embeds one file and stores the document with
// all of its chunks. Nothing is stored unless every chunk was embedded.
func (p *Pipeline) Ingest(ctx context.Context, filename string, data []byte) (*storage.Document, error) {
	start := time.Now()

	res, err := p.extractor.Extract(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	spans := chunker.Collect(res.Text, p.maxWords)
	if len(spans) == 0 {
		return nil, &extract.ExtractionError{Format: res.Format, Err: extract.ErrEmptyContent}
	}
	p.logger.Debug("Chunked document", "filename", filename, "chunks", len(spans))

	texts := make([]string, len(spans))
	for i, span := range spans {
		texts[i] = span.Text
	}
	vectors, err := embedding.EmbedAll(ctx, p.embedder, texts)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}

	doc := &storage.Document{
		ID:         uuid.NewString(),
		Filename:   filename,
		Format:     string(res.Format),
		UploadedAt: p.now().UTC(),
		FileSize:   len(data),
		TextLength: utf8.RuneCountInString(res.Text),
		ChunkCount: len(spans),
	}
	chunks := make([]*storage.Chunk, len(spans))
	for i, span := range spans {
		chunks[i] = &storage.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Index:      span.Index,
			Text:       span.Text,
			Embedding:  vectors[i],
		}
	}

	if err := p.store.InsertDocument(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	p.metrics.ObserveIngest(len(chunks))

	p.logger.Info("Indexed document",
		"id", doc.ID,
		"filename", filename,
		"format", doc.Format,
		"ocr", res.OCRUsed,
		"chunks", len(chunks),
		"duration", time.Since(start))
	return doc, nil
}

// IngestAll fetches every file the source lists and ingests it. Files that
// fail are reported in the result and do not stop the run.
func (p *Pipeline) IngestAll(ctx context.Context, src Source) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	commitSHA, err := src.GetLatestCommitSHA(ctx)
	if err != nil {
		return nil, fmt.Errorf("get commit SHA: %w", err)
	}
	result.CommitSHA = commitSHA
	p.logger.Info("Starting indexing", "commit", commitSHA)

	paths, err := src.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	result.TotalDocs = len(paths)
	p.logger.Info("Found documents", "count", len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := p.processFile(ctx, src, path)
		if err != nil {
			p.logger.Warn("Failed to process document", "path", path, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   path,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += doc.ChunkCount
		result.Documents = append(result.Documents, doc)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) processFile(ctx context.Context, src Source, path string) (*storage.Document, error) {
	data, err := src.FetchFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	p.logger.Debug("Fetched document", "path", path, "size", len(data))
	return p.Ingest(ctx, path, data)
}
