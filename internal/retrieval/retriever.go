// Package retrieval ranks stored chunks against a query by cosine similarity.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/bull/rag-assistant/internal/embedding"
	"github.com/bull/rag-assistant/internal/storage"
)

// DefaultMaxScan caps the number of chunks read per query.
const DefaultMaxScan = 1000

// ScoredChunk is a chunk together with its similarity to the query.
type ScoredChunk struct {
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"similarity"`
}

// Retriever embeds a query and ranks scanned chunks by brute force.
type Retriever struct {
	store    storage.Store
	embedder embedding.Embedder
	maxScan  int
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithMaxScan sets the scan cap. Non-positive values keep the default.
func WithMaxScan(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.maxScan = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(store storage.Store, embedder embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		store:    store,
		embedder: embedder,
		maxScan:  DefaultMaxScan,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns at most topK chunks ordered by descending similarity.
// Equal scores keep the store's scan order. An empty store yields an empty
// result and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	start := time.Now()

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := r.store.ScanChunks(ctx, r.maxScan)
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}

	scored := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = ScoredChunk{
			Text:       c.Text,
			DocumentID: c.DocumentID,
			ChunkIndex: c.Index,
			Score:      CosineSimilarity(queryVec, c.Embedding),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	k := min(max(topK, 0), len(scored))
	result := scored[:k:k]

	r.logger.Debug("Retrieved chunks",
		"scanned", len(chunks),
		"returned", len(result),
		"duration", time.Since(start))
	return result, nil
}

// CosineSimilarity returns dot(a,b)/(|a||b|). It is 0 when either vector has
// zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
