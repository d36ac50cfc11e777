package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-assistant/internal/embedding"
	"github.com/bull/rag-assistant/internal/extract"
	"github.com/bull/rag-assistant/internal/storage"
	"github.com/bull/rag-assistant/internal/telemetry"
)

const testDim = 8

// flakyEmbedder fails on any text containing poison.
type flakyEmbedder struct {
	inner  embedding.Embedder
	poison string
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.poison != "" && strings.Contains(text, f.poison) {
		return nil, errors.New("provider unavailable")
	}
	return f.inner.Embed(ctx, text)
}

func (f *flakyEmbedder) Dimension() int { return f.inner.Dimension() }

type fakeSource struct {
	files map[string]string
	order []string
	err   error
}

func (s *fakeSource) GetLatestCommitSHA(context.Context) (string, error) { return "abc123", nil }

func (s *fakeSource) ListFiles(context.Context) ([]string, error) { return s.order, s.err }

func (s *fakeSource) FetchFile(_ context.Context, path string) ([]byte, error) {
	content, ok := s.files[path]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return []byte(content), nil
}

func words(n int, word string) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func newTestPipeline(store storage.Store, e embedding.Embedder, opts ...Option) *Pipeline {
	return NewPipeline(extract.New(extract.DefaultConfig()), e, store, opts...)
}

func TestIngestStoresDocumentAndChunks(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(testDim)
	metrics := telemetry.NewMetrics()
	p := newTestPipeline(store, embedding.NewHashEmbedder(testDim), WithMetrics(metrics))

	data := []byte(words(1200, "alpha"))
	doc, err := p.Ingest(ctx, "notes.txt", data)
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, "text", doc.Format)
	assert.Equal(t, len(data), doc.FileSize)
	assert.Equal(t, len(data), doc.TextLength)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.False(t, doc.UploadedAt.IsZero())

	chunks, err := store.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Len(t, c.Embedding, testDim)
	}
	assert.Len(t, strings.Fields(chunks[2].Text), 200)

	stored, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ChunkCount, stored.ChunkCount)
}

func TestIngestCustomWindow(t *testing.T) {
	store := storage.NewMemoryStore(testDim)
	p := newTestPipeline(store, embedding.NewHashEmbedder(testDim), WithMaxWords(4))

	doc, err := p.Ingest(context.Background(), "short.md", []byte("# Title\n\none two three four five"))
	require.NoError(t, err)
	assert.Equal(t, "markdown", doc.Format)
	assert.Equal(t, 2, doc.ChunkCount)
}

func TestIngestRejectsEmptyContent(t *testing.T) {
	store := storage.NewMemoryStore(testDim)
	p := newTestPipeline(store, embedding.NewHashEmbedder(testDim))

	_, err := p.Ingest(context.Background(), "blank.txt", []byte("  \n\t "))
	require.ErrorIs(t, err, extract.ErrEmptyContent)
	var extractErr *extract.ExtractionError
	assert.ErrorAs(t, err, &extractErr)

	n, err := store.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(testDim)
	e := &flakyEmbedder{inner: embedding.NewHashEmbedder(testDim), poison: "omega"}
	p := newTestPipeline(store, e, WithMaxWords(10))

	text := words(25, "alpha") + " omega"
	_, err := p.Ingest(ctx, "doc.txt", []byte(text))
	require.Error(t, err)

	docs, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, docs)
	chunks, err := store.CountChunks(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, chunks, "no chunk may be stored when one fails to embed")
}

func TestIngestAllContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(testDim)
	p := newTestPipeline(store, embedding.NewHashEmbedder(testDim))

	src := &fakeSource{
		files: map[string]string{
			"docs/a.md":  "# A\n\nfirst document",
			"docs/b.txt": "   ",
			"docs/c.txt": "third document",
		},
		order: []string{"docs/a.md", "docs/b.txt", "docs/missing.txt", "docs/c.txt"},
	}

	result, err := p.IngestAll(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.CommitSHA)
	assert.Equal(t, 4, result.TotalDocs)
	assert.Equal(t, 2, result.SuccessfulDocs)
	assert.Equal(t, 2, result.TotalChunks)
	require.Len(t, result.FailedDocs, 2)
	assert.Equal(t, "docs/b.txt", result.FailedDocs[0].Path)
	assert.Equal(t, "docs/missing.txt", result.FailedDocs[1].Path)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, "docs/a.md", result.Documents[0].Filename)

	n, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngestAllListError(t *testing.T) {
	p := newTestPipeline(storage.NewMemoryStore(testDim), embedding.NewHashEmbedder(testDim))
	_, err := p.IngestAll(context.Background(), &fakeSource{err: errors.New("rate limited")})
	assert.ErrorContains(t, err, "rate limited")
}
