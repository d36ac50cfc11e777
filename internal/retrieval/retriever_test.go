package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-assistant/internal/embedding"
	"github.com/bull/rag-assistant/internal/storage"
)

// fixedEmbedder returns a preset vector per text.
type fixedEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func (f *fixedEmbedder) Dimension() int { return 2 }

func seed(t *testing.T, store storage.Store, docID string, vectors ...[]float32) {
	t.Helper()
	doc := &storage.Document{ID: docID, Filename: docID + ".txt", Format: "text", UploadedAt: time.Now()}
	chunks := make([]*storage.Chunk, len(vectors))
	for i, v := range vectors {
		chunks[i] = &storage.Chunk{
			ID:         docID + "-" + string(rune('a'+i)),
			DocumentID: docID,
			Index:      i,
			Text:       docID + " chunk " + string(rune('a'+i)),
			Embedding:  v,
		}
	}
	doc.ChunkCount = len(chunks)
	require.NoError(t, store.InsertDocument(context.Background(), doc, chunks))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"scaled", []float32{1, 2}, []float32{2, 4}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilaritySymmetricAndBounded(t *testing.T) {
	e := embedding.NewHashEmbedder(32)
	a, err := e.Embed(context.Background(), "first")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "second")
	require.NoError(t, err)

	ab := CosineSimilarity(a, b)
	assert.InDelta(t, ab, CosineSimilarity(b, a), 1e-12)
	assert.LessOrEqual(t, math.Abs(ab), 1.0+1e-9)
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
}

func TestRetrieveRanksAndBounds(t *testing.T) {
	store := storage.NewMemoryStore(2)
	seed(t, store, "doc1", []float32{1, 0}, []float32{0, 1})
	seed(t, store, "doc2", []float32{1, 1})

	r := New(store, &fixedEmbedder{vectors: map[string][]float32{"q": {1, 0}}})

	results, err := r.Retrieve(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc1", results[0].DocumentID)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "doc2", results[1].DocumentID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	all, err := r.Retrieve(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "topK beyond the stored count returns everything")

	none, err := r.Retrieve(context.Background(), "q", -1)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRetrieveTiesKeepStoreOrder(t *testing.T) {
	store := storage.NewMemoryStore(2)
	seed(t, store, "first", []float32{1, 1})
	seed(t, store, "second", []float32{2, 2})
	seed(t, store, "third", []float32{3, 3})

	r := New(store, &fixedEmbedder{vectors: map[string][]float32{"q": {1, 1}}})
	results, err := r.Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].DocumentID)
	assert.Equal(t, "second", results[1].DocumentID)
	assert.Equal(t, "third", results[2].DocumentID)
}

func TestRetrieveEmptyStore(t *testing.T) {
	r := New(storage.NewMemoryStore(2), &fixedEmbedder{vectors: map[string][]float32{"q": {1, 0}}})
	results, err := r.Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveMaxScan(t *testing.T) {
	store := storage.NewMemoryStore(2)
	seed(t, store, "doc", []float32{0, 1}, []float32{0, 1}, []float32{1, 0})

	r := New(store, &fixedEmbedder{vectors: map[string][]float32{"q": {1, 0}}}, WithMaxScan(2))
	results, err := r.Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, results, 2, "only the first two chunks are scanned")
	for _, res := range results {
		assert.NotEqual(t, 2, res.ChunkIndex)
	}
}

func TestRetrieveEmbedError(t *testing.T) {
	boom := errors.New("boom")
	r := New(storage.NewMemoryStore(2), &fixedEmbedder{err: boom})
	_, err := r.Retrieve(context.Background(), "q", 3)
	assert.ErrorIs(t, err, boom)
}
