package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 4

func newTestDocument(filename string, chunkTexts ...string) (*Document, []*Chunk) {
	doc := &Document{
		ID:         uuid.New().String(),
		Filename:   filename,
		Format:     "pdf",
		UploadedAt: time.Now().UTC().Truncate(time.Millisecond),
		FileSize:   1024,
		ChunkCount: len(chunkTexts),
	}
	chunks := make([]*Chunk, 0, len(chunkTexts))
	for i, text := range chunkTexts {
		doc.TextLength += len(text)
		chunks = append(chunks, &Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Index:      i,
			Text:       text,
			Embedding:  []float32{float32(i + 1), 0.5, -0.25, 0},
		})
	}
	return doc, chunks
}

// runStoreContract exercises the behaviour every backend must share. newStore
// must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Health(ctx))

		n, err := s.CountDocuments(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		chunks, err := s.ScanChunks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, chunks)

		docs, err := s.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("insert and read back", func(t *testing.T) {
		s := newStore(t)
		doc, chunks := newTestDocument("report.pdf", "alpha beta", "gamma delta", "epsilon")
		require.NoError(t, s.InsertDocument(ctx, doc, chunks))

		got, err := s.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.Filename, got.Filename)
		assert.Equal(t, doc.Format, got.Format)
		assert.Equal(t, doc.FileSize, got.FileSize)
		assert.Equal(t, doc.TextLength, got.TextLength)
		assert.Equal(t, 3, got.ChunkCount)
		assert.WithinDuration(t, doc.UploadedAt, got.UploadedAt, time.Millisecond)

		stored, err := s.ListChunks(ctx, doc.ID)
		require.NoError(t, err)
		require.Len(t, stored, 3)
		for i, chunk := range stored {
			assert.Equal(t, i, chunk.Index)
			assert.Equal(t, chunks[i].Text, chunk.Text)
			assert.Equal(t, doc.ID, chunk.DocumentID)
			assert.InDeltaSlice(t, chunks[i].Embedding, chunk.Embedding, 1e-6)
		}

		n, err := s.CountChunks(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("unknown document", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetDocument(ctx, uuid.New().String())
		assert.ErrorIs(t, err, ErrDocumentNotFound)

		_, err = s.DeleteDocument(ctx, uuid.New().String())
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("dimension mismatch writes nothing", func(t *testing.T) {
		s := newStore(t)
		doc, chunks := newTestDocument("bad.pdf", "one", "two")
		chunks[1].Embedding = []float32{1, 2}

		err := s.InsertDocument(ctx, doc, chunks)
		require.ErrorIs(t, err, ErrDimensionMismatch)

		n, err := s.CountDocuments(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = s.CountChunks(ctx, "")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("delete removes only that document", func(t *testing.T) {
		s := newStore(t)
		keep, keepChunks := newTestDocument("keep.docx", "k1", "k2")
		drop, dropChunks := newTestDocument("drop.docx", "d1", "d2", "d3")
		require.NoError(t, s.InsertDocument(ctx, keep, keepChunks))
		require.NoError(t, s.InsertDocument(ctx, drop, dropChunks))

		removed, err := s.DeleteDocument(ctx, drop.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		n, err := s.CountChunks(ctx, drop.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		remaining, err := s.ScanChunks(ctx, 0)
		require.NoError(t, err)
		require.Len(t, remaining, 2)
		for _, chunk := range remaining {
			assert.Equal(t, keep.ID, chunk.DocumentID)
		}

		docs, err := s.ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, keep.ID, docs[0].ID)
	})

	t.Run("scan honours limit and order", func(t *testing.T) {
		s := newStore(t)
		for i := range 3 {
			doc, chunks := newTestDocument(fmt.Sprintf("doc-%d.pdf", i), "a", "b")
			require.NoError(t, s.InsertDocument(ctx, doc, chunks))
		}

		limited, err := s.ScanChunks(ctx, 4)
		require.NoError(t, err)
		assert.Len(t, limited, 4)

		first, err := s.ScanChunks(ctx, 0)
		require.NoError(t, err)
		second, err := s.ScanChunks(ctx, 0)
		require.NoError(t, err)
		require.Len(t, first, 6)
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
		}
	})

	t.Run("telemetry newest first", func(t *testing.T) {
		s := newStore(t)
		base := time.Now().UTC().Truncate(time.Millisecond)
		for i := range 5 {
			rec := &TelemetryRecord{
				ID:         uuid.New().String(),
				Query:      fmt.Sprintf("question %d", i),
				Answer:     "answer",
				LatencyMS:  float64(10 * (i + 1)),
				TokenCount: i,
				Timestamp:  base.Add(time.Duration(i) * time.Second),
				Success:    i%2 == 0,
			}
			if !rec.Success {
				rec.Error = "boom"
			}
			require.NoError(t, s.InsertTelemetry(ctx, rec))
		}

		n, err := s.CountTelemetry(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		recent, err := s.ListTelemetry(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "question 4", recent[0].Query)
		assert.Equal(t, "question 3", recent[1].Query)
		assert.False(t, recent[1].Success)
		assert.Equal(t, "boom", recent[1].Error)
		assert.InDelta(t, 50.0, recent[0].LatencyMS, 1e-9)

		all, err := s.ListTelemetry(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOpenDefaultsToMemory(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &MemoryStore{}, s)
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
