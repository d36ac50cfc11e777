package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:", testDimension)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, newSQLiteTestStore)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rag.db")

	s, err := NewSQLiteStore(ctx, path, testDimension)
	require.NoError(t, err)
	doc, chunks := newTestDocument("persist.pptx", "slide one", "slide two")
	require.NoError(t, s.InsertDocument(ctx, doc, chunks))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(ctx, path, testDimension)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "persist.pptx", got.Filename)

	n, err := reopened.CountChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStoreRollsBackFailedInsert(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteTestStore(t)

	doc, chunks := newTestDocument("dup.pdf", "one", "two")
	// Duplicate chunk ids violate the unique constraint on the second row.
	chunks[1].ID = chunks[0].ID

	err := s.InsertDocument(ctx, doc, chunks)
	require.Error(t, err)

	_, err = s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	n, err := s.CountChunks(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}
