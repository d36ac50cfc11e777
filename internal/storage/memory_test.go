package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore(testDimension)
	})
}

func TestMemoryStoreCopiesOnRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testDimension)
	doc, chunks := newTestDocument("copy.pdf", "text")
	require.NoError(t, s.InsertDocument(ctx, doc, chunks))

	scanned, err := s.ScanChunks(ctx, 0)
	require.NoError(t, err)
	scanned[0].Embedding[0] = 99
	scanned[0].Text = "mutated"

	again, err := s.ScanChunks(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), again[0].Embedding[0])
	assert.Equal(t, "text", again[0].Text)
}
