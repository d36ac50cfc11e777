//go:build integration

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPostgresStore runs against RAG_TEST_POSTGRES_DSN, e.g. a pgvector/pgvector
// container. Tables are truncated before every subtest.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("RAG_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RAG_TEST_POSTGRES_DSN not set")
	}
	runStoreContract(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewPostgresStore(ctx, dsn, testDimension)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		_, err = s.pool.Exec(ctx, "TRUNCATE document_chunks, documents, telemetry")
		require.NoError(t, err)
		return s
	})
}
