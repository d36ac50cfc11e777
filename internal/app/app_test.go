package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-assistant/internal/config"
	"github.com/bull/rag-assistant/internal/rag"
	"github.com/bull/rag-assistant/internal/storage"
)

func TestNewMemoryEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Extract.TesseractPath = "definitely-not-tesseract"

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Service.Query(ctx, rag.Request{Query: "anything"})
	assert.ErrorIs(t, err, rag.ErrNoDocuments)

	body := strings.Repeat("Invoices are paid within thirty days. ", 40)
	doc, err := a.Service.Upload(ctx, "policy.txt", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ChunkCount)

	resp, err := a.Service.Query(ctx, rag.Request{Query: "When are invoices paid?"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, doc.ID, resp.Sources[0].DocumentID)

	stats, err := a.Service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalQueries)
	assert.Equal(t, 100.0, stats.SuccessRate)

	families, err := a.Metrics.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Driver = storage.DriverSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "rag.db")

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Store.Health(ctx))
	docs, err := a.Service.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestNewRejectsBadEmbedder(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Provider = "word2vec"

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestGitHubSourceRequiresRepository(t *testing.T) {
	cfg := config.Default()
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.GitHubSource()
	assert.Error(t, err)

	a.Config.GitHub.Owner = "acme"
	a.Config.GitHub.Repo = "handbook"
	src, err := a.GitHubSource()
	require.NoError(t, err)
	assert.NotNil(t, src)
}
