package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func missingEnvFile(t *testing.T) []string {
	return []string{filepath.Join(t.TempDir(), "absent.env")}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{EnvFiles: missingEnvFile(t), Environ: environ()})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ModeHTTP, cfg.Server.Mode)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 384, cfg.Store.Dimension)
	assert.Equal(t, 500, cfg.Chunk.MaxWords)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 1000, cfg.Retrieval.MaxScan)
	assert.Equal(t, 0.01, cfg.Telemetry.CostPer1K)
	assert.Equal(t, 50, cfg.Telemetry.HistoryLimit)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 50, cfg.Extract.MinTextLength)
	assert.Equal(t, 300, cfg.Extract.OCRDPI)
}

func TestLoadPrefixedEnvironment(t *testing.T) {
	cfg, err := Load(Options{
		EnvFiles: missingEnvFile(t),
		Environ: environ(
			"RAG_STORE_DRIVER=sqlite",
			"RAG_STORE_SQLITE_PATH=/tmp/rag.db",
			"RAG_CHUNK_MAX_WORDS=200",
			"RAG_SERVER_CORS_ORIGINS=http://a.test,http://b.test",
			"RAG_SERVER_SHUTDOWN_TIMEOUT=3s",
			"RAG_EMBEDDING_DIMENSION=16",
			"UNRELATED=1",
		),
	})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/rag.db", cfg.Store.SQLitePath)
	assert.Equal(t, 200, cfg.Chunk.MaxWords)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 16, cfg.Store.Dimension)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	cfg, err := Load(Options{
		EnvFiles: missingEnvFile(t),
		Environ: environ(
			"OPENAI_API_KEY=sk-test",
			"QDRANT_HOST=qdrant.internal",
			"QDRANT_PORT=7334",
			"PORT=9090",
			"SERVER_MODE=false",
		),
	})
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-test", cfg.Answer.APIKey)
	assert.Equal(t, "qdrant.internal", cfg.Store.QdrantHost)
	assert.Equal(t, 7334, cfg.Store.QdrantPort)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ModeStdio, cfg.Server.Mode)
}

func TestLoadPrefixedWinsOverLegacy(t *testing.T) {
	cfg, err := Load(Options{
		EnvFiles: missingEnvFile(t),
		Environ:  environ("PORT=9090", "RAG_SERVER_PORT=9191"),
	})
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RAG_TEST_ONLY_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RAG_TEST_ONLY_VALUE") })

	_, err := Load(Options{EnvFiles: []string{path}, Environ: environ()})
	require.NoError(t, err)
	assert.Equal(t, "from-file", os.Getenv("RAG_TEST_ONLY_VALUE"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad mode", func(c *Config) { c.Server.Mode = "grpc" }},
		{"zero chunk size", func(c *Config) { c.Chunk.MaxWords = 0 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }},
		{"negative cost", func(c *Config) { c.Telemetry.CostPer1K = -1 }},
		{"openai embedder without key", func(c *Config) { c.Embedding.Provider = "openai" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestTransformEnvKey(t *testing.T) {
	key, value := transformEnvKey("RAG_STORE_QDRANT_API_KEY", "secret")
	assert.Equal(t, "store.qdrant_api_key", key)
	assert.Equal(t, "secret", value)

	key, _ = transformEnvKey("RAG_", "x")
	assert.Empty(t, key)
}
