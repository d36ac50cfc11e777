package storage

import (
	"context"
	"fmt"
)

// Store persists documents, chunks and query telemetry.
//
// Implementations must insert a document together with its chunks atomically:
// either the document and every chunk are visible afterwards or none of them are.
// ScanChunks must return chunks in a stable order for an unchanged data set so
// that similarity ties rank deterministically.
type Store interface {
	Health(ctx context.Context) error
	Close() error

	InsertDocument(ctx context.Context, doc *Document, chunks []*Chunk) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	// DeleteDocument removes the document and all of its chunks, returning the
	// number of chunks removed. Returns ErrDocumentNotFound for unknown ids.
	DeleteDocument(ctx context.Context, id string) (int, error)
	CountDocuments(ctx context.Context) (int, error)

	// ScanChunks reads at most limit chunks (limit <= 0 means no cap) with embeddings.
	ScanChunks(ctx context.Context, limit int) ([]*Chunk, error)
	ListChunks(ctx context.Context, documentID string) ([]*Chunk, error)
	// CountChunks counts the chunks of one document, or all chunks when documentID is empty.
	CountChunks(ctx context.Context, documentID string) (int, error)

	InsertTelemetry(ctx context.Context, rec *TelemetryRecord) error
	// ListTelemetry returns the newest records first. limit <= 0 returns all.
	ListTelemetry(ctx context.Context, limit int) ([]*TelemetryRecord, error)
	CountTelemetry(ctx context.Context) (int, error)
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverQdrant   = "qdrant"
)

// Config selects and configures a Store backend.
type Config struct {
	Driver       string `koanf:"driver"`
	Dimension    int    `koanf:"dimension"`
	SQLitePath   string `koanf:"sqlite_path"`
	PostgresDSN  string `koanf:"postgres_dsn"`
	QdrantHost   string `koanf:"qdrant_host"`
	QdrantPort   int    `koanf:"qdrant_port"`
	QdrantAPIKey string `koanf:"qdrant_api_key"`
}

// Open constructs the configured backend. The caller owns the returned Store
// and must Close it.
func Open(ctx context.Context, cfg Config) (Store, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(dim), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath, dim)
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN, dim)
	case DriverQdrant:
		return NewQdrantStorage(ctx, QdrantOptions{
			Host:      cfg.QdrantHost,
			Port:      cfg.QdrantPort,
			APIKey:    cfg.QdrantAPIKey,
			Dimension: dim,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// validateInsert checks the document and its chunks before anything is written.
func validateInsert(doc *Document, chunks []*Chunk, dimension int) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	for i, chunk := range chunks {
		if chunk.DocumentID != doc.ID {
			return fmt.Errorf("chunk %d belongs to document %q, expected %q", i, chunk.DocumentID, doc.ID)
		}
		if len(chunk.Embedding) != dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), dimension)
		}
	}
	return nil
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
