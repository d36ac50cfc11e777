package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore keeps documents and chunks in PostgreSQL with embeddings in a
// pgvector column.
type PostgresStore struct {
	pool      *pgxpool.Pool
	dimension int
	sq        squirrel.StatementBuilderType
}

// NewPostgresStore connects to dsn, verifies the connection and applies migrations.
func NewPostgresStore(ctx context.Context, dsn string, dimension int) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	migrateErr := applyMigrations(ctx, sqlDB, "postgres", "migrations/postgres")
	if closeErr := sqlDB.Close(); closeErr != nil && migrateErr == nil {
		migrateErr = closeErr
	}
	if migrateErr != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", migrateErr)
	}

	return &PostgresStore{
		pool:      pool,
		dimension: dimension,
		sq:        squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc *Document, chunks []*Chunk) (err error) {
	if err := validateInsert(doc, chunks, s.dimension); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("rollback failed: %w; original error: %v", rbErr, err)
			}
		}
	}()

	query, args, err := s.sq.Insert(DocumentsCollection).Columns(documentColumns...).Values(
		doc.ID, doc.Filename, doc.Format, doc.UploadedAt.UTC(),
		doc.FileSize, doc.TextLength, doc.ChunkCount,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build document insert: %w", err)
	}
	if _, err = tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if len(chunks) > 0 {
		builder := s.sq.Insert(ChunksCollection).Columns(chunkColumns...)
		for _, chunk := range chunks {
			builder = builder.Values(chunk.ID, chunk.DocumentID, chunk.Index, chunk.Text,
				pgvector.NewVector(chunk.Embedding))
		}
		query, args, err = builder.ToSql()
		if err != nil {
			return fmt.Errorf("build chunk insert: %w", err)
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	query, args, err := s.sq.Select(documentColumns...).From(DocumentsCollection).
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build document select: %w", err)
	}
	doc, err := scanPostgresDocument(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	query, args, err := s.sq.Select(documentColumns...).From(DocumentsCollection).OrderBy("seq").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build document list: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []*Document{}
	for rows.Next() {
		doc, err := scanPostgresDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) (removed int, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query, args, err := s.sq.Delete(ChunksCollection).Where(squirrel.Eq{"document_id": id}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build chunk delete: %w", err)
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	chunksDeleted := tag.RowsAffected()

	query, args, err = s.sq.Delete(DocumentsCollection).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build document delete: %w", err)
	}
	tag, err = tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrDocumentNotFound
		return 0, err
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(chunksDeleted), nil
}

func (s *PostgresStore) CountDocuments(ctx context.Context) (int, error) {
	return s.count(ctx, s.sq.Select("COUNT(*)").From(DocumentsCollection))
}

func (s *PostgresStore) ScanChunks(ctx context.Context, limit int) ([]*Chunk, error) {
	builder := s.sq.Select(chunkColumns...).From(ChunksCollection).OrderBy("seq")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.queryChunks(ctx, builder)
}

func (s *PostgresStore) ListChunks(ctx context.Context, documentID string) ([]*Chunk, error) {
	return s.queryChunks(ctx, s.sq.Select(chunkColumns...).From(ChunksCollection).
		Where(squirrel.Eq{"document_id": documentID}).OrderBy("seq"))
}

func (s *PostgresStore) CountChunks(ctx context.Context, documentID string) (int, error) {
	builder := s.sq.Select("COUNT(*)").From(ChunksCollection)
	if documentID != "" {
		builder = builder.Where(squirrel.Eq{"document_id": documentID})
	}
	return s.count(ctx, builder)
}

func (s *PostgresStore) InsertTelemetry(ctx context.Context, rec *TelemetryRecord) error {
	query, args, err := s.sq.Insert(TelemetryCollection).Columns(telemetryColumns...).Values(
		rec.ID, rec.Query, rec.Answer, rec.LatencyMS, rec.TokenCount,
		rec.Timestamp.UTC(), rec.Success, rec.Error,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build telemetry insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTelemetry(ctx context.Context, limit int) ([]*TelemetryRecord, error) {
	builder := s.sq.Select(telemetryColumns...).From(TelemetryCollection).OrderBy("timestamp DESC", "seq DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build telemetry list: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	defer rows.Close()

	records := []*TelemetryRecord{}
	for rows.Next() {
		var rec TelemetryRecord
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Answer, &rec.LatencyMS, &rec.TokenCount,
			&rec.Timestamp, &rec.Success, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan telemetry: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) CountTelemetry(ctx context.Context) (int, error) {
	return s.count(ctx, s.sq.Select("COUNT(*)").From(TelemetryCollection))
}

func (s *PostgresStore) count(ctx context.Context, builder squirrel.SelectBuilder) (int, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) queryChunks(ctx context.Context, builder squirrel.SelectBuilder) ([]*Chunk, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build chunk select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	chunks := []*Chunk{}
	for rows.Next() {
		var (
			chunk Chunk
			vec   pgvector.Vector
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Text, &vec); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Embedding = vec.Slice()
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func scanPostgresDocument(row pgx.Row) (*Document, error) {
	var doc Document
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Format, &doc.UploadedAt,
		&doc.FileSize, &doc.TextLength, &doc.ChunkCount); err != nil {
		return nil, err
	}
	return &doc, nil
}
